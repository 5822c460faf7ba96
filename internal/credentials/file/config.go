package file

import (
	"errors"
	"fmt"

	"github.com/knadh/koanf/v2"
)

type Config struct {
	BaseDir       string   `toml:"base_dir"`
	GeneralVaults []string `toml:"vaults"`
	LoadAllVaults bool     `toml:"load_all_vaults"`
}

func (c Config) Validate() error {
	if c.BaseDir == "" {
		return errors.New("need base directory for file credentials")
	}
	return nil
}

func NewConfig(k *koanf.Koanf) (*Config, error) {
	var c Config
	c.BaseDir = k.String("file.base_dir")
	if c.BaseDir == "" {
		c.BaseDir = "vaults"
	}
	c.GeneralVaults = k.Strings("file.vaults")
	c.LoadAllVaults = k.Bool("file.load_all_vaults")
	if len(c.GeneralVaults) == 0 {
		c.GeneralVaults = []string{"vault.toml", "credentials.toml"}
	}
	return &c, nil
}

func (c Config) String() string {
	return fmt.Sprintf("Base Path: %v\nVaults: %v\nLoad all vaults: %v\n", c.BaseDir, c.GeneralVaults, c.LoadAllVaults)
}

func (c Config) SourceType() string {
	return "file"
}
