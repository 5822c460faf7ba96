package barter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/go-homedir"
	"machinebarter.dev/barter/internal/credentials"
	agecreds "machinebarter.dev/barter/internal/credentials/age"
	filecreds "machinebarter.dev/barter/internal/credentials/file"
	sopscreds "machinebarter.dev/barter/internal/credentials/sops"
)

type Config struct {
	Debug          bool
	Diffs          bool
	Backup         bool
	NoPrompt       bool
	Home           string
	StoreDir       string
	BackupDir      string
	CredentialsDir string
	Artifacts      map[string]string
	FileConfig     *filecreds.Config
	AgeConfig      *agecreds.Config
	SopsConfig     *sopscreds.Config
}

func NewConfig(k *koanf.Koanf) (*Config, error) {
	var c Config
	var err error
	c.Debug = k.Bool("debug")
	c.Diffs = k.Bool("diffs")
	c.Backup = k.Bool("backup")
	c.NoPrompt = k.Bool("no_prompt")
	c.Artifacts = k.StringMap("artifacts")

	c.Home, err = homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf("error finding home directory: %w", err)
	}
	if c.StoreDir, err = homedir.Expand(k.String("store_dir")); err != nil {
		return nil, fmt.Errorf("invalid store_dir: %w", err)
	}
	if c.BackupDir, err = homedir.Expand(k.String("backup_dir")); err != nil {
		return nil, fmt.Errorf("invalid backup_dir: %w", err)
	}
	if c.CredentialsDir, err = homedir.Expand(k.String("credentials_dir")); err != nil {
		return nil, fmt.Errorf("invalid credentials_dir: %w", err)
	}

	if k.Exists("file") {
		c.FileConfig, err = filecreds.NewConfig(k)
		if err != nil {
			return nil, err
		}
	}
	if k.Exists("age") {
		c.AgeConfig, err = agecreds.NewConfig(k)
		if err != nil {
			return nil, err
		}
	}
	if k.Exists("sops") {
		c.SopsConfig, err = sopscreds.NewConfig(k)
		if err != nil {
			return nil, err
		}
	}

	// calculate defaults
	if c.StoreDir == "" {
		c.StoreDir = filepath.Join(c.Home, ".docker", "machine", "machines")
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(filepath.Dir(c.StoreDir), "backups")
	}
	if c.CredentialsDir == "" {
		conf, found := os.LookupEnv("XDG_CONFIG_HOME")
		if !found || conf == "" {
			conf = filepath.Join(c.Home, ".config")
		}
		c.CredentialsDir = filepath.Join(conf, "barter")
	}

	return &c, nil
}

func (c *Config) Validate() error {
	if c.StoreDir == "" {
		return errors.New("need machine store directory")
	}
	if c.Backup && c.BackupDir == "" {
		return errors.New("need backup directory")
	}
	for field, base := range c.Artifacts {
		if base == "" {
			return fmt.Errorf("artifact %v has no file name", field)
		}
	}
	for _, sc := range c.StoreConfigs() {
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("invalid %v credentials: %w", sc.SourceType(), err)
		}
	}
	return nil
}

func (c *Config) String() string {
	var result strings.Builder
	fmt.Fprintf(&result, "Debug mode: %v\n", c.Debug)
	fmt.Fprintf(&result, "Show diffs: %v\n", c.Diffs)
	fmt.Fprintf(&result, "Backups: %v\n", c.Backup)
	fmt.Fprintf(&result, "Prompt for secrets: %v\n", !c.NoPrompt)
	fmt.Fprintf(&result, "Machine Store Dir: %v\n", c.StoreDir)
	fmt.Fprintf(&result, "Backup Dir: %v\n", c.BackupDir)
	fmt.Fprintf(&result, "Credentials Dir: %v\n", c.CredentialsDir)
	if len(c.Artifacts) > 0 {
		fmt.Fprintf(&result, "Extra artifacts: %v\n", c.Artifacts)
	}
	for _, sc := range c.StoreConfigs() {
		fmt.Fprintf(&result, "%v Credentials:\n", sc.SourceType())
		result.WriteString(sc.String())
	}
	return result.String()
}

// StoreConfigs lists the configured vault stores in lookup order.
func (c *Config) StoreConfigs() []credentials.StoreConfig {
	var configs []credentials.StoreConfig
	if c.FileConfig != nil {
		configs = append(configs, c.FileConfig)
	}
	if c.SopsConfig != nil {
		configs = append(configs, c.SopsConfig)
	}
	if c.AgeConfig != nil {
		configs = append(configs, c.AgeConfig)
	}
	return configs
}
