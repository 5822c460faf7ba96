package sops

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/getsops/sops/v3/cmd/sops/formats"
	"github.com/getsops/sops/v3/decrypt"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
	"machinebarter.dev/barter/internal/credentials"
)

type SopsStore struct {
	root          string
	vaultfiles    []string
	generalVaults []string
	loadAllVaults bool
}

func NewSopsStore(c Config, credentialsDir string) (*SopsStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s := SopsStore{
		root:          filepath.Join(credentialsDir, c.BaseDir),
		generalVaults: c.GeneralVaults,
		loadAllVaults: c.LoadAllVaults,
	}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		// binary and dotenv files are not vaults
		if sopsFormat(path) == "" {
			return nil
		}
		if c.Suffix != "" && !strings.Contains(path, c.Suffix) {
			return nil
		}
		s.vaultfiles = append(s.vaultfiles, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning sops vaults: %w", err)
	}
	return &s, nil
}

func (s *SopsStore) Lookup(ctx context.Context, f credentials.Filter) (map[string]any, error) {
	results := make(map[string]any)
	for _, v := range credentials.SelectVaultFiles(s.root, s.vaultfiles, s.generalVaults, f, s.loadAllVaults) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		decrypted, err := decrypt.File(v, sopsFormat(v))
		if err != nil {
			return nil, fmt.Errorf("error decrypting SOPS file %v: %w", v, err)
		}
		vault, err := parseVault(decrypted, v)
		if err != nil {
			return nil, err
		}
		log.Debug("loaded vault", "file", v)
		credentials.ExtractVaultCredentials(results, vault, f)
	}
	return results, nil
}

func sopsFormat(path string) string {
	switch {
	case formats.IsYAMLFile(path):
		return "yaml"
	case formats.IsJSONFile(path):
		return "json"
	case formats.IsIniFile(path):
		return "ini"
	default:
		return ""
	}
}

func parseVault(cleartext []byte, path string) (credentials.Vault, error) {
	var vault credentials.Vault
	switch sopsFormat(path) {
	case "yaml":
		if err := yaml.Unmarshal(cleartext, &vault); err != nil {
			return vault, fmt.Errorf("error unmarshaling SOPS YAML %v: %w", path, err)
		}
	case "json":
		if err := json.Unmarshal(cleartext, &vault); err != nil {
			return vault, fmt.Errorf("error unmarshaling SOPS JSON %v: %w", path, err)
		}
	case "ini":
		return parseIniVault(cleartext, path)
	default:
		return vault, fmt.Errorf("invalid sops file: %v", path)
	}
	return vault, nil
}

// parseIniVault reads [globals], [drivers.NAME] and [machines.NAME] sections.
func parseIniVault(cleartext []byte, path string) (credentials.Vault, error) {
	vault := credentials.Vault{
		Globals:  make(map[string]any),
		Drivers:  make(map[string]map[string]any),
		Machines: make(map[string]map[string]any),
	}
	cfg, err := ini.Load(cleartext)
	if err != nil {
		return vault, fmt.Errorf("error unmarshaling SOPS INI %v: %w", path, err)
	}
	for _, section := range cfg.Sections() {
		values := make(map[string]any)
		for k, v := range section.KeysHash() {
			values[k] = v
		}
		name := section.Name()
		switch {
		case name == ini.DefaultSection || name == "globals":
			for k, v := range values {
				vault.Globals[k] = v
			}
		case strings.HasPrefix(name, "drivers."):
			vault.Drivers[strings.TrimPrefix(name, "drivers.")] = values
		case strings.HasPrefix(name, "machines."):
			vault.Machines[strings.TrimPrefix(name, "machines.")] = values
		default:
			log.Warn("ignoring unknown vault section", "file", path, "section", name)
		}
	}
	return vault, nil
}
