package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"machinebarter.dev/barter/internal/credentials"
)

type FileStore struct {
	root          string
	vaultfiles    []string
	generalVaults []string
	loadAllVaults bool
}

func NewFileStore(c Config, credentialsDir string) (*FileStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	f := FileStore{
		root:          filepath.Join(credentialsDir, c.BaseDir),
		generalVaults: c.GeneralVaults,
		loadAllVaults: c.LoadAllVaults,
	}
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !d.IsDir() && filepath.Ext(path) == ".toml" {
			f.vaultfiles = append(f.vaultfiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning file vaults: %w", err)
	}
	return &f, nil
}

func (s *FileStore) Lookup(ctx context.Context, f credentials.Filter) (map[string]any, error) {
	results := make(map[string]any)
	for _, v := range credentials.SelectVaultFiles(s.root, s.vaultfiles, s.generalVaults, f, s.loadAllVaults) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		data, err := os.ReadFile(v)
		if err != nil {
			return nil, err
		}
		var vault credentials.Vault
		if err := toml.Unmarshal(data, &vault); err != nil {
			return nil, fmt.Errorf("error parsing vault %v: %w", v, err)
		}
		log.Debug("loaded vault", "file", v)
		credentials.ExtractVaultCredentials(results, vault, f)
	}
	return results, nil
}
