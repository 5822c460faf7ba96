package age

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"machinebarter.dev/barter/internal/credentials"
)

type AgeStore struct {
	root          string
	identities    []age.Identity
	vaultfiles    []string
	generalVaults []string
	loadAllVaults bool
}

func NewAgeStore(c Config, credentialsDir string) (*AgeStore, error) {
	err := c.Validate()
	if err != nil {
		return nil, err
	}
	identPath := c.IdentPath
	if !filepath.IsAbs(identPath) {
		identPath = filepath.Join(credentialsDir, identPath)
	}
	ifile, err := os.Open(identPath)
	if err != nil {
		return nil, err
	}
	defer ifile.Close()
	idents, err := age.ParseIdentities(ifile)
	if err != nil {
		return nil, fmt.Errorf("error parsing age identities: %w", err)
	}
	if len(idents) == 0 {
		return nil, errors.New("need at least one identity")
	}
	a := AgeStore{
		root:          filepath.Join(credentialsDir, c.BaseDir),
		identities:    idents,
		generalVaults: c.GeneralVaults,
		loadAllVaults: c.LoadAllVaults,
	}
	err = filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !d.IsDir() && filepath.Ext(path) == ".age" {
			a.vaultfiles = append(a.vaultfiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning age vaults: %w", err)
	}
	return &a, nil
}

func (a *AgeStore) Lookup(ctx context.Context, f credentials.Filter) (map[string]any, error) {
	results := make(map[string]any)
	for _, v := range credentials.SelectVaultFiles(a.root, a.vaultfiles, a.generalVaults, f, a.loadAllVaults) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		vault, err := a.decryptVault(v)
		if err != nil {
			return nil, err
		}
		log.Debug("loaded vault", "file", v)
		credentials.ExtractVaultCredentials(results, vault, f)
	}
	return results, nil
}

func (a *AgeStore) decryptVault(path string) (credentials.Vault, error) {
	var vault credentials.Vault
	file, err := os.Open(path)
	if err != nil {
		return vault, err
	}
	defer file.Close()
	decrypted, err := age.Decrypt(file, a.identities...)
	if err != nil {
		return vault, fmt.Errorf("error decrypting %v: %w", path, err)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(decrypted); err != nil {
		return vault, fmt.Errorf("error decrypting %v: %w", path, err)
	}
	if err := toml.Unmarshal(buf.Bytes(), &vault); err != nil {
		return vault, fmt.Errorf("error parsing vault %v: %w", path, err)
	}
	return vault, nil
}
