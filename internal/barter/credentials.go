package barter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"machinebarter.dev/barter/internal/credentials"
	agecreds "machinebarter.dev/barter/internal/credentials/age"
	filecreds "machinebarter.dev/barter/internal/credentials/file"
	"machinebarter.dev/barter/internal/credentials/mem"
	sopscreds "machinebarter.dev/barter/internal/credentials/sops"
)

// NewCredentialStores builds the configured vault stores. Overrides, given as
// KEY=VALUE pairs, are checked before any vault.
func NewCredentialStores(c *Config, overrides []string) ([]credentials.Store, error) {
	var stores []credentials.Store
	if len(overrides) > 0 {
		m := mem.NewMemoryStore()
		for _, o := range overrides {
			key, value, ok := strings.Cut(o, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("invalid secret %q, expected KEY=VALUE", o)
			}
			m.Add(key, value)
		}
		stores = append(stores, m)
	}
	for _, sc := range c.StoreConfigs() {
		var s credentials.Store
		var err error
		switch conf := sc.(type) {
		case *filecreds.Config:
			s, err = filecreds.NewFileStore(*conf, c.CredentialsDir)
		case *sopscreds.Config:
			s, err = sopscreds.NewSopsStore(*conf, c.CredentialsDir)
		case *agecreds.Config:
			s, err = agecreds.NewAgeStore(*conf, c.CredentialsDir)
		default:
			return nil, fmt.Errorf("unsupported credential store %v", sc.SourceType())
		}
		if err != nil {
			return nil, fmt.Errorf("error creating %v credentials: %w", sc.SourceType(), err)
		}
		stores = append(stores, s)
	}
	log.Debug("configured credential stores", "count", len(stores))
	return stores, nil
}
