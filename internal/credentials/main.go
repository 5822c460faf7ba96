package credentials

import (
	"context"
	"maps"
	"path/filepath"
	"slices"
	"strings"
)

type Filter struct {
	Machine string
	Driver  string
}

type Vault struct {
	Globals  map[string]any            `toml:"globals" yaml:"globals" json:"globals" ini:"globals"`
	Drivers  map[string]map[string]any `toml:"drivers" yaml:"drivers" json:"drivers" ini:"drivers"`
	Machines map[string]map[string]any `toml:"machines" yaml:"machines" json:"machines" ini:"machines"`
}

type Store interface {
	Lookup(context.Context, Filter) (map[string]any, error)
}

// StoreConfig is the configuration section of a single vault store.
type StoreConfig interface {
	SourceType() string
	Validate() error
	String() string
}

// ExtractVaultCredentials copies the entries of v matching f into results.
// Machine keys override driver keys override global keys.
func ExtractVaultCredentials(results map[string]any, v Vault, f Filter) map[string]any {
	maps.Copy(results, v.Globals)
	if f.Driver != "" {
		maps.Copy(results, v.Drivers[f.Driver])
	}
	if f.Machine != "" {
		maps.Copy(results, v.Machines[f.Machine])
	}
	return results
}

// SelectVaultFiles picks the vault files to load for f, relative to root.
func SelectVaultFiles(root string, vaultfiles, generalVaults []string, f Filter, loadAll bool) []string {
	if loadAll {
		return vaultfiles
	}
	generalFiles := make([]string, 0, len(vaultfiles))
	driverFiles := make([]string, 0, len(vaultfiles))
	machineFiles := make([]string, 0, len(vaultfiles))
	for _, v := range vaultfiles {
		rel, err := filepath.Rel(root, v)
		if err != nil {
			rel = v
		}
		if slices.Contains(generalVaults, filepath.Base(v)) {
			generalFiles = append(generalFiles, v)
			continue
		}
		if f.Driver != "" && strings.Contains(rel, f.Driver) {
			driverFiles = append(driverFiles, v)
		}
		if f.Machine != "" && strings.Contains(rel, f.Machine) {
			machineFiles = append(machineFiles, v)
		}
	}
	// general, then driver, then machine files so later files win
	files := append(generalFiles, driverFiles...)
	return append(files, machineFiles...)
}
