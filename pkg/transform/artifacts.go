package transform

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/emirpasic/gods/maps/treemap"
)

var defaultArtifacts = map[string]string{
	"ServerCertPath":   "server.pem",
	"ClientKeyPath":    "key.pem",
	"CaPrivateKeyPath": "ca-key.pem",
	"ServerKeyPath":    "server-key.pem",
	"ClientCertPath":   "cert.pem",
	"CaCertPath":       "ca.pem",
	"SSHKeyPath":       "id_rsa",
}

// ArtifactTable maps path field names to the file name their inlined content is
// written to on import.
type ArtifactTable struct {
	entries *treemap.Map
}

func DefaultArtifacts() *ArtifactTable {
	t := &ArtifactTable{entries: treemap.NewWithStringComparator()}
	for field, base := range defaultArtifacts {
		t.entries.Put(field, base)
	}
	return t
}

// With returns a copy of the table extended with extra mappings. Extra entries
// override existing ones.
func (t *ArtifactTable) With(extra map[string]string) (*ArtifactTable, error) {
	result := &ArtifactTable{entries: treemap.NewWithStringComparator()}
	it := t.entries.Iterator()
	for it.Next() {
		result.entries.Put(it.Key(), it.Value())
	}
	for field, base := range extra {
		if err := validateBasename(base); err != nil {
			return nil, fmt.Errorf("invalid artifact for %v: %w", field, err)
		}
		result.entries.Put(field, base)
	}
	return result, nil
}

func (t *ArtifactTable) Lookup(field string) (string, bool) {
	v, found := t.entries.Get(field)
	if !found {
		return "", false
	}
	return v.(string), true
}

func (t *ArtifactTable) Names() []string {
	keys := t.entries.Keys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.(string))
	}
	return names
}

func (t *ArtifactTable) Len() int {
	return t.entries.Size()
}

func (t *ArtifactTable) String() string {
	var sb strings.Builder
	it := t.entries.Iterator()
	for it.Next() {
		fmt.Fprintf(&sb, "%v: %v\n", it.Key(), it.Value())
	}
	return sb.String()
}

func validateBasename(base string) error {
	if base == "" || base == "." || base == ".." {
		return fmt.Errorf("empty file name %q", base)
	}
	if filepath.Base(base) != base || strings.ContainsAny(base, `/\`) {
		return fmt.Errorf("file name %q contains a path separator", base)
	}
	return nil
}
