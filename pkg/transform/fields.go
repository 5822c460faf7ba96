// Package transform converts machine configuration documents between their live
// form on disk and a portable form that can be handed to another host.
package transform

import (
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"

	"machinebarter.dev/barter/pkg/document"
)

// Omitted replaces redacted secrets in exported documents.
const Omitted = "omitted"

var redactedFields = []string{"username", "password", "apikey"}

type secretField struct {
	label  string
	hidden bool
}

var secretFields = map[string]secretField{
	"Password": {label: "password", hidden: true},
	"APIKey":   {label: "API key", hidden: true},
	"Username": {label: "username", hidden: false},
}

func IsPathField(name string) bool {
	return strings.Contains(strings.ToLower(name), "path")
}

func IsRedactedField(name string) bool {
	return slices.Contains(redactedFields, strings.ToLower(name))
}

// truthy treats nil, "", false and numeric zero as empty.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

// Redact returns a copy of n with every non-empty secret field masked. Unlike
// Serialize it never touches the filesystem.
func Redact(n *document.Node) *document.Node {
	out := n.Clone()
	redact(out)
	return out
}

func redact(n *document.Node) {
	switch n.Kind {
	case document.Object:
		for i := range n.Fields {
			f := &n.Fields[i]
			if f.Value.IsContainer() {
				redact(f.Value)
				continue
			}
			if f.Value != nil && IsRedactedField(f.Name) && truthy(f.Value.Value) {
				f.Value = document.NewString(Omitted)
			}
		}
	case document.Array:
		for _, item := range n.Items {
			if item.IsContainer() {
				redact(item)
			}
		}
	}
}

func expandHome(p, home string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	rest := p[1:]
	if rest == "" {
		return home
	}
	// ~user forms are not expanded
	if rest[0] != '/' && rest[0] != filepath.Separator {
		return p
	}
	return filepath.Join(home, rest)
}

func contractHome(p, home string) string {
	if home == "" || home == string(filepath.Separator) {
		return p
	}
	home = strings.TrimSuffix(home, string(filepath.Separator))
	if p == home {
		return "~"
	}
	if strings.HasPrefix(p, home+string(filepath.Separator)) {
		return "~" + p[len(home):]
	}
	return p
}
