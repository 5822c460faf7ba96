package transform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/emirpasic/gods/sets/treeset"
	"machinebarter.dev/barter/pkg/document"
)

var (
	ErrUnknownArtifact   = errors.New("no artifact file known for path field")
	ErrArtifactConflict  = errors.New("conflicting content for artifact")
	ErrMissingDriverName = errors.New("document has no DriverName")
	ErrNoCredentials     = errors.New("no credential source configured")
)

// CredentialRequest describes a redacted secret the deserializer needs back.
// Label is the prompt text shown to a user, e.g. "virtualbox password: ".
type CredentialRequest struct {
	Field  string
	Driver string
	Label  string
	Hidden bool
}

type CredentialSource interface {
	Credential(context.Context, CredentialRequest) (string, error)
}

// Deserializer rebuilds a live machine configuration from its shareable form,
// writing inlined files under targetDir.
type Deserializer struct {
	targetDir string
	creds     CredentialSource
	opts      options

	written  *treeset.Set
	contents map[string]string
}

func NewDeserializer(targetDir string, creds CredentialSource, opts ...Option) (*Deserializer, error) {
	if targetDir == "" {
		return nil, errors.New("need target directory")
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Deserializer{
		targetDir: targetDir,
		creds:     creds,
		opts:      o,
		written:   treeset.NewWithStringComparator(),
		contents:  make(map[string]string),
	}, nil
}

// Deserialize returns a transformed copy of doc. DriverName is read from the top
// level of doc whenever a secret has to be requested.
func (d *Deserializer) Deserialize(ctx context.Context, doc *document.Node) (*document.Node, error) {
	d.written.Clear()
	clear(d.contents)
	out := doc.Clone()
	if err := d.walk(ctx, out, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Written lists the files materialized by the last Deserialize call, sorted.
func (d *Deserializer) Written() []string {
	values := d.written.Values()
	files := make([]string, 0, len(values))
	for _, v := range values {
		files = append(files, v.(string))
	}
	return files
}

func (d *Deserializer) walk(ctx context.Context, root, n *document.Node) error {
	switch n.Kind {
	case document.Object:
		for i := range n.Fields {
			f := &n.Fields[i]
			if f.Value == nil {
				continue
			}
			if f.Value.IsContainer() {
				if err := d.walk(ctx, root, f.Value); err != nil {
					return err
				}
				continue
			}
			v, err := d.leaf(ctx, root, f.Name, f.Value)
			if err != nil {
				return err
			}
			f.Value = v
		}
	case document.Array:
		// scalar items have no field name and are kept as exported
		for _, item := range n.Items {
			if !item.IsContainer() {
				continue
			}
			if err := d.walk(ctx, root, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Deserializer) leaf(ctx context.Context, root *document.Node, name string, v *document.Node) (*document.Node, error) {
	str, ok := v.AsString()
	if !ok {
		return v, nil
	}
	if sf, ok := secretFields[name]; ok && str == Omitted {
		secret, err := d.recoverSecret(ctx, root, name, sf)
		if err != nil {
			return nil, err
		}
		return document.NewString(secret), nil
	}
	if str != "" && IsPathField(name) && !strings.HasPrefix(str, "~") {
		dest, err := d.materialize(name, str)
		if err != nil {
			return nil, err
		}
		return document.NewString(dest), nil
	}
	if strings.HasPrefix(str, "~") {
		return document.NewString(expandHome(str, d.opts.home)), nil
	}
	return v, nil
}

func (d *Deserializer) recoverSecret(ctx context.Context, root *document.Node, name string, sf secretField) (string, error) {
	if d.creds == nil {
		return "", fmt.Errorf("%w for %v", ErrNoCredentials, name)
	}
	driver, err := driverName(root)
	if err != nil {
		return "", err
	}
	secret, err := d.creds.Credential(ctx, CredentialRequest{
		Field:  name,
		Driver: driver,
		Label:  fmt.Sprintf("%v %v: ", driver, sf.label),
		Hidden: sf.hidden,
	})
	if err != nil {
		return "", fmt.Errorf("error recovering %v: %w", name, err)
	}
	return secret, nil
}

func (d *Deserializer) materialize(name, content string) (string, error) {
	base, ok := d.opts.artifacts.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %v (known: %v)", ErrUnknownArtifact, name, strings.Join(d.opts.artifacts.Names(), ", "))
	}
	dest := filepath.Join(d.targetDir, base)
	if prev, ok := d.contents[dest]; ok {
		if prev != content {
			return "", fmt.Errorf("%w: %v", ErrArtifactConflict, dest)
		}
		return dest, nil
	}
	if err := os.WriteFile(dest, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("error writing %v: %w", dest, err)
	}
	log.Debug("materialized artifact", "field", name, "path", dest)
	d.contents[dest] = content
	d.written.Add(dest)
	return dest, nil
}

func driverName(root *document.Node) (string, error) {
	v, ok := root.Get("DriverName")
	if !ok || v == nil || v.Kind != document.Scalar || v.Value == nil {
		return "", ErrMissingDriverName
	}
	if s, ok := v.AsString(); ok {
		return s, nil
	}
	return fmt.Sprint(v.Value), nil
}
