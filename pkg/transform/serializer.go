package transform

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"machinebarter.dev/barter/pkg/document"
)

// Serializer produces the shareable form of a machine configuration: secrets are
// masked, files are inlined and directories are made relative to ~.
type Serializer struct {
	opts options
}

func NewSerializer(opts ...Option) (*Serializer, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Serializer{opts: o}, nil
}

// Serialize returns a transformed copy of doc. doc itself is not modified.
func (s *Serializer) Serialize(doc *document.Node) (*document.Node, error) {
	out := doc.Clone()
	if err := s.walk(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Serializer) walk(n *document.Node) error {
	switch n.Kind {
	case document.Object:
		for i := range n.Fields {
			f := &n.Fields[i]
			if f.Value == nil {
				continue
			}
			if f.Value.IsContainer() {
				if err := s.walk(f.Value); err != nil {
					return err
				}
				continue
			}
			v, err := s.leaf(f.Name, true, f.Value)
			if err != nil {
				return fmt.Errorf("%v: %w", f.Name, err)
			}
			f.Value = v
		}
	case document.Array:
		for i, item := range n.Items {
			if item == nil {
				continue
			}
			if item.IsContainer() {
				if err := s.walk(item); err != nil {
					return err
				}
				continue
			}
			v, err := s.leaf("", false, item)
			if err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
			n.Items[i] = v
		}
	}
	return nil
}

func (s *Serializer) leaf(name string, named bool, v *document.Node) (*document.Node, error) {
	if named && IsRedactedField(name) && truthy(v.Value) {
		log.Debug("redacting secret", "field", name)
		return document.NewString(Omitted), nil
	}
	str, ok := v.AsString()
	if !ok || str == "" {
		return v, nil
	}
	p := expandHome(str, s.opts.home)
	info, err := os.Stat(p)
	if err != nil {
		// not something on this filesystem, pass it through
		return v, nil
	}
	switch {
	case info.Mode().IsRegular():
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("error reading %v: %w", p, err)
		}
		log.Debug("inlining file", "field", name, "path", p)
		return document.NewString(string(data)), nil
	case info.IsDir():
		return document.NewString(contractHome(p, s.opts.home)), nil
	default:
		return v, nil
	}
}
