package barter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"machinebarter.dev/barter/internal/credentials"
	"machinebarter.dev/barter/pkg/document"
	"machinebarter.dev/barter/pkg/prompt"
	"machinebarter.dev/barter/pkg/transform"
)

var ErrMissingName = errors.New("configuration has no Name")

type Barter struct {
	Store     *MachineStore
	artifacts *transform.ArtifactTable
	stores    []credentials.Store
	prompter  prompt.Prompter
	home      string
	diffs     bool
	backup    bool
	backupDir string
	noPrompt  bool
	out       io.Writer
	now       func() time.Time
}

type ImportResult struct {
	Name       string
	Dir        string
	ConfigPath string
	Written    []string
	Backup     string
}

func New(c *Config, stores []credentials.Store, p prompt.Prompter) (*Barter, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	artifacts, err := transform.DefaultArtifacts().With(c.Artifacts)
	if err != nil {
		return nil, err
	}
	return &Barter{
		Store:     NewMachineStore(c.StoreDir),
		artifacts: artifacts,
		stores:    stores,
		prompter:  p,
		home:      c.Home,
		diffs:     c.Diffs,
		backup:    c.Backup,
		backupDir: c.BackupDir,
		noPrompt:  c.NoPrompt,
		out:       os.Stdout,
		now:       time.Now,
	}, nil
}

func (b *Barter) Artifacts() *transform.ArtifactTable {
	return b.artifacts
}

// SetOutput changes where diffs are printed.
func (b *Barter) SetOutput(w io.Writer) {
	b.out = w
}

// Export writes the shareable form of the named machine's configuration to w.
func (b *Barter) Export(_ context.Context, machine string, w io.Writer) error {
	path, err := b.Store.ConfigPath(machine)
	if err != nil {
		return err
	}
	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	s, err := transform.NewSerializer(transform.WithHome(b.home))
	if err != nil {
		return err
	}
	exported, err := s.Serialize(doc)
	if err != nil {
		return fmt.Errorf("error exporting %v: %w", machine, err)
	}
	log.Debug("exported machine", "machine", machine, "config", path)
	return document.Encode(w, exported)
}

// Import installs the machine described by configFile into the machine store.
func (b *Barter) Import(ctx context.Context, configFile string) (*ImportResult, error) {
	configFile, err := homedir.Expand(configFile)
	if err != nil {
		return nil, err
	}
	doc, err := readDocument(configFile)
	if err != nil {
		return nil, err
	}
	name, err := machineName(doc)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", configFile, err)
	}
	result := &ImportResult{Name: name}

	var current *document.Node
	existed := b.Store.Exists(name)
	if existed {
		log.Debug("machine already exists", "machine", name)
		if b.backup {
			dir, _ := b.Store.MachineDir(name)
			result.Backup, err = backupMachine(ctx, dir, b.backupDir, name, b.now())
			if err != nil {
				return nil, err
			}
		}
		if b.diffs {
			current, err = b.currentConfig(name)
			if err != nil {
				return nil, err
			}
		}
	}

	result.Dir, err = b.Store.EnsureMachineDir(name)
	if err != nil {
		return nil, err
	}
	d, err := transform.NewDeserializer(result.Dir, &credentialResolver{
		machine:  name,
		stores:   b.stores,
		prompter: b.prompter,
		noPrompt: b.noPrompt,
	}, transform.WithHome(b.home), transform.WithArtifacts(b.artifacts))
	if err != nil {
		return nil, err
	}
	imported, err := d.Deserialize(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("error importing %v: %w", name, err)
	}
	result.Written = d.Written()

	if b.diffs {
		if current == nil {
			current = document.NewObject()
		}
		diffs, err := diffConfigs(current, imported)
		if err != nil {
			return nil, err
		}
		printDiffs(b.out, name, diffs)
	}

	var buf bytes.Buffer
	if err := document.Encode(&buf, imported); err != nil {
		return nil, err
	}
	result.ConfigPath = filepath.Join(result.Dir, configFileName)
	if err := os.WriteFile(result.ConfigPath, buf.Bytes(), 0o600); err != nil {
		return nil, fmt.Errorf("error writing %v: %w", result.ConfigPath, err)
	}
	log.Debug("imported machine", "machine", name, "dir", result.Dir, "files", len(result.Written))
	return result, nil
}

func (b *Barter) currentConfig(name string) (*document.Node, error) {
	path, err := b.Store.ConfigPath(name)
	if err != nil {
		return nil, err
	}
	doc, err := readDocument(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return doc, err
}

func readDocument(path string) (*document.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := document.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("error parsing %v: %w", path, err)
	}
	return doc, nil
}

func machineName(doc *document.Node) (string, error) {
	if doc.Kind != document.Object {
		return "", fmt.Errorf("expected an object, got %v", doc.Kind)
	}
	v, ok := doc.Get("Name")
	if !ok {
		return "", ErrMissingName
	}
	name, ok := v.AsString()
	if !ok || name == "" {
		return "", fmt.Errorf("%w: Name must be a non-empty string", ErrMissingName)
	}
	return name, nil
}
