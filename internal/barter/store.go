package barter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const configFileName = "config.json"

var ErrInvalidMachineName = errors.New("invalid machine name")

// MachineStore is the directory holding one subdirectory per machine.
type MachineStore struct {
	root string
}

func NewMachineStore(root string) *MachineStore {
	return &MachineStore{root: root}
}

func (s *MachineStore) MachineDir(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMachineName, name)
	}
	return filepath.Join(s.root, name), nil
}

func (s *MachineStore) ConfigPath(name string) (string, error) {
	dir, err := s.MachineDir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// EnsureMachineDir creates the machine directory. An existing directory is not
// an error.
func (s *MachineStore) EnsureMachineDir(name string) (string, error) {
	dir, err := s.MachineDir(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("error creating machine store: %w", err)
	}
	err = os.Mkdir(dir, 0o700)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("error creating machine dir: %w", err)
	}
	if err != nil {
		info, statErr := os.Stat(dir)
		if statErr != nil {
			return "", fmt.Errorf("error creating machine dir: %w", statErr)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("error creating machine dir: %v exists and is not a directory", dir)
		}
	}
	return dir, nil
}

func (s *MachineStore) Exists(name string) bool {
	dir, err := s.MachineDir(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
