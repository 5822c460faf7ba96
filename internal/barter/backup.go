package barter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mholt/archiver/v4"
)

// backupMachine archives an existing machine directory as a tar.gz under
// backupDir and returns the archive path.
func backupMachine(ctx context.Context, machineDir, backupDir, name string, now time.Time) (string, error) {
	if err := os.MkdirAll(backupDir, 0o700); err != nil {
		return "", fmt.Errorf("error creating backup dir: %w", err)
	}
	files, err := archiver.FilesFromDisk(nil, map[string]string{
		machineDir: name,
	})
	if err != nil {
		return "", fmt.Errorf("error collecting machine files: %w", err)
	}
	dest := filepath.Join(backupDir, fmt.Sprintf("%v-%v.tar.gz", name, now.Unix()))
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("error creating backup: %w", err)
	}
	defer out.Close()

	format := archiver.Archive{
		Compression: archiver.Gz{},
		Archival:    archiver.Tar{},
	}
	if err := format.Archive(ctx, out, files); err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("error writing backup: %w", err)
	}
	log.Info("backed up machine", "machine", name, "archive", dest)
	return dest, nil
}
