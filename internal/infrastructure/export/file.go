// Package export writes rendered documents to disk.
package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes export files into a directory.
type FileSink struct {
	Dir string
}

// NewFileSink constructs a FileSink rooted at dir ("." when empty).
func NewFileSink(dir string) FileSink {
	if dir == "" {
		dir = "."
	}
	return FileSink{Dir: dir}
}

// Write stores data under name and returns the final path. The content goes
// to a temporary file first, so a failed write never leaves a partial export.
func (s FileSink) Write(name string, data []byte) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid export file name %q", name)
	}
	if err := os.MkdirAll(s.Dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to close export: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		cleanup()
		return "", err
	}

	path := filepath.Join(s.Dir, name)
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to move export into place: %w", err)
	}
	return path, nil
}
