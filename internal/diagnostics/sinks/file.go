// Package sinks provides diagnostics.Sink implementations backed by the local
// filesystem, Google Cloud Storage and the structured logger.
package sinks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/dwellist/internal/diagnostics"
)

// FileConfig captures the parameters for the filesystem sink.
type FileConfig struct {
	// Dir is the directory page dumps are written to.
	Dir string `mapstructure:"dir"`
}

// FileSink writes each event body to Dir/<object name>.
type FileSink struct {
	dir string
}

// NewFileSink creates the directory if needed and checks it is writable.
func NewFileSink(cfg FileConfig) (*FileSink, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("diagnostics directory is required")
	}

	info, err := os.Stat(cfg.Dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.Dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create diagnostics directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat diagnostics directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("diagnostics path %q is not a directory", cfg.Dir)
	}

	probe := filepath.Join(cfg.Dir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("diagnostics directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}
	return &FileSink{dir: cfg.Dir}, nil
}

// Record writes the event body, replacing any earlier dump for the same record.
func (s *FileSink) Record(_ context.Context, evt diagnostics.Event) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("invalid diagnostic event: %w", err)
	}
	path, err := s.pathFor(evt.ObjectName())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, evt.Body, 0o600); err != nil {
		return fmt.Errorf("write diagnostic %s: %w", path, err)
	}
	return nil
}

func (s *FileSink) pathFor(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("object name is required")
	}
	base := filepath.Clean(s.dir)
	full := filepath.Clean(filepath.Join(base, name))
	if !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return full, nil
}
