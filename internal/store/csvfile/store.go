// Package csvfile persists the dataset as a single CSV artifact with a header
// row. Every save rewrites the whole file through a temporary file and an
// atomic rename.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/dwellist/internal/dataset"
	"github.com/JakeFAU/dwellist/internal/listing"
)

// Config captures the artifact location.
type Config struct {
	Path string `mapstructure:"path"`
}

// Store reads and writes the CSV artifact.
type Store struct {
	path   string
	logger *zap.Logger
}

// New validates cfg and returns a Store. The file need not exist yet.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("csv path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: cfg.Path, logger: logger.Named("csvfile")}, nil
}

// Path returns the artifact location.
func (s *Store) Path() string { return s.path }

// Load reads the artifact. A missing, empty or header-only file yields an
// empty dataset. Rows repeating an earlier id are dropped with a warning.
func (s *Store) Load(_ context.Context) (*dataset.Dataset, error) {
	d := dataset.New()
	// #nosec G304 -- path comes from operator configuration.
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", s.path, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", s.path, line, err)
		}
		row := make(dataset.Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		if err := d.Append(row); err != nil {
			s.logger.Warn("skipping row", zap.Int("line", line), zap.String("id", row[listing.ColumnID]), zap.Error(err))
		}
	}
	return d, nil
}

// Save writes header plus one row per record in the dataset's column order,
// replacing any previous artifact in full.
func (s *Store) Save(_ context.Context, d *dataset.Dataset) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	columns := d.Columns()
	w := csv.NewWriter(tmp)
	if len(columns) > 0 {
		if err := w.Write(columns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, row := range d.Rows() {
		if err := w.Write(dataset.Values(row, columns)); err != nil {
			return fmt.Errorf("write row %s: %w", row[listing.ColumnID], err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	s.logger.Debug("dataset saved", zap.String("path", s.path), zap.Int("rows", d.Len()), zap.Int("columns", len(columns)))
	return nil
}
