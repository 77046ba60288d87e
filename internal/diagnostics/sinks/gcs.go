package sinks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/dwellist/internal/diagnostics"
)

// GCSConfig captures the bucket and object prefix for the GCS sink.
type GCSConfig struct {
	Bucket string
	Prefix string
}

// GCSSink uploads each event body as an object in a bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink wires an existing storage client to the sink.
func NewGCSSink(client *storage.Client, cfg GCSConfig) (*GCSSink, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSSink{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Record uploads the body to <prefix>/<object name>.
func (s *GCSSink) Record(ctx context.Context, evt diagnostics.Event) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("invalid diagnostic event: %w", err)
	}
	name := evt.ObjectName()
	if s.prefix != "" {
		name = path.Join(s.prefix, name)
	}

	obj := s.client.Bucket(s.bucket).Object(name)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "text/html; charset=utf-8"
	writer.Metadata = map[string]string{
		"run_id": evt.RunID,
		"kind":   string(evt.Kind),
		"url":    evt.URL,
	}
	if _, err := io.Copy(writer, bytes.NewReader(evt.Body)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for gs://%s/%s: %w", s.bucket, name, err)
	}
	return nil
}
