// Package output serializes a run's articles and writes them to stdout, a file, or a GCS object.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"gopkg.in/yaml.v3"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Destination receives one encoded document.
type Destination interface {
	Write(ctx context.Context, data []byte, contentType string) (string, error)
}

// Encode renders articles in format. An empty set encodes as an empty list.
func Encode(format string, articles []ingest.Article) ([]byte, string, error) {
	if articles == nil {
		articles = []ingest.Article{}
	}
	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "", FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(articles); err != nil {
			return nil, "", fmt.Errorf("encode json: %w", err)
		}
		return buf.Bytes(), "application/json", nil
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(articles); err != nil {
			return nil, "", fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, "", fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), "application/yaml", nil
	default:
		return nil, "", fmt.Errorf("unsupported format %q", format)
	}
}

// Write encodes articles and hands them to dest, returning the location written.
func Write(ctx context.Context, dest Destination, format string, articles []ingest.Article) (string, error) {
	data, contentType, err := Encode(format, articles)
	if err != nil {
		return "", err
	}
	return dest.Write(ctx, data, contentType)
}

// Stream writes to an io.Writer such as stdout.
type Stream struct {
	W io.Writer
}

// Write copies data to the stream.
func (s Stream) Write(_ context.Context, data []byte, _ string) (string, error) {
	if _, err := s.W.Write(data); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	return "-", nil
}

// File writes to a local path, creating parent directories.
type File struct {
	Path string
}

// Write replaces the file contents.
func (f File) Write(_ context.Context, data []byte, _ string) (string, error) {
	if strings.TrimSpace(f.Path) == "" {
		return "", fmt.Errorf("path is required")
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create parent directories: %w", err)
		}
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", f.Path, err)
	}
	return f.Path, nil
}

// GCS uploads to a bucket object.
type GCS struct {
	Client *storage.Client
	Bucket string
	Object string
}

// Write uploads data and returns a gs:// URI.
func (g GCS) Write(ctx context.Context, data []byte, contentType string) (string, error) {
	if g.Client == nil {
		return "", fmt.Errorf("storage client is required")
	}
	if g.Bucket == "" || g.Object == "" {
		return "", fmt.Errorf("bucket and object are required")
	}
	writer := g.Client.Bucket(g.Bucket).Object(g.Object).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", g.Bucket, g.Object), nil
}

// ParseGS splits gs://bucket/object.
func ParseGS(target string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(target, "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}

// Resolve maps a target to a Destination: "" or "-" is stdout, gs:// is GCS, anything else a file.
// The returned closer releases any client opened for the destination.
func Resolve(ctx context.Context, target string, stdout io.Writer) (Destination, func() error, error) {
	noop := func() error { return nil }
	switch {
	case target == "" || target == "-":
		return Stream{W: stdout}, noop, nil
	case strings.HasPrefix(target, "gs://"):
		bucket, object, ok := ParseGS(target)
		if !ok {
			return nil, noop, fmt.Errorf("invalid gcs target %q", target)
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("create storage client: %w", err)
		}
		return GCS{Client: client, Bucket: bucket, Object: object}, client.Close, nil
	default:
		return File{Path: target}, noop, nil
	}
}
