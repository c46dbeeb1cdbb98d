// Package statements fetches raw statement files for import. Sources are a
// local path or a gs:// URI; the bytes come back as text lines for the
// extractor chain.
package statements

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Fetcher retrieves statement bytes from a storage location.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// GCSFetcher reads objects from Google Cloud Storage using Application
// Default Credentials.
type GCSFetcher struct{}

// NewGCSFetcher returns a Fetcher for gs:// URIs.
func NewGCSFetcher() *GCSFetcher {
	return &GCSFetcher{}
}

// Fetch downloads the object named by a gs://bucket/object URI.
func (GCSFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

// FileFetcher reads statements from the local filesystem. Used by the CLI
// and in tests.
type FileFetcher struct{}

// Fetch reads the file at path.
func (FileFetcher) Fetch(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read statement file %q: %w", path, err)
	}
	return data, nil
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object name.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	trimmed, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %q", uri)
	}
	bucket, object, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed GCS URI %q, want gs://bucket/object", uri)
	}
	return bucket, object, nil
}

// ToLines splits raw statement bytes into trimmed, non-empty text lines.
func ToLines(data []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
