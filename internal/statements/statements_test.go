package statements

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"valid", "gs://statements/2026/jan.csv", "statements", "2026/jan.csv", false},
		{"nested object", "gs://b/a/b/c.txt", "b", "a/b/c.txt", false},
		{"no scheme", "statements/jan.csv", "", "", true},
		{"bucket only", "gs://statements", "", "", true},
		{"empty object", "gs://statements/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = (%q, %q), want (%q, %q)",
					tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestToLines(t *testing.T) {
	data := []byte("header\r\n\r\n  \nline two\nline three\n")
	lines := ToLines(data)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %v", len(lines), lines)
	}
	if lines[0] != "header" || lines[1] != "line two" {
		t.Errorf("lines = %v", lines)
	}
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.txt")
	if err := os.WriteFile(path, []byte("2026-01-02  SHOP  -5.00\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := FileFetcher{}.Fetch(context.Background(), path)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("Fetch returned empty data")
	}

	if _, err := (FileFetcher{}).Fetch(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Fetch of missing file succeeded")
	}
}
