package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type mockFetcher struct {
	FetchFunc func(ctx context.Context, uri string) (*Object, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, uri string) (*Object, error) {
	return m.FetchFunc(ctx, uri)
}

func named(name string) *mockFetcher {
	return &mockFetcher{FetchFunc: func(ctx context.Context, uri string) (*Object, error) {
		return &Object{URI: uri, Name: name}, nil
	}}
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{"gs://bucket/path/to/file.pdf", "bucket", "path/to/file.pdf", false},
		{"gs://bucket/file.csv", "bucket", "file.csv", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"s3://bucket/file", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			b, o, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if b != tt.bucket || o != tt.object {
				t.Errorf("ParseURI() = %q, %q; want %q, %q", b, o, tt.bucket, tt.object)
			}
		})
	}
}

func TestFilenameFromURI(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/folder/file.pdf": "file.pdf",
		"gs://bucket":                 "bucket",
		"/tmp/statements/chase.csv":   "chase.csv",
		"file:///tmp/a.ofx":           "a.ofx",
	}
	for uri, want := range tests {
		if got := FilenameFromURI(uri); got != want {
			t.Errorf("FilenameFromURI(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestRouter(t *testing.T) {
	r := &Router{GCS: named("gcs"), Local: named("local")}
	ctx := context.Background()

	obj, err := r.Fetch(ctx, "gs://b/o.pdf")
	if err != nil || obj.Name != "gcs" {
		t.Errorf("gs:// routed to %v, %v", obj, err)
	}
	obj, err = r.Fetch(ctx, "/tmp/o.pdf")
	if err != nil || obj.Name != "local" {
		t.Errorf("path routed to %v, %v", obj, err)
	}

	if _, err := (&Router{Local: Local{}}).Fetch(ctx, "gs://b/o"); err == nil {
		t.Error("expected error without a GCS fetcher")
	}
	if _, err := (&Router{GCS: named("gcs")}).Fetch(ctx, "/tmp/o"); err == nil {
		t.Error("expected error without a local fetcher")
	}
}

func TestLocalFetch(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "activity.csv")
	if err := os.WriteFile(p, []byte("Date,Amount\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	obj, err := Local{}.Fetch(context.Background(), p)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if obj.Name != "activity.csv" || string(obj.Data) != "Date,Amount\n" || obj.FileID != "" {
		t.Errorf("Fetch() = %+v", obj)
	}
	if obj.Updated.IsZero() {
		t.Error("Updated should carry the file modification time")
	}

	if _, err := (Local{}).Fetch(context.Background(), dir); err == nil {
		t.Error("expected error for a directory")
	}
	if _, err := (Local{}).Fetch(context.Background(), filepath.Join(dir, "missing.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want os.ErrNotExist", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Local{}).Fetch(ctx, p); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled fetch error = %v", err)
	}
}
