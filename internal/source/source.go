// Package source fetches documents to ingest from Cloud Storage or the
// local filesystem.
package source

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Object is a fetched document.
type Object struct {
	URI  string
	Name string
	// FileID is the source system's stable id for the file, when it has
	// one. It survives renames, so identity prefers it over Name.
	FileID      string
	ContentType string
	Updated     time.Time
	Data        []byte
}

// Fetcher loads a document by URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (*Object, error)
}

// Router sends gs:// URIs to GCS and everything else to Local.
type Router struct {
	GCS   Fetcher
	Local Fetcher
}

func (r *Router) Fetch(ctx context.Context, uri string) (*Object, error) {
	if strings.HasPrefix(uri, "gs://") {
		if r.GCS == nil {
			return nil, fmt.Errorf("Fetch: %s: cloud storage is not configured", uri)
		}
		return r.GCS.Fetch(ctx, uri)
	}
	if r.Local == nil {
		return nil, fmt.Errorf("Fetch: %s: local files are not enabled", uri)
	}
	return r.Local.Fetch(ctx, uri)
}

// Local reads files from disk. It has no stable file ids.
type Local struct{}

func (Local) Fetch(ctx context.Context, uri string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := strings.TrimPrefix(uri, "file://")
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("Fetch: %s is a directory", p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return &Object{
		URI:         uri,
		Name:        filepath.Base(p),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(p))),
		Updated:     info.ModTime(),
		Data:        data,
	}, nil
}

// ParseURI splits gs://bucket/path/to/object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI extracts the filename from a storage URI or path.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func FilenameFromURI(uri string) string {
	if strings.HasPrefix(uri, "gs://") {
		trimmed := strings.TrimPrefix(uri, "gs://")
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) < 2 {
			return trimmed
		}
		return path.Base(parts[1])
	}
	return filepath.Base(strings.TrimPrefix(uri, "file://"))
}
