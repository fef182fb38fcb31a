package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/dvloznov/finance-ingest/internal/retry"
)

// FileIDKey is the object metadata key holding the stable file id. Object
// copies keep custom metadata, so a renamed object keeps its id.
const FileIDKey = "file-id"

const uploadTimeout = 2 * time.Minute

// GCS fetches and uploads objects in Cloud Storage.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
type GCS struct {
	client *storage.Client
	policy retry.Policy
}

func NewGCS(ctx context.Context, policy retry.Policy) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCS: create storage client: %w", err)
	}
	return &GCS{client: client, policy: policy}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

// Fetch downloads the object at uri along with its attributes. Transient
// failures are retried; a missing object is not.
func (g *GCS) Fetch(ctx context.Context, uri string) (*Object, error) {
	bucket, name, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	obj := g.client.Bucket(bucket).Object(name)

	var out *Object
	err = retry.Do(ctx, "gcs fetch", g.policy, func(ctx context.Context) error {
		attrs, err := obj.Attrs(ctx)
		if err != nil {
			return fmt.Errorf("reading attrs of %s: %w", uri, err)
		}
		rc, err := obj.Generation(attrs.Generation).NewReader(ctx)
		if err != nil {
			return fmt.Errorf("opening %s: %w", uri, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("reading %s: %w", uri, err)
		}
		out = &Object{
			URI:         uri,
			Name:        FilenameFromURI(uri),
			FileID:      attrs.Metadata[FileIDKey],
			ContentType: attrs.ContentType,
			Updated:     attrs.Updated,
			Data:        data,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return out, nil
}

// Upload copies a local file to bucket/objectName, tags it with a new
// file id and returns its gs:// URI.
func (g *GCS) Upload(ctx context.Context, bucket, objectName, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("Upload: open file %q: %w", filePath, err)
	}
	defer f.Close()

	if objectName == "" {
		objectName = filepath.Base(filePath)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := g.client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	w.Metadata = map[string]string{FileIDKey: uuid.NewString()}
	w.ContentType = contentType(filePath)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copy file to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}

	return "gs://" + bucket + "/" + objectName, nil
}

func contentType(p string) string {
	switch filepath.Ext(p) {
	case ".pdf", ".PDF":
		return "application/pdf"
	case ".csv", ".CSV":
		return "text/csv"
	case ".ofx", ".qfx", ".OFX", ".QFX":
		return "application/x-ofx"
	}
	return "application/octet-stream"
}
