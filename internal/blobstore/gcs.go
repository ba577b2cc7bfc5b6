package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// GCSStore stores blobs in a Google Cloud Storage bucket. It holds a shared
// storage client to avoid creating a new connection per operation.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a GCS-backed blob store. It assumes Application
// Default Credentials are configured.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStore: create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Close releases the underlying storage client.
func (s *GCSStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Store implements BlobStore. Objects are laid out as
// uploads/<ownerID>/<kind>/<yyyy/mm/dd>/<uuid>-<filename>.
func (s *GCSStore) Store(ctx context.Context, data []byte, filename, kind, ownerID string) (string, error) {
	objectName := fmt.Sprintf("uploads/%s/%s/%s/%s-%s",
		ownerID,
		strings.ToLower(kind),
		time.Now().UTC().Format("2006/01/02"),
		uuid.New().String(),
		sanitizeFilename(filename),
	)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Store: copy bytes to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Store: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// Read implements BlobStore.
func (s *GCSStore) Read(ctx context.Context, blobPath string) ([]byte, error) {
	bucket, object, err := splitURI(blobPath)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Read: opening object %s: %w", blobPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Read: reading bytes: %w", err)
	}
	return data, nil
}

// Delete implements BlobStore.
func (s *GCSStore) Delete(ctx context.Context, blobPath string) (bool, error) {
	bucket, object, err := splitURI(blobPath)
	if err != nil {
		return false, err
	}

	err = s.client.Bucket(bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Delete: deleting object %s: %w", blobPath, err)
	}
	return true, nil
}

// Exists implements BlobStore.
func (s *GCSStore) Exists(ctx context.Context, blobPath string) (bool, error) {
	bucket, object, err := splitURI(blobPath)
	if err != nil {
		return false, err
	}

	_, err = s.client.Bucket(bucket).Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Exists: stat object %s: %w", blobPath, err)
	}
	return true, nil
}

// splitURI splits "gs://bucket/object/path" into bucket and object path.
func splitURI(uri string) (string, string, error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// sanitizeFilename keeps only the base name and strips characters that have
// meaning in object paths.
func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, base)
	if base == "" || base == "." {
		return "document"
	}
	return base
}

var _ BlobStore = (*GCSStore)(nil)
