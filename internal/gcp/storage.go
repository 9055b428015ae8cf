package gcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// BlobStore wraps the GCS operations the extraction pipeline needs: issuing
// short-lived download URLs for uploaded objects, hashing uploads for
// deduplication, and persisting knowledge-base snapshots.
type BlobStore struct {
	client         *storage.Client
	uploadsBucket  string
	snapshotBucket string
}

// NewBlobStore creates a BlobStore. Either bucket may be empty, which
// disables the corresponding operation.
func NewBlobStore(ctx context.Context, uploadsBucket, snapshotBucket string) (*BlobStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &BlobStore{
		client:         client,
		uploadsBucket:  uploadsBucket,
		snapshotBucket: snapshotBucket,
	}, nil
}

// SignedDownloadURL issues a time-limited V4 GET URL for an uploaded object,
// so strategies never rely on the object being publicly readable.
func (b *BlobStore) SignedDownloadURL(objectName string, ttl time.Duration) (string, error) {
	if b.uploadsBucket == "" {
		return "", fmt.Errorf("no uploads bucket configured")
	}
	url, err := b.client.Bucket(b.uploadsBucket).SignedURL(objectName, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", objectName, err)
	}
	return url, nil
}

// SaveSnapshot writes the rebuilt knowledge-base text for a project. Rebuilds
// are full and idempotent, so the object is overwritten unconditionally.
func (b *BlobStore) SaveSnapshot(ctx context.Context, objectName, content string) error {
	if b.snapshotBucket == "" {
		return fmt.Errorf("no snapshot bucket configured")
	}
	writer := b.client.Bucket(b.snapshotBucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write snapshot to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize snapshot write: %w", err)
	}
	return nil
}

// HashObject streams a GCS object through sha256 and returns the hex digest
// together with the object size. Used by the upload registrar for content
// deduplication.
func (b *BlobStore) HashObject(ctx context.Context, bucket, object string) (string, int64, error) {
	reader, err := b.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, reader)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash gs://%s/%s: %w", bucket, object, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}
