package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Documents stores JSON documents that back off-chain references.
type Documents struct {
	backend ObjectStorage
}

// NewDocuments constructs a Documents store for the provided backend.
func NewDocuments(backend ObjectStorage) *Documents {
	return &Documents{backend: backend}
}

// BatchMetadataKey is the object key of a batch metadata document.
func BatchMetadataKey(batchID uuid.UUID) string {
	return path.Join("batches", batchID.String(), "metadata.json")
}

// PutJSON uploads the JSON encoding of v under key and returns the object reference.
func (d *Documents) PutJSON(ctx context.Context, key string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	if err := d.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return d.backend.Bucket() + "/" + key, nil
}

// GetJSON downloads the document under key and decodes it into dst.
func (d *Documents) GetJSON(ctx context.Context, key string, dst any) error {
	r, err := d.backend.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	defer r.Close()

	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// KeyFromRef strips the bucket prefix from a reference returned by PutJSON.
func (d *Documents) KeyFromRef(ref string) string {
	return strings.TrimPrefix(ref, d.backend.Bucket()+"/")
}
