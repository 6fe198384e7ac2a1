package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

// ObjectStore holds dataset snapshots for engines that read files instead of
// a live database.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

const ParquetContentType = "application/vnd.apache.parquet"

// PutParquet uploads an encoded parquet snapshot.
func PutParquet(ctx context.Context, store ObjectStore, key string, data []byte) (ObjectInfo, error) {
	return store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), PutOptions{ContentType: ParquetContentType})
}

// StatAll verifies that every key exists, returning the first failure.
func StatAll(ctx context.Context, store ObjectStore, keys []string) error {
	for _, key := range keys {
		if _, err := store.Stat(ctx, key); err != nil {
			return fmt.Errorf("dataset object %q: %w", key, err)
		}
	}
	return nil
}
