package storage

import (
	"context"
	"io"
)

// Storage persists uploaded audio objects under collision-free names.
type Storage interface {
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, name string) error
}
