package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores objects as plain files in one directory.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	f, err := os.Create(l.path(name))
	if err != nil {
		return fmt.Errorf("create object %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("write object %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close object %s: %w", name, err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(name))
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", name, err)
	}
	return f, nil
}

func (l *Local) Remove(ctx context.Context, name string) error {
	if err := os.Remove(l.path(name)); err != nil {
		return fmt.Errorf("remove object %s: %w", name, err)
	}
	return nil
}

// path flattens the object name so callers cannot escape the storage dir.
func (l *Local) path(name string) string {
	return filepath.Join(l.dir, filepath.Base(name))
}
