package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
)

// Minio stores objects in a MinIO (or any S3 compatible) bucket.
type Minio struct {
	client *minio.Client
	bucket string
}

func NewMinio(client *minio.Client, bucket string) *Minio {
	return &Minio{client: client, bucket: bucket}
}

func (m *Minio) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	_, err := m.client.PutObject(ctx, m.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: "audio/wav",
	})
	return err
}

func (m *Minio) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	return m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
}

func (m *Minio) Remove(ctx context.Context, name string) error {
	return m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{})
}
