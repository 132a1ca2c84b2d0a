package storage

import (
	"context"
	"errors"
	"io"
	"path"

	gcs "cloud.google.com/go/storage"

	"github.com/yoockh/yoochat/internal/utils"
)

// GCSStore keeps blobs as objects under <bucket>/<prefix>/<key>.json.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: c, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) object(key string) *gcs.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, key+".json"))
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	w := s.object(key).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
