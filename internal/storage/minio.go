package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore keeps images as objects in an S3-compatible bucket.
// The bucket is created on first use so startup does not depend on the object store.
type MinIOStore struct {
	client   *minio.Client
	bucket   string
	initOnce sync.Once
	initErr  error
}

// NewMinIOStore creates a store backed by the given MinIO endpoint and bucket
func NewMinIOStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOStore{client: client, bucket: bucket}, nil
}

func (s *MinIOStore) lazyInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = fmt.Errorf("check bucket %s: %w", s.bucket, err)
			return
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
				s.initErr = fmt.Errorf("create bucket %s: %w", s.bucket, err)
			}
		}
	})
	return s.initErr
}

func (s *MinIOStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := s.lazyInit(ctx); err != nil {
		return err
	}

	// PutObject overwrites, so refuse names that are already taken
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err == nil {
		return ErrImageExists
	} else if !isNoSuchKey(err) {
		return fmt.Errorf("stat image %s: %w", name, err)
	}

	_, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload image %s: %w", name, err)
	}

	return nil
}

func (s *MinIOStore) Open(ctx context.Context, name string) (Object, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := s.lazyInit(ctx); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get image %s: %w", name, err)
	}

	// GetObject is lazy; Stat surfaces a missing key
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("stat image %s: %w", name, err)
	}

	return obj, nil
}

func (s *MinIOStore) Remove(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := s.lazyInit(ctx); err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove image %s: %w", name, err)
	}

	return nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
