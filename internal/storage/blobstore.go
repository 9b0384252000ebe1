package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
)

// ObjectInfo describes one stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BlobStore is the object storage surface the API and worker share. Keys
// are slash-separated paths relative to the store root.
type BlobStore interface {
	// Put persists data under key and returns the canonical key.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// SignedURL returns a short-lived read URL for an existing object.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// DownloadURL is SignedURL with an attachment content disposition so
	// browsers save the object instead of rendering it.
	DownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// List returns objects under prefix, newest first.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// MinioStore is the production BlobStore backed by a single bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucket, cleanKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", cleanKey, err)
	}
	return cleanKey, nil
}

func (s *MinioStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return s.presign(ctx, key, ttl, nil)
}

func (s *MinioStore) DownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	return s.presign(ctx, key, ttl, params)
}

func (s *MinioStore) presign(ctx context.Context, key string, ttl time.Duration, params url.Values) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, cleanKey, ttl, params)
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", cleanKey, err)
	}
	return u.String(), nil
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", prefix, obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	sortNewestFirst(objects)
	return objects, nil
}

func sortNewestFirst(objects []ObjectInfo) {
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
}
