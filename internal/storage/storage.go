// Package storage keeps inventory history snapshots in object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/cafe-inventory/server/config"
)

var (
	// ErrDisabled is returned by Open when no storage backend is configured.
	ErrDisabled = errors.New("object storage is not configured")

	// ErrNotFound is returned when a snapshot key does not exist.
	ErrNotFound = errors.New("object not found")
)

// ObjectInfo describes a stored snapshot.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStorage is implemented by the MinIO and GCS backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Bucket() string
	Close() error
}

// Storage wraps an ObjectStorage backend.
type Storage struct {
	backend ObjectStorage
}

func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// Open builds the backend selected by cfg.Backend and makes sure its bucket exists.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, ErrDisabled
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewStorage(backend), nil
}

func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// List returns the objects under prefix, newest first.
func (s *Storage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects, err := s.backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].LastModified.Equal(objects[j].LastModified) {
			return objects[i].Key > objects[j].Key
		}
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

func (s *Storage) Close() error {
	return s.backend.Close()
}

func attachment(key string) string {
	return fmt.Sprintf("attachment; filename=%q", path.Base(key))
}
