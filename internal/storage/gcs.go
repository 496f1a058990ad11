package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/cafe-inventory/server/config"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSClient keeps history snapshots in a Google Cloud Storage bucket.
type GCSClient struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	name      string
	projectID string
}

func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}

	return &GCSClient{
		client:    client,
		bucket:    client.Bucket(cfg.Bucket),
		name:      cfg.Bucket,
		projectID: strings.TrimSpace(cfg.ProjectID),
	}, nil
}

// EnsureBucket creates the snapshot bucket on first use. Creating needs
// GCS_PROJECT_ID.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	_, err := g.bucket.Attrs(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrBucketNotExist):
		return err
	case g.projectID == "":
		return fmt.Errorf("bucket %s does not exist and GCS_PROJECT_ID is not set", g.name)
	}
	return g.bucket.Create(ctx, g.projectID, nil)
}

func (g *GCSClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.ContentDisposition = attachment(key)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *GCSClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	return rc, err
}

func (g *GCSClient) Delete(ctx context.Context, key string) error {
	err := g.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}

func (g *GCSClient) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return objects, nil
		}
		if err != nil {
			return nil, err
		}
		objects = append(objects, ObjectInfo{Key: attrs.Name, Size: attrs.Size, LastModified: attrs.Updated})
	}
}

func (g *GCSClient) Bucket() string {
	return g.name
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}
