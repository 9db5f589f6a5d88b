package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores images as objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) object(p string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(cleanKey(p))
}

func (g *GCS) EnsureDir(context.Context, string) error { return nil }

func (g *GCS) Put(ctx context.Context, p string, r io.Reader, contentType string) error {
	wc := g.object(p).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload: %w", err)
	}
	return nil
}

// Move copies then deletes; GCS has no rename. A failed delete leaves both
// copies, which the reconciliation sweep tolerates.
func (g *GCS) Move(ctx context.Context, src, dst string) error {
	srcObj := g.object(src)
	if _, err := g.object(dst).CopierFrom(srcObj).Run(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("move %s: %w", src, ErrNotFound)
		}
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := srcObj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s after copy: %w", src, err)
	}
	return nil
}

func (g *GCS) Exists(ctx context.Context, p string) (bool, error) {
	_, err := g.object(p).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, err
}

func (g *GCS) Remove(ctx context.Context, p string) error {
	err := g.object(p).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *GCS) URL(p string) string {
	return joinURL("https://storage.googleapis.com/"+g.bucket, p)
}

func (g *GCS) Close() error {
	return g.client.Close()
}
