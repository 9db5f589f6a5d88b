package storage

import (
	"context"
	"errors"
	"io"
	"path"
)

// Logical directories shared by every backend.
const (
	TempDir    = "temp"
	ProductDir = "products"
)

// ErrNotFound is returned by Move when the source object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Backend stores image files under slash-separated logical paths such as
// "temp/abc.png" or "products/thumb_123.jpg".
type Backend interface {
	// EnsureDir creates dir and any parents. Flat object stores treat it as a no-op.
	EnsureDir(ctx context.Context, dir string) error
	Put(ctx context.Context, p string, r io.Reader, contentType string) error
	// Move relocates src to dst, replacing dst if present.
	Move(ctx context.Context, src, dst string) error
	Exists(ctx context.Context, p string) (bool, error)
	// Remove deletes p. Removing a missing object is not an error.
	Remove(ctx context.Context, p string) error
	URL(p string) string
}

func TempPath(name string) string {
	return path.Join(TempDir, name)
}

func ProductPath(name string) string {
	return path.Join(ProductDir, name)
}

// cleanKey normalizes a logical path and strips any attempt to climb above the root.
func cleanKey(p string) string {
	return path.Clean("/" + p)[1:]
}

func joinURL(base, p string) string {
	if base == "" {
		return "/" + cleanKey(p)
	}
	if base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/" + cleanKey(p)
}
