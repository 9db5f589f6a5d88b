package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local keeps files on disk under Root and serves them from PublicURL.
type Local struct {
	Root      string
	PublicURL string
}

func NewLocal(root, publicURL string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{Root: abs, PublicURL: publicURL}, nil
}

func (l *Local) resolve(p string) string {
	return filepath.Join(l.Root, filepath.FromSlash(cleanKey(p)))
}

func (l *Local) EnsureDir(_ context.Context, dir string) error {
	return os.MkdirAll(l.resolve(dir), 0o755)
}

func (l *Local) Put(_ context.Context, p string, r io.Reader, _ string) error {
	dst := l.resolve(p)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (l *Local) Move(_ context.Context, src, dst string) error {
	err := os.Rename(l.resolve(src), l.resolve(dst))
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat(l.resolve(src)); errors.Is(statErr, fs.ErrNotExist) {
			return fmt.Errorf("move %s: %w", src, ErrNotFound)
		}
	}
	return err
}

func (l *Local) Exists(_ context.Context, p string) (bool, error) {
	_, err := os.Stat(l.resolve(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l *Local) Remove(_ context.Context, p string) error {
	err := os.Remove(l.resolve(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *Local) URL(p string) string {
	return joinURL(l.PublicURL, p)
}
