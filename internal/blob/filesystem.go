package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/AshishBhandari123/bvas-project/pkg/platform/sentinel"
)

// Filesystem stores blobs as files under a single directory.
type Filesystem struct {
	dir string
}

// NewFilesystem creates the upload directory if needed.
func NewFilesystem(dir string) (*Filesystem, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Filesystem{dir: dir}, nil
}

func (s *Filesystem) Save(_ context.Context, originalName string, content io.Reader) (string, error) {
	handle := newHandle(originalName)
	f, err := os.OpenFile(s.path(handle), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create blob file: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}
	return handle, nil
}

func (s *Filesystem) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	path, err := s.safePath(handle)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (s *Filesystem) Release(_ context.Context, handle string) error {
	path, err := s.safePath(handle)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (s *Filesystem) path(handle string) string {
	return filepath.Join(s.dir, handle)
}

// safePath rejects handles that would escape the upload directory.
func (s *Filesystem) safePath(handle string) (string, error) {
	if handle == "" || handle != filepath.Base(handle) || strings.HasPrefix(handle, ".") {
		return "", sentinel.ErrNotFound
	}
	return s.path(handle), nil
}
