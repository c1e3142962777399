// Package blob abstracts document byte storage away from bill metadata.
// Bills keep only opaque handles; the blob store owns the bytes.
package blob

import (
	"context"
	"io"
	"path/filepath"

	"github.com/google/uuid"
)

// Store persists uploaded document bytes under opaque handles.
type Store interface {
	// Save writes the content and returns the handle to retrieve it later.
	// The original filename only contributes its extension to the handle.
	Save(ctx context.Context, originalName string, content io.Reader) (handle string, err error)
	// Open returns a reader for a stored handle.
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	// Release deletes the bytes for a handle. Releasing an unknown handle
	// is not an error.
	Release(ctx context.Context, handle string) error
}

// newHandle builds a collision-free stored name, keeping the extension so
// downloads get a sensible content type. Handles carry no caller-supplied
// path components.
func newHandle(originalName string) string {
	return uuid.NewString() + filepath.Ext(filepath.Base(originalName))
}
