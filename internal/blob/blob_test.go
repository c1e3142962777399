package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshishBhandari123/bvas-project/pkg/platform/sentinel"
)

func TestFilesystemRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	handle, err := store.Save(ctx, "march-bill.pdf", strings.NewReader("%PDF-1.4 demo"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(handle, ".pdf"))
	assert.NotContains(t, handle, "march-bill", "handle must be opaque")

	rc, err := store.Open(ctx, handle)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.4 demo", string(data))

	require.NoError(t, store.Release(ctx, handle))
	_, err = store.Open(ctx, handle)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	// Releasing again is a no-op.
	require.NoError(t, store.Release(ctx, handle))
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	for _, handle := range []string{"", "../etc/passwd", "a/b.pdf", ".hidden"} {
		_, err := store.Open(ctx, handle)
		assert.ErrorIs(t, err, sentinel.ErrNotFound, "handle %q", handle)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	handle, err := store.Save(ctx, "report.xlsx", strings.NewReader("cells"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(handle, ".xlsx"))
	assert.Equal(t, 1, store.Len())

	rc, err := store.Open(ctx, handle)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "cells", string(data))

	require.NoError(t, store.Release(ctx, handle))
	assert.Equal(t, 0, store.Len())
}
