package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileBlobsRoundTrip(t *testing.T) {
	blobs, err := NewFileBlobs(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	_, ok, err := blobs.Load(ctx, "sessions")
	require.NoError(t, err)
	require.False(t, ok)

	payload := []byte(`{"42":{"dialog":"passenger_registration"}}`)
	require.NoError(t, blobs.Save(ctx, "sessions", payload))

	got, ok, err := blobs.Load(ctx, "sessions")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload, got)
}

func TestFileBlobsOverwrite(t *testing.T) {
	blobs, err := NewFileBlobs(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, blobs.Save(ctx, "dedup_primary", []byte(`["a"]`)))
	require.NoError(t, blobs.Save(ctx, "dedup_primary", []byte(`["a","b"]`)))

	got, ok, err := blobs.Load(ctx, "dedup_primary")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`["a","b"]`), got)
}

func TestFileBlobsRejectsPathKeys(t *testing.T) {
	blobs, err := NewFileBlobs(t.TempDir())
	require.NoError(t, err)

	require.Error(t, blobs.Save(context.Background(), "../escape", []byte("x")))
	_, _, err = blobs.Load(context.Background(), "a/b")
	require.Error(t, err)
}
