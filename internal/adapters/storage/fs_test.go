package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/callrecap/internal/domain"
)

func TestFSStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(filepath.Join(dir, "recordings"))
	require.NoError(t, err)
	ctx := context.Background()

	ref, n, err := s.Put(ctx, "42", strings.NewReader("opus-frames"))
	require.NoError(t, err)
	assert.EqualValues(t, len("opus-frames"), n)
	assert.True(t, strings.HasPrefix(ref.Key, "42_"))
	assert.True(t, strings.HasSuffix(ref.Key, ".webm"))

	r, err := s.Open(ctx, ref)
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "opus-frames", string(b))

	require.NoError(t, s.Delete(ctx, ref))
	require.NoError(t, s.Delete(ctx, ref), "second delete must be a no-op")

	_, err = s.Open(ctx, ref)
	require.ErrorIs(t, err, ErrBlobNotFound)

	entries, err := os.ReadDir(filepath.Join(dir, "recordings"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files left behind")
}

func TestFSStoreNamesNeverCollide(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ref, _, err := s.Put(context.Background(), "42", strings.NewReader("x"))
		require.NoError(t, err)
		require.False(t, seen[ref.Key])
		seen[ref.Key] = true
	}
}

func TestFSStoreSanitizesRoomID(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	ref, _, err := s.Put(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotContains(t, ref.Key, "/")
	assert.True(t, strings.HasPrefix(ref.Key, "______etc_passwd_"))
}

func TestFSStoreRejectsForeignKeys(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../x.webm", "a/b.webm"} {
		_, err := s.Open(context.Background(), domain.BlobRef{Key: key})
		assert.Error(t, err, key)
		assert.Error(t, s.Delete(context.Background(), domain.BlobRef{Key: key}), key)
	}
}

func TestFSStoreCanceledPutLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = s.Put(ctx, "42", strings.NewReader("x"))
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
