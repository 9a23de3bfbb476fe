package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkeye/callrecap/internal/domain"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
)

// FSStore writes each chunk to its own file under dir. A chunk only becomes
// visible once fully written and synced.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Put(ctx context.Context, roomID domain.RoomID, r io.Reader) (domain.BlobRef, int64, error) {
	name := blobName(roomID)
	path := filepath.Join(s.dir, name)

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return domain.BlobRef{}, 0, fmt.Errorf("create pending audio file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			log.Debug().Err(err).Str("module", "adapters.storage").Str("blob", name).Msg("cleanup pending audio file")
		}
	}()

	n, err := io.Copy(pending, contextReader{ctx: ctx, r: r})
	if err != nil {
		return domain.BlobRef{}, 0, fmt.Errorf("write audio data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return domain.BlobRef{}, 0, fmt.Errorf("atomically replace audio file: %w", err)
	}
	return domain.BlobRef{Key: name}, n, nil
}

func (s *FSStore) Open(_ context.Context, ref domain.BlobRef) (io.ReadCloser, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, ref.Key)
	}
	return f, err
}

func (s *FSStore) Delete(_ context.Context, ref domain.BlobRef) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// path resolves a key produced by Put; anything that escapes dir is rejected.
func (s *FSStore) path(ref domain.BlobRef) (string, error) {
	if ref.Key == "" || ref.Key == "." || ref.Key == ".." || strings.ContainsAny(ref.Key, `/\`) || ref.Key != filepath.Base(ref.Key) {
		return "", fmt.Errorf("invalid blob key %q", ref.Key)
	}
	return filepath.Join(s.dir, ref.Key), nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
