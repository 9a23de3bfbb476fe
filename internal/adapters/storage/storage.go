// Package storage keeps uploaded audio chunks until their recording session
// is destroyed. Keys are generated here, never taken from the client.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/dkeye/callrecap/internal/domain"
	"github.com/google/uuid"
)

var ErrBlobNotFound = errors.New("blob not found")

// Store is implemented by the filesystem and S3 drivers. Delete of a missing
// blob succeeds.
type Store interface {
	Put(ctx context.Context, roomID domain.RoomID, r io.Reader) (domain.BlobRef, int64, error)
	Open(ctx context.Context, ref domain.BlobRef) (io.ReadCloser, error)
	Delete(ctx context.Context, ref domain.BlobRef) error
}

const blobExt = ".webm"

// blobName returns a fresh "<room>_<uuid>.webm" name with the room id reduced
// to a safe character set.
func blobName(roomID domain.RoomID) string {
	return sanitize(string(roomID)) + "_" + uuid.NewString() + blobExt
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= 64 {
			break
		}
	}
	if b.Len() == 0 {
		return "room"
	}
	return b.String()
}
