package http

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/dkeye/callrecap/internal/adapters/ratelimit"
	"github.com/dkeye/callrecap/internal/app/recording"
	"github.com/dkeye/callrecap/internal/domain"
	"github.com/dkeye/callrecap/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Recorder is the recording aggregator as seen by the HTTP surface.
type Recorder interface {
	Contribute(ctx context.Context, up recording.Upload) (recording.Receipt, error)
	Session(roomID domain.RoomID) (recording.SessionInfo, bool)
}

// formOverhead leaves room for the text fields next to the audio part.
const formOverhead = 1 << 20

type uploadHandler struct {
	rec      Recorder
	maxBytes int64
	limiter  *ratelimit.Keyed
}

// handle accepts one audio chunk. Browsers may send it with sendBeacon on
// unload and never read the reply, so every outcome is a plain status.
func (h *uploadHandler) handle(c *gin.Context) {
	client := c.GetString("client_token")
	if !h.limiter.Allow(client) {
		metrics.RecordUpload("rate_limited", 0)
		c.JSON(nethttp.StatusTooManyRequests, gin.H{"status": "error", "error": "rate_limited"})
		return
	}

	c.Request.Body = nethttp.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+formOverhead)
	fh, err := c.FormFile("audio")
	if err != nil {
		var tooBig *nethttp.MaxBytesError
		if errors.As(err, &tooBig) {
			metrics.RecordUpload("too_large", 0)
			c.JSON(nethttp.StatusRequestEntityTooLarge, gin.H{"status": "error", "error": "too_large"})
			return
		}
		metrics.RecordUpload("invalid", 0)
		c.JSON(nethttp.StatusBadRequest, gin.H{"status": "error", "error": "audio_missing"})
		return
	}
	if fh.Size > h.maxBytes {
		metrics.RecordUpload("too_large", 0)
		c.JSON(nethttp.StatusRequestEntityTooLarge, gin.H{"status": "error", "error": "too_large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		metrics.RecordUpload("failed", 0)
		c.JSON(nethttp.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	defer f.Close()

	up := recording.Upload{
		RoomID:   domain.RoomID(c.PostForm("roomId")),
		UserName: c.PostForm("userName"),
		Contact:  c.PostForm("email"),
		Audio:    f,
	}
	rc, err := h.rec.Contribute(c.Request.Context(), up)
	if err != nil {
		status, code, outcome := uploadError(err)
		metrics.RecordUpload(outcome, 0)
		log.Warn().Err(err).Str("module", "adapters.http").Str("room", string(up.RoomID)).Str("user", up.UserName).Int("status", status).Msg("upload rejected")
		c.JSON(status, gin.H{"status": "error", "error": code})
		return
	}
	metrics.RecordUpload("accepted", rc.Bytes)
	c.JSON(nethttp.StatusOK, gin.H{
		"status":       "ok",
		"roomId":       rc.RoomID,
		"state":        rc.State,
		"contributors": rc.Contributors,
		"chunks":       rc.Chunks,
	})
}

func uploadError(err error) (status int, code, outcome string) {
	switch {
	case errors.Is(err, domain.ErrRoomIDEmpty), errors.Is(err, domain.ErrRoomIDLong):
		return nethttp.StatusBadRequest, "invalid_room", "invalid"
	case errors.Is(err, domain.ErrDisplayNameEmpty), errors.Is(err, domain.ErrDisplayNameTooLong):
		return nethttp.StatusBadRequest, "invalid_name", "invalid"
	case errors.Is(err, domain.ErrContactInvalid):
		return nethttp.StatusBadRequest, "invalid_email", "invalid"
	case errors.Is(err, domain.ErrEmptyUpload):
		return nethttp.StatusBadRequest, "empty_audio", "invalid"
	case errors.Is(err, domain.ErrSessionSealed):
		return nethttp.StatusConflict, "already_processing", "late"
	case errors.Is(err, recording.ErrClosed):
		return nethttp.StatusServiceUnavailable, "shutting_down", "closed"
	default:
		return nethttp.StatusInternalServerError, "storage_failed", "failed"
	}
}
