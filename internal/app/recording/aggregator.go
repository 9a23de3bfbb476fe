// Package recording aggregates per-participant audio uploads of a call and
// starts post-call processing once every expected participant has contributed.
package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dkeye/callrecap/internal/domain"
	"github.com/dkeye/callrecap/internal/metrics"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("recording aggregator closed")

// BlobStore persists audio chunks. Delete must succeed for missing blobs.
type BlobStore interface {
	Put(ctx context.Context, roomID domain.RoomID, r io.Reader) (domain.BlobRef, int64, error)
	Delete(ctx context.Context, ref domain.BlobRef) error
}

// Processor runs transcription, summary and notifications for a sealed call.
type Processor interface {
	Process(ctx context.Context, rec domain.CallRecording) domain.CallOutcome
}

type Config struct {
	// ExpectedContributors is the distinct contributor count that triggers processing.
	ExpectedContributors int
	// ProcessingDelay lets in-flight final chunks land before the list is read.
	ProcessingDelay time.Duration
	// StaleAfter abandons a collecting session that saw no upload for this long. Zero disables.
	StaleAfter time.Duration
}

type Upload struct {
	RoomID   domain.RoomID
	UserName string
	Contact  string
	Audio    io.Reader
}

type Receipt struct {
	RoomID       domain.RoomID `json:"roomId"`
	State        State         `json:"state"`
	Contributors int           `json:"contributors"`
	Chunks       int           `json:"chunks"`
	Bytes        int64         `json:"bytes"`
}

type SessionInfo struct {
	RoomID       domain.RoomID `json:"roomId"`
	State        State         `json:"state"`
	Contributors []string      `json:"contributors"`
	Chunks       int           `json:"chunks"`
	StartedAt    time.Time     `json:"startedAt"`
}

type Aggregator struct {
	cfg   Config
	store BlobStore
	proc  Processor
	now   func() time.Time

	mu       sync.Mutex
	sessions map[domain.RoomID]*session
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	flush  chan struct{}
	wg     sync.WaitGroup
}

func NewAggregator(cfg Config, store BlobStore, proc Processor) *Aggregator {
	if cfg.ExpectedContributors <= 0 {
		cfg.ExpectedContributors = domain.RoomCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		cfg:      cfg,
		store:    store,
		proc:     proc,
		now:      time.Now,
		sessions: make(map[domain.RoomID]*session),
		ctx:      ctx,
		cancel:   cancel,
		flush:    make(chan struct{}),
	}
}

// Contribute stores one audio chunk and appends it to the room's session.
// A chunk that fails to store is never counted.
func (a *Aggregator) Contribute(ctx context.Context, up Upload) (Receipt, error) {
	name, err := domain.NormalizeDisplayName(up.UserName)
	if err != nil {
		return Receipt{}, err
	}
	if err := up.RoomID.Validate(); err != nil {
		return Receipt{}, err
	}
	contact, err := domain.NormalizeContact(up.Contact)
	if err != nil {
		return Receipt{}, err
	}
	if err := a.admissible(up.RoomID); err != nil {
		return Receipt{}, err
	}

	ref, n, err := a.store.Put(ctx, up.RoomID, up.Audio)
	if err != nil {
		log.Error().Err(err).Str("module", "app.recording").Str("room", string(up.RoomID)).Str("user", name).Msg("store audio")
		return Receipt{}, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}
	if n == 0 {
		a.deleteBlobs(up.RoomID, []domain.BlobRef{ref})
		return Receipt{}, domain.ErrEmptyUpload
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.deleteBlobs(up.RoomID, []domain.BlobRef{ref})
		return Receipt{}, ErrClosed
	}
	s, ok := a.sessions[up.RoomID]
	if ok && s.sealed {
		a.mu.Unlock()
		a.deleteBlobs(up.RoomID, []domain.BlobRef{ref})
		log.Warn().Str("module", "app.recording").Str("room", string(up.RoomID)).Str("user", name).Msg("late upload after seal, discarded")
		return Receipt{}, domain.ErrSessionSealed
	}
	if !ok {
		s = newSession(up.RoomID, a.now())
		a.sessions[up.RoomID] = s
		log.Info().Str("module", "app.recording").Str("room", string(up.RoomID)).Msg("recording started")
	}
	s.add(domain.AudioContribution{
		Contributor: name,
		Contact:     contact,
		Blob:        ref,
		ReceivedAt:  a.now(),
	})
	trigger := !s.triggered && len(s.contributors) >= a.cfg.ExpectedContributors
	if trigger {
		s.triggered = true
		s.stopStale()
		a.wg.Add(1)
		go a.process(s)
	} else if !s.triggered {
		a.armStale(s)
	}
	rc := Receipt{
		RoomID:       up.RoomID,
		State:        s.state(),
		Contributors: len(s.contributors),
		Chunks:       len(s.contributions),
		Bytes:        n,
	}
	a.mu.Unlock()

	log.Info().Str("module", "app.recording").Str("room", string(up.RoomID)).Str("user", name).
		Int("contributors", rc.Contributors).Int("expected", a.cfg.ExpectedContributors).
		Int("chunks", rc.Chunks).Int64("bytes", n).Msg("audio recorded")
	if trigger {
		log.Info().Str("module", "app.recording").Str("room", string(up.RoomID)).Dur("delay", a.cfg.ProcessingDelay).Msg("all contributors recorded, processing scheduled")
	}
	return rc, nil
}

// admissible refuses early, before storing, when the upload can never be counted.
func (a *Aggregator) admissible(roomID domain.RoomID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if s, ok := a.sessions[roomID]; ok && s.sealed {
		return domain.ErrSessionSealed
	}
	return nil
}

func (a *Aggregator) armStale(s *session) {
	if a.cfg.StaleAfter <= 0 {
		return
	}
	s.stopStale()
	gen := s.staleGen
	s.stale = time.AfterFunc(a.cfg.StaleAfter, func() { a.expire(s, gen) })
}

func (a *Aggregator) expire(s *session, gen uint64) {
	a.mu.Lock()
	if s.staleGen != gen || s.triggered || a.sessions[s.roomID] != s {
		a.mu.Unlock()
		return
	}
	delete(a.sessions, s.roomID)
	refs := s.blobs()
	a.mu.Unlock()

	log.Info().Str("module", "app.recording").Str("room", string(s.roomID)).Int("chunks", len(refs)).Msg("recording idle too long, discarded")
	metrics.IncRecordingSession("stale")
	a.deleteBlobs(s.roomID, refs)
}

// Abandon discards a collecting session whose room emptied before every
// contributor uploaded. A session already triggered is left to finish.
func (a *Aggregator) Abandon(roomID domain.RoomID) bool {
	return a.discard(roomID, "clearing stale recording")
}

func (a *Aggregator) discard(roomID domain.RoomID, reason string) bool {
	a.mu.Lock()
	s, ok := a.sessions[roomID]
	if !ok {
		a.mu.Unlock()
		return false
	}
	if s.triggered {
		a.mu.Unlock()
		log.Info().Str("module", "app.recording").Str("room", string(roomID)).Msg("recording is processing, left running")
		return false
	}
	s.stopStale()
	delete(a.sessions, roomID)
	refs := s.blobs()
	a.mu.Unlock()

	log.Info().Str("module", "app.recording").Str("room", string(roomID)).Int("contributors", len(s.contributors)).Int("chunks", len(refs)).Msg(reason)
	metrics.IncRecordingSession("stale")
	a.deleteBlobs(roomID, refs)
	return true
}

func (a *Aggregator) process(s *session) {
	defer a.wg.Done()

	if a.cfg.ProcessingDelay > 0 {
		t := time.NewTimer(a.cfg.ProcessingDelay)
		select {
		case <-t.C:
		case <-a.flush:
			t.Stop()
		}
	}

	a.mu.Lock()
	s.sealed = true
	rec := s.recording()
	a.mu.Unlock()

	logger := log.With().Str("module", "app.recording").Str("room", string(s.roomID)).Logger()
	logger.Info().Int("contributors", len(rec.Contributors)).Int("chunks", len(rec.Contributions)).Msg("processing call")

	start := time.Now()
	outcome := "success"
	defer func() {
		a.finish(s)
		metrics.RecordProcessing(outcome, time.Since(start).Seconds())
		metrics.IncRecordingSession("processed")
		logger.Info().Str("outcome", outcome).Dur("took", time.Since(start)).Msg("call processed, recording cleared")
	}()
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			logger.Error().Interface("panic", r).Msg("call processing panicked")
		}
	}()

	res := a.proc.Process(a.ctx, rec)
	if res.Error {
		outcome = "failed"
	}
}

// finish deletes the session's blobs and drops the session record.
func (a *Aggregator) finish(s *session) {
	a.mu.Lock()
	if a.sessions[s.roomID] == s {
		delete(a.sessions, s.roomID)
	}
	refs := s.blobs()
	a.mu.Unlock()
	a.deleteBlobs(s.roomID, refs)
}

func (a *Aggregator) deleteBlobs(roomID domain.RoomID, refs []domain.BlobRef) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 30*time.Second)
	defer cancel()
	for _, ref := range refs {
		if err := a.store.Delete(ctx, ref); err != nil {
			metrics.IncCollaboratorFailure("blob_delete")
			log.Error().Err(err).Str("module", "app.recording").Str("room", string(roomID)).Str("blob", ref.Key).Msg("delete audio")
		}
	}
}

// Session reports the live session of a room, if any.
func (a *Aggregator) Session(roomID domain.RoomID) (SessionInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[roomID]
	if !ok {
		return SessionInfo{RoomID: roomID, State: StateIdle}, false
	}
	names := make([]string, 0, len(s.contributors))
	for _, c := range s.contributors {
		names = append(names, c.Name)
	}
	return SessionInfo{
		RoomID:       roomID,
		State:        s.state(),
		Contributors: names,
		Chunks:       len(s.contributions),
		StartedAt:    s.startedAt,
	}, true
}

// State is the room's recording state; StateIdle when no session exists.
func (a *Aggregator) State(roomID domain.RoomID) State {
	info, _ := a.Session(roomID)
	return info.State
}

// Shutdown refuses new uploads, discards collecting sessions, starts pending
// processing without its delay and waits for it. When ctx ends first the
// processing context is canceled.
func (a *Aggregator) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	var pending []domain.RoomID
	for id, s := range a.sessions {
		if !s.triggered {
			pending = append(pending, id)
		}
	}
	a.mu.Unlock()
	close(a.flush)

	for _, id := range pending {
		a.discard(id, "discarding unfinished recording on shutdown")
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.cancel()
		return nil
	case <-ctx.Done():
		a.cancel()
		<-done
		return ctx.Err()
	}
}
