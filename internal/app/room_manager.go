package app

import (
	"sync"
	"time"

	"github.com/dkeye/callrecap/internal/core"
	"github.com/dkeye/callrecap/internal/domain"
	"github.com/dkeye/callrecap/internal/metrics"
	"github.com/rs/zerolog/log"
)

type roomEntry struct {
	svc  core.RoomService
	reap *time.Timer
	// gen invalidates a reap timer that already fired but lost the race for mu.
	gen uint64
}

// RoomManagerImpl creates rooms on first reference and destroys them once they
// stayed empty for the grace period.
type RoomManagerImpl struct {
	mu     sync.Mutex
	rooms  map[domain.RoomID]*roomEntry
	grace  time.Duration
	onReap func(domain.RoomID)
}

// NewRoomManager returns a manager; onReap runs outside the lock after a room is destroyed.
func NewRoomManager(grace time.Duration, onReap func(domain.RoomID)) *RoomManagerImpl {
	return &RoomManagerImpl{
		rooms:  make(map[domain.RoomID]*roomEntry),
		grace:  grace,
		onReap: onReap,
	}
}

// Admit gets or creates the room, cancels a pending reap and admits ms.
// Holding mu across both steps keeps the reaper from deleting a room a joiner is entering.
func (f *RoomManagerImpl) Admit(id domain.RoomID, ms core.MemberSession) (core.RoomService, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rooms[id]
	if !ok {
		e = &roomEntry{svc: core.NewRoomService(&domain.Room{ID: id}, domain.RoomCapacity)}
		f.rooms[id] = e
		metrics.IncRoomsActive()
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	}
	if err := e.svc.Admit(ms); err != nil {
		return e.svc, err
	}
	if e.reap != nil {
		e.reap.Stop()
		e.reap = nil
		e.gen++
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("reap canceled by join")
	}
	return e.svc, nil
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rooms[id]
	if !ok {
		return nil, false
	}
	return e.svc, true
}

// Release schedules destruction of the room if it is empty.
func (f *RoomManagerImpl) Release(id domain.RoomID) {
	f.mu.Lock()
	e, ok := f.rooms[id]
	if !ok || e.svc.MemberCount() > 0 {
		f.mu.Unlock()
		return
	}
	if f.grace <= 0 {
		f.deleteLocked(id, e)
		f.mu.Unlock()
		f.reaped(id)
		return
	}
	if e.reap != nil {
		e.reap.Stop()
	}
	e.gen++
	gen := e.gen
	e.reap = time.AfterFunc(f.grace, func() { f.expire(id, gen) })
	f.mu.Unlock()
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Dur("grace", f.grace).Msg("room empty, reap scheduled")
}

func (f *RoomManagerImpl) expire(id domain.RoomID, gen uint64) {
	f.mu.Lock()
	e, ok := f.rooms[id]
	if !ok || e.gen != gen || e.svc.MemberCount() > 0 {
		f.mu.Unlock()
		return
	}
	f.deleteLocked(id, e)
	f.mu.Unlock()
	f.reaped(id)
}

func (f *RoomManagerImpl) reaped(id domain.RoomID) {
	metrics.IncRoomsReaped()
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room reaped")
	if f.onReap != nil {
		f.onReap(id)
	}
}

func (f *RoomManagerImpl) deleteLocked(id domain.RoomID, e *roomEntry) {
	if e.reap != nil {
		e.reap.Stop()
		e.reap = nil
	}
	delete(f.rooms, id)
	metrics.DecRoomsActive()
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, e := range f.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: e.svc.MemberCount()})
	}
	return out
}

// StopRoom destroys the room immediately, regardless of members.
func (f *RoomManagerImpl) StopRoom(id domain.RoomID) {
	f.mu.Lock()
	e, ok := f.rooms[id]
	if !ok {
		f.mu.Unlock()
		return
	}
	f.deleteLocked(id, e)
	f.mu.Unlock()
	f.reaped(id)
}

// Close cancels pending reap timers without running them.
func (f *RoomManagerImpl) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.rooms {
		if e.reap != nil {
			e.reap.Stop()
			e.reap = nil
		}
		e.gen++
	}
}
