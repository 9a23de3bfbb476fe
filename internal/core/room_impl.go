package core

import (
	"slices"
	"sync"

	"github.com/dkeye/callrecap/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room     *domain.Room
	capacity int

	mu    sync.RWMutex
	order []domain.ConnID
	byID  map[domain.ConnID]MemberSession
}

func NewRoomService(room *domain.Room, capacity int) RoomService {
	if capacity <= 0 {
		capacity = domain.RoomCapacity
	}
	return &roomImpl{
		room:     room,
		capacity: capacity,
		byID:     make(map[domain.ConnID]MemberSession, capacity),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *roomImpl) Member(id domain.ConnID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.byID[id]
	return ms, ok
}

func (r *roomImpl) Admit(ms MemberSession) error {
	id := ms.ID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		return nil
	}
	if len(r.order) >= r.capacity {
		log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(id)).Msg("room full, rejected")
		return domain.ErrRoomFull
	}
	r.byID[id] = ms
	r.order = append(r.order, id)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(id)).
		Str("user", ms.Meta().Participant.DisplayName).Int("count", len(r.order)).Msg("member added")
	return nil
}

func (r *roomImpl) RemoveMember(id domain.ConnID) (MemberSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(x domain.ConnID) bool { return x == id })
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(id)).Int("count", len(r.order)).Msg("member removed")
	return ms, true
}

func (r *roomImpl) SetMediaState(id domain.ConnID, kind MediaKind, enabled bool) (MemberDTO, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.byID[id]
	if !ok {
		return MemberDTO{}, false
	}
	m := ms.Meta()
	switch kind {
	case MediaMic:
		m.MicEnabled = enabled
	case MediaCamera:
		m.CameraEnabled = enabled
	default:
		return MemberDTO{}, false
	}
	return toDTO(ms), true
}

func (r *roomImpl) Broadcast(from domain.ConnID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fanOut(from, data)
}

func (r *roomImpl) BroadcastAll(data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fanOut("", data)
}

func (r *roomImpl) BroadcastRoster(encode func([]MemberDTO) (Frame, error)) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, err := encode(r.snapshotLocked())
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Str("room", string(r.room.ID)).Msg("encode roster")
		return PublishResult{}
	}
	return r.fanOut("", data)
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// fanOut sends to every member except from; an empty from reaches everyone.
func (r *roomImpl) fanOut(from domain.ConnID, data Frame) PublishResult {
	res := PublishResult{}
	for _, id := range r.order {
		if id == from {
			continue
		}
		m := r.byID[id]
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Str("from", string(from)).
		Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) snapshotLocked() []MemberDTO {
	out := make([]MemberDTO, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, toDTO(r.byID[id]))
	}
	return out
}

func toDTO(ms MemberSession) MemberDTO {
	m := ms.Meta()
	return MemberDTO{
		ID:            m.Participant.ID,
		DisplayName:   m.Participant.DisplayName,
		MicEnabled:    m.MicEnabled,
		CameraEnabled: m.CameraEnabled,
	}
}
