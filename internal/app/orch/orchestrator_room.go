package orch

import (
	"errors"
	"time"

	"github.com/dkeye/callrecap/internal/core"
	"github.com/dkeye/callrecap/internal/domain"
	"github.com/dkeye/callrecap/internal/metrics"
	"github.com/dkeye/callrecap/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Join admits the connection into roomID. A full room is reported to the
// joiner with room-full and nothing changes, including the joiner's current
// room. A connection already in another room leaves it once admitted.
func (o *Orchestrator) Join(sid domain.ConnID, roomID domain.RoomID, name, contact string) (*domain.Participant, error) {
	if err := roomID.Validate(); err != nil {
		return nil, err
	}
	p, err := domain.NewParticipant(sid, name, contact)
	if err != nil {
		return nil, err
	}
	sig, ok := o.Registry.Signal(sid)
	if !ok {
		return nil, ErrUnknownConnection
	}

	cur, prev, inRoom := o.Registry.RoomOf(sid)
	if inRoom && cur == roomID {
		o.send(sig, protocol.TypeJoined, "", protocol.Joined{RoomID: string(roomID), ID: string(sid)})
		return prev.Meta().Participant, nil
	}

	ms := core.NewMemberSession(domain.NewMember(p), sig)
	room, err := o.Rooms.Admit(roomID, ms)
	if errors.Is(err, domain.ErrRoomFull) {
		metrics.IncJoin("full")
		o.send(sig, protocol.TypeRoomFull, "", protocol.RoomFull{RoomID: string(roomID)})
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("room full, join rejected")
		return nil, err
	}
	if err != nil {
		metrics.IncJoin("error")
		return nil, err
	}
	if inRoom {
		o.Leave(sid)
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(cur)).Msg("left previous room")
	}
	if !o.Registry.UpdateRoom(sid, roomID, ms) {
		// The connection went away while joining.
		room.RemoveMember(sid)
		o.Rooms.Release(roomID)
		metrics.IncJoin("error")
		return nil, ErrUnknownConnection
	}
	metrics.IncJoin("ok")
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("user", p.DisplayName).Msg("added to room")

	o.send(sig, protocol.TypeJoined, "", protocol.Joined{RoomID: string(roomID), ID: string(sid)})
	if frame, err := protocol.Encode(protocol.TypeUserJoined, string(sid), protocol.PeerEvent{ID: string(sid), UserName: p.DisplayName}); err == nil {
		o.handleDropped(room, room.Broadcast(sid, frame))
	}
	o.broadcastRoster(room)
	return p, nil
}

// Leave removes the connection from its room, tells the others that the peer
// left and the call ended, and returns who remains. An emptied room is handed
// to the reaper.
func (o *Orchestrator) Leave(sid domain.ConnID) []core.MemberDTO {
	roomID, ms, ok := o.Registry.RoomOf(sid)
	if !ok {
		return nil
	}
	o.Registry.RemoveRoom(sid)
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil
	}
	if _, removed := room.RemoveMember(sid); !removed {
		return nil
	}
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("removed from room")

	remaining := room.MembersSnapshot()
	if len(remaining) > 0 {
		name := ms.Meta().Participant.DisplayName
		if frame, err := protocol.Encode(protocol.TypePeerLeft, string(sid), protocol.PeerEvent{ID: string(sid), UserName: name}); err == nil {
			o.handleDropped(room, room.BroadcastAll(frame))
		}
		if frame, err := protocol.Encode(protocol.TypeCallEnded, string(sid), protocol.CallEnded{RoomID: string(roomID)}); err == nil {
			o.handleDropped(room, room.BroadcastAll(frame))
		}
		o.broadcastRoster(room)
	}
	o.Rooms.Release(roomID)
	return remaining
}

// EndCall ends the call for everyone: the caller gets call-ended and leaves,
// the others get peer-left and call-ended, then call-ended once more after
// EndCallResend.
func (o *Orchestrator) EndCall(sid domain.ConnID) error {
	roomID, ms, ok := o.Registry.RoomOf(sid)
	if !ok {
		return ErrNotJoined
	}
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("call ended")
	o.send(ms.Signal(), protocol.TypeCallEnded, string(sid), protocol.CallEnded{RoomID: string(roomID)})

	remaining := o.Leave(sid)
	if len(remaining) == 0 || o.EndCallResend <= 0 {
		return nil
	}
	ids := make([]domain.ConnID, 0, len(remaining))
	for _, m := range remaining {
		ids = append(ids, m.ID)
	}
	o.scheduleResend(roomID, sid, ids)
	return nil
}

// scheduleResend repeats call-ended to the given members if they are still in roomID.
func (o *Orchestrator) scheduleResend(roomID domain.RoomID, from domain.ConnID, ids []domain.ConnID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	if o.resends == nil {
		o.resends = make(map[uint64]*time.Timer)
	}
	o.seq++
	id := o.seq
	o.resends[id] = time.AfterFunc(o.EndCallResend, func() {
		o.mu.Lock()
		delete(o.resends, id)
		o.mu.Unlock()
		for _, cid := range ids {
			cur, ms, ok := o.Registry.RoomOf(cid)
			if !ok || cur != roomID {
				continue
			}
			o.send(ms.Signal(), protocol.TypeCallEnded, string(from), protocol.CallEnded{RoomID: string(roomID)})
		}
	})
}

// OnDisconnect runs the leave path for a dropped connection and forgets it.
func (o *Orchestrator) OnDisconnect(sid domain.ConnID) {
	o.Leave(sid)
	o.Registry.Unbind(sid)
}

// Participants lists the room's members in join order.
func (o *Orchestrator) Participants(roomID domain.RoomID) []core.MemberDTO {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil
	}
	return room.MembersSnapshot()
}

// OnRoomReaped is the room manager's reap hook: a room that stayed empty
// drops its unfinished recording.
func (o *Orchestrator) OnRoomReaped(roomID domain.RoomID) {
	if o.Recordings == nil {
		return
	}
	if o.Recordings.Abandon(roomID) {
		log.Info().Str("module", "app.orch").Str("room", string(roomID)).Msg("stale recording cleared with room")
	}
}

// StopRoom ends the call in roomID for everyone, disconnects its members and
// destroys the room without a grace period. The reap hook then drops the
// room's unfinished recording. It reports how many members were removed.
func (o *Orchestrator) StopRoom(roomID domain.RoomID) (int, bool) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return 0, false
	}
	members := room.MembersSnapshot()
	if frame, err := protocol.Encode(protocol.TypeCallEnded, "", protocol.CallEnded{RoomID: string(roomID)}); err == nil {
		room.BroadcastAll(frame)
	}
	for _, m := range members {
		if cur, _, ok := o.Registry.RoomOf(m.ID); ok && cur == roomID {
			o.Registry.RemoveRoom(m.ID)
		}
		room.RemoveMember(m.ID)
		o.Registry.Cancel(m.ID)
	}
	o.Rooms.StopRoom(roomID)
	log.Info().Str("module", "app.orch").Str("room", string(roomID)).Int("members", len(members)).Msg("room stopped")
	return len(members), true
}
