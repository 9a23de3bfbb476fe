package orch

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/callrecap/internal/app"
	"github.com/dkeye/callrecap/internal/core"
	"github.com/dkeye/callrecap/internal/domain"
	"github.com/dkeye/callrecap/internal/metrics"
	"github.com/dkeye/callrecap/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNotJoined         = errors.New("connection has not joined a room")
)

// Recordings is the part of the recording aggregator the coordinator drives.
type Recordings interface {
	Abandon(roomID domain.RoomID) bool
}

type Orchestrator struct {
	Registry   *app.Registry
	Rooms      core.RoomManager
	Policy     app.Policy
	Recordings Recordings
	// EndCallResend is the delay of the redundant call-ended notice. Zero disables it.
	EndCallResend time.Duration

	mu      sync.Mutex
	seq     uint64
	resends map[uint64]*time.Timer
	closed  bool
}

// Relay forwards an opaque offer, answer or candidate to the rest of the room.
func (o *Orchestrator) Relay(sid domain.ConnID, t protocol.Type, data []byte) error {
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return ErrNotJoined
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return ErrNotJoined
	}
	frame, err := protocol.Encode(t, string(sid), rawOrNil(data))
	if err != nil {
		return err
	}
	metrics.IncSignalMessage(string(t))
	o.handleDropped(room, room.Broadcast(sid, frame))
	return nil
}

// handleDropped applies the backpressure policy to members whose buffer was full.
func (o *Orchestrator) handleDropped(room core.RoomService, res core.PublishResult) {
	for _, slow := range res.Dropped {
		metrics.IncSignalDropped()
		if o.Policy == nil {
			continue
		}
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "app.orch").Str("room", string(room.Room().ID)).Str("sid", string(slow.ID())).Msg("kicking slow member")
			o.Registry.Cancel(slow.ID())
		case app.DropFrame, app.NoAction:
		}
	}
}

// Close stops pending call-ended resends.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	for id, t := range o.resends {
		t.Stop()
		delete(o.resends, id)
	}
}

func (o *Orchestrator) send(sig core.SignalConnection, t protocol.Type, from string, data any) {
	frame, err := protocol.Encode(t, from, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("type", string(t)).Msg("encode message")
		return
	}
	if err := sig.TrySend(frame); err != nil {
		metrics.IncSignalDropped()
		log.Warn().Err(err).Str("module", "app.orch").Str("type", string(t)).Msg("send failed")
	}
}

func (o *Orchestrator) broadcastRoster(room core.RoomService) {
	res := room.BroadcastRoster(func(members []core.MemberDTO) (core.Frame, error) {
		return protocol.Encode(protocol.TypeRoomUsersUpdated, "", roster(members))
	})
	o.handleDropped(room, res)
}

func roster(members []core.MemberDTO) []protocol.RosterEntry {
	out := make([]protocol.RosterEntry, 0, len(members))
	for _, m := range members {
		out = append(out, protocol.RosterEntry{
			ID:            string(m.ID),
			UserName:      m.DisplayName,
			MicEnabled:    m.MicEnabled,
			CameraEnabled: m.CameraEnabled,
		})
	}
	return out
}

func rawOrNil(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}
