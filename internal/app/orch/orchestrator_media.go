package orch

import (
	"github.com/dkeye/callrecap/internal/core"
	"github.com/dkeye/callrecap/internal/domain"
	"github.com/dkeye/callrecap/internal/metrics"
	"github.com/dkeye/callrecap/internal/protocol"
	"github.com/rs/zerolog/log"
)

// ToggleMedia records the sender's mic or camera state and tells the peer.
func (o *Orchestrator) ToggleMedia(sid domain.ConnID, kind core.MediaKind, enabled bool) error {
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return ErrNotJoined
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return ErrNotJoined
	}
	dto, ok := room.SetMediaState(sid, kind, enabled)
	if !ok {
		return ErrNotJoined
	}

	var (
		t    protocol.Type
		data any
	)
	switch kind {
	case core.MediaMic:
		t = protocol.TypeRemoteMicToggled
		data = protocol.RemoteMicToggled{ID: string(sid), UserName: dto.DisplayName, MicEnabled: enabled}
	case core.MediaCamera:
		t = protocol.TypeRemoteCamToggled
		data = protocol.RemoteCamToggled{ID: string(sid), UserName: dto.DisplayName, CamEnabled: enabled}
	default:
		return nil
	}
	frame, err := protocol.Encode(t, string(sid), data)
	if err != nil {
		return err
	}
	metrics.IncSignalMessage(string(t))
	log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Str("kind", string(kind)).Bool("enabled", enabled).Msg("media toggled")
	o.handleDropped(room, room.Broadcast(sid, frame))
	return nil
}
