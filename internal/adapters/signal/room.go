package signal

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/callrecap/internal/app/orch"
	"github.com/dkeye/callrecap/internal/domain"
	"github.com/dkeye/callrecap/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(sid domain.ConnID, conn *WsSignalConn, env protocol.Envelope) {
	var p protocol.JoinRoom
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("join")
	if _, err := ctl.Orch.Join(sid, domain.RoomID(p.RoomID), p.UserName, p.Email); err != nil {
		ctl.replyErr(sid, conn, err)
	}
}

func (ctl *SignalWSController) handleEndCall(sid domain.ConnID, conn *WsSignalConn) {
	if err := ctl.Orch.EndCall(sid); err != nil {
		ctl.replyErr(sid, conn, err)
	}
}

// replyErr maps orchestrator errors to client error codes. Room full was
// already answered with room-full.
func (ctl *SignalWSController) replyErr(sid domain.ConnID, conn *WsSignalConn, err error) {
	var code string
	switch {
	case errors.Is(err, domain.ErrRoomFull):
		return
	case errors.Is(err, domain.ErrRoomIDEmpty), errors.Is(err, domain.ErrRoomIDLong):
		code = "invalid_room"
	case errors.Is(err, domain.ErrDisplayNameEmpty), errors.Is(err, domain.ErrDisplayNameTooLong):
		code = "invalid_name"
	case errors.Is(err, domain.ErrContactInvalid):
		code = "invalid_email"
	case errors.Is(err, orch.ErrNotJoined):
		code = "not_joined"
	default:
		code = "internal"
	}
	log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("code", code).Msg("request rejected")
	ctl.sendError(conn, code)
}
