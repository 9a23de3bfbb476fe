package signal

import (
	"encoding/json"

	"github.com/dkeye/callrecap/internal/core"
	"github.com/dkeye/callrecap/internal/domain"
	"github.com/dkeye/callrecap/internal/protocol"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, protocol.TypePong, nil)
}

func (ctl *SignalWSController) handleToggleMic(sid domain.ConnID, conn *WsSignalConn, env protocol.Envelope) {
	var p protocol.ToggleMic
	if err := json.Unmarshal(env.Data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.Orch.ToggleMedia(sid, core.MediaMic, p.MicEnabled); err != nil {
		ctl.replyErr(sid, conn, err)
	}
}

func (ctl *SignalWSController) handleToggleCamera(sid domain.ConnID, conn *WsSignalConn, env protocol.Envelope) {
	var p protocol.ToggleCamera
	if err := json.Unmarshal(env.Data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.Orch.ToggleMedia(sid, core.MediaCamera, p.CamEnabled); err != nil {
		ctl.replyErr(sid, conn, err)
	}
}
