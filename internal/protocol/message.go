// Package protocol defines the JSON messages exchanged over the signaling socket.
package protocol

import (
	"encoding/json"
	"errors"
)

type Type string

// Client to server.
const (
	TypeJoinRoom     Type = "join-room"
	TypeToggleMic    Type = "toggle-mic"
	TypeToggleCamera Type = "toggle-camera"
	TypeEndCall      Type = "end-call"
	TypePing         Type = "ping"
)

// Relayed verbatim to the other side of the room.
const (
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice-candidate"
)

// Server to client.
const (
	TypeJoined           Type = "joined"
	TypeRoomFull         Type = "room-full"
	TypeRoomUsersUpdated Type = "room-users-updated"
	TypeUserJoined       Type = "user-joined"
	TypeRemoteMicToggled Type = "remote-mic-toggled"
	TypeRemoteCamToggled Type = "remote-camera-toggled"
	TypeCallEnded        Type = "call-ended"
	TypePeerLeft         Type = "peer-left"
	TypePong             Type = "pong"
	TypeError            Type = "error"
)

var ErrMissingType = errors.New("message type missing")

// Envelope is the frame shape in both directions. Data stays raw so relayed
// session descriptions and candidates are never reinterpreted.
type Envelope struct {
	Type Type            `json:"type"`
	From string          `json:"from,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

// Encode marshals data into an envelope of the given type. Nil data yields no data field.
func Encode(t Type, from string, data any) ([]byte, error) {
	env := Envelope{Type: t, From: from}
	if data != nil {
		switch d := data.(type) {
		case json.RawMessage:
			env.Data = d
		default:
			b, err := json.Marshal(data)
			if err != nil {
				return nil, err
			}
			env.Data = b
		}
	}
	return json.Marshal(env)
}

// IsRelayed reports whether t is forwarded blindly between peers.
func IsRelayed(t Type) bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		return true
	}
	return false
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
	Email    string `json:"email,omitempty"`
}

type Joined struct {
	RoomID string `json:"roomId"`
	ID     string `json:"id"`
}

type RoomFull struct {
	RoomID string `json:"roomId"`
}

type RosterEntry struct {
	ID            string `json:"id"`
	UserName      string `json:"userName"`
	MicEnabled    bool   `json:"micEnabled"`
	CameraEnabled bool   `json:"cameraEnabled"`
}

// PeerEvent is the payload of user-joined and peer-left.
type PeerEvent struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
}

type ToggleMic struct {
	MicEnabled bool `json:"micEnabled"`
}

type ToggleCamera struct {
	CamEnabled bool `json:"camEnabled"`
}

type RemoteMicToggled struct {
	ID         string `json:"id"`
	UserName   string `json:"userName"`
	MicEnabled bool   `json:"micEnabled"`
}

type RemoteCamToggled struct {
	ID         string `json:"id"`
	UserName   string `json:"userName"`
	CamEnabled bool   `json:"camEnabled"`
}

type CallEnded struct {
	RoomID string `json:"roomId"`
}

type Error struct {
	Error string `json:"error"`
}
