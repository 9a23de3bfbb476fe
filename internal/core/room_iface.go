package core

import (
	"github.com/dkeye/callrecap/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID            domain.ConnID `json:"id"`
	DisplayName   string        `json:"name"`
	MicEnabled    bool          `json:"micEnabled"`
	CameraEnabled bool          `json:"cameraEnabled"`
}

type MediaKind string

const (
	MediaMic    MediaKind = "mic"
	MediaCamera MediaKind = "camera"
)

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Member(id domain.ConnID) (MemberSession, bool)

	// Admit checks capacity and adds the member in one step.
	Admit(ms MemberSession) error
	RemoveMember(id domain.ConnID) (MemberSession, bool)
	SetMediaState(id domain.ConnID, kind MediaKind, enabled bool) (MemberDTO, bool)

	Broadcast(from domain.ConnID, data Frame) PublishResult
	BroadcastAll(data Frame) PublishResult
	// BroadcastRoster encodes the membership as of the send, so the last roster
	// a member receives always matches the room.
	BroadcastRoster(encode func([]MemberDTO) (Frame, error)) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"client_count"`
}

type RoomManager interface {
	Admit(id domain.RoomID, ms MemberSession) (RoomService, error)
	Release(id domain.RoomID)
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
