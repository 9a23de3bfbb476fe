package domain

// Member represents a participant's presence in a room.
// No transport or lifecycle logic here.
type Member struct {
	Participant   *Participant
	MicEnabled    bool
	CameraEnabled bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
// Media starts enabled, matching what the browser does on join.
func NewMember(p *Participant) *Member {
	return &Member{Participant: p, MicEnabled: true, CameraEnabled: true}
}
