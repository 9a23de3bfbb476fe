package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/callrecap/internal/domain"
)

type recordingConn struct {
	mu     sync.Mutex
	frames []Frame
	full   bool
}

func (c *recordingConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Close() {}

func (c *recordingConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, string(f))
	}
	return out
}

func newSession(t *testing.T, id, name string) (MemberSession, *recordingConn) {
	t.Helper()
	p, err := domain.NewParticipant(domain.ConnID(id), name, "")
	require.NoError(t, err)
	conn := &recordingConn{}
	return NewMemberSession(domain.NewMember(p), conn), conn
}

func TestAdmitEnforcesCapacity(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "42"}, domain.RoomCapacity)
	alice, _ := newSession(t, "a", "Alice")
	bob, _ := newSession(t, "b", "Bob")
	carol, _ := newSession(t, "c", "Carol")

	require.NoError(t, room.Admit(alice))
	require.NoError(t, room.Admit(bob))
	require.ErrorIs(t, room.Admit(carol), domain.ErrRoomFull)

	snap := room.MembersSnapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "Alice", snap[0].DisplayName)
	assert.Equal(t, "Bob", snap[1].DisplayName)
	_, ok := room.Member("c")
	assert.False(t, ok)
}

func TestAdmitIsIdempotentForSameConnection(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "42"}, domain.RoomCapacity)
	alice, _ := newSession(t, "a", "Alice")

	require.NoError(t, room.Admit(alice))
	require.NoError(t, room.Admit(alice))
	assert.Equal(t, 1, room.MemberCount())
}

func TestConcurrentAdmitNeverExceedsCapacity(t *testing.T) {
	for round := 0; round < 50; round++ {
		room := NewRoomService(&domain.Room{ID: "race"}, domain.RoomCapacity)
		var wg sync.WaitGroup
		var mu sync.Mutex
		rejected := 0
		for i := 0; i < 5; i++ {
			ms, _ := newSession(t, fmt.Sprintf("c%d", i), fmt.Sprintf("User%d", i))
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := room.Admit(ms); errors.Is(err, domain.ErrRoomFull) {
					mu.Lock()
					rejected++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 2, room.MemberCount())
		require.Equal(t, 3, rejected)
	}
}

func TestBroadcastSkipsSender(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "42"}, domain.RoomCapacity)
	alice, aliceConn := newSession(t, "a", "Alice")
	bob, bobConn := newSession(t, "b", "Bob")
	require.NoError(t, room.Admit(alice))
	require.NoError(t, room.Admit(bob))

	res := room.Broadcast("a", Frame("offer"))
	assert.Equal(t, 1, res.SendTo)
	assert.Empty(t, aliceConn.received())
	assert.Equal(t, []string{"offer"}, bobConn.received())

	res = room.BroadcastAll(Frame("ended"))
	assert.Equal(t, 2, res.SendTo)
	assert.Equal(t, []string{"ended"}, aliceConn.received())
}

func TestBroadcastReportsDropped(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "42"}, domain.RoomCapacity)
	alice, _ := newSession(t, "a", "Alice")
	bob, bobConn := newSession(t, "b", "Bob")
	bobConn.full = true
	require.NoError(t, room.Admit(alice))
	require.NoError(t, room.Admit(bob))

	res := room.Broadcast("a", Frame("x"))
	assert.Equal(t, 0, res.SendTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, domain.ConnID("b"), res.Dropped[0].ID())
}

func TestRemoveMemberKeepsOrder(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "42"}, 3)
	for _, id := range []string{"a", "b", "c"} {
		ms, _ := newSession(t, id, "U"+id)
		require.NoError(t, room.Admit(ms))
	}

	removed, ok := room.RemoveMember("b")
	require.True(t, ok)
	assert.Equal(t, domain.ConnID("b"), removed.ID())

	_, ok = room.RemoveMember("b")
	assert.False(t, ok)

	snap := room.MembersSnapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, domain.ConnID("a"), snap[0].ID)
	assert.Equal(t, domain.ConnID("c"), snap[1].ID)
}

func TestSetMediaState(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "42"}, domain.RoomCapacity)
	alice, _ := newSession(t, "a", "Alice")
	require.NoError(t, room.Admit(alice))

	dto, ok := room.SetMediaState("a", MediaMic, false)
	require.True(t, ok)
	assert.False(t, dto.MicEnabled)
	assert.True(t, dto.CameraEnabled)

	_, ok = room.SetMediaState("missing", MediaCamera, false)
	assert.False(t, ok)
}

func TestBroadcastRosterUsesCurrentMembers(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "42"}, domain.RoomCapacity)
	alice, aliceConn := newSession(t, "a", "Alice")
	require.NoError(t, room.Admit(alice))

	var seen []MemberDTO
	res := room.BroadcastRoster(func(m []MemberDTO) (Frame, error) {
		seen = m
		return Frame("roster"), nil
	})
	assert.Equal(t, 1, res.SendTo)
	require.Len(t, seen, 1)
	assert.Equal(t, []string{"roster"}, aliceConn.received())

	res = room.BroadcastRoster(func([]MemberDTO) (Frame, error) { return nil, errors.New("boom") })
	assert.Zero(t, res.SendTo)
}
