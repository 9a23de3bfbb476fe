package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	canceled := false
	r.BindSignal("a", nopConn{}, func() { canceled = true })

	_, _, ok := r.RoomOf("a")
	assert.False(t, ok, "not joined yet")

	sess := member(t, "a", "Alice")
	require.True(t, r.UpdateRoom("a", "42", sess))
	room, got, ok := r.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, "42", string(room))
	assert.Equal(t, sess, got)

	r.RemoveRoom("a")
	_, _, ok = r.RoomOf("a")
	assert.False(t, ok)

	assert.True(t, r.Cancel("a"))
	assert.True(t, canceled)

	r.Unbind("a")
	assert.False(t, r.UpdateRoom("a", "42", sess))
	assert.False(t, r.Cancel("a"))
	assert.Zero(t, r.Count())
}
