package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParticipant(t *testing.T) {
	p, err := NewParticipant("c1", "  Alice ", "Alice <alice@x.com>")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)
	assert.Equal(t, "alice@x.com", p.Contact)
	assert.Equal(t, ConnID("c1"), p.ID)
}

func TestNewParticipantValidation(t *testing.T) {
	tests := []struct {
		name    string
		display string
		contact string
		wantErr error
	}{
		{"empty name", "   ", "", ErrDisplayNameEmpty},
		{"long name", strings.Repeat("x", MaxDisplayNameLen+1), "", ErrDisplayNameTooLong},
		{"bad contact", "Bob", "not-an-address", ErrContactInvalid},
		{"no contact is fine", "Bob", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParticipant("c", tt.display, tt.contact)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRoomIDValidate(t *testing.T) {
	require.ErrorIs(t, RoomID("").Validate(), ErrRoomIDEmpty)
	require.ErrorIs(t, RoomID(strings.Repeat("r", MaxRoomIDLen+1)).Validate(), ErrRoomIDLong)
	require.NoError(t, RoomID("42").Validate())
}
