package domain

import "errors"

// RoomCapacity is the party size of a call.
const RoomCapacity = 2

const MaxRoomIDLen = 128

var (
	ErrRoomFull    = errors.New("room is full")
	ErrRoomIDEmpty = errors.New("room id empty")
	ErrRoomIDLong  = errors.New("room id too long")
)

// RoomID is an opaque key supplied by clients.
type RoomID string

func (id RoomID) Validate() error {
	if id == "" {
		return ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return ErrRoomIDLong
	}
	return nil
}

type Room struct {
	ID RoomID
}
