// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"net/mail"
	"strings"
)

const (
	MaxDisplayNameLen = 64
	MaxContactLen     = 254
)

var (
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrContactInvalid     = errors.New("contact address invalid")
)

// ConnID identifies one transport connection. A person who reconnects gets a new one.
type ConnID string

type Participant struct {
	ID          ConnID `json:"id"`
	DisplayName string `json:"name"`
	Contact     string `json:"-"`
}

// NewParticipant validates the join-time identity of a connection.
// Contact is optional; when present it must parse as a single address.
func NewParticipant(id ConnID, displayName, contact string) (*Participant, error) {
	name, err := NormalizeDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	addr, err := NormalizeContact(contact)
	if err != nil {
		return nil, err
	}
	return &Participant{ID: id, DisplayName: name, Contact: addr}, nil
}

func NormalizeDisplayName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrDisplayNameEmpty
	}
	if len(s) > MaxDisplayNameLen {
		return "", ErrDisplayNameTooLong
	}
	return s, nil
}

func NormalizeContact(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if len(s) > MaxContactLen {
		return "", ErrContactInvalid
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", ErrContactInvalid
	}
	return addr.Address, nil
}
