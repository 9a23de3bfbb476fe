package domain

import (
	"errors"
	"time"
)

var (
	ErrUploadFailed  = errors.New("audio upload failed")
	ErrSessionSealed = errors.New("recording session already sealed for processing")
	ErrEmptyUpload   = errors.New("empty audio upload")
)

// BlobRef is a storage-specific handle to one stored audio chunk.
type BlobRef struct {
	Key string `json:"key"`
}

// AudioContribution is one uploaded chunk. Immutable once appended.
type AudioContribution struct {
	Contributor string    `json:"user"`
	Contact     string    `json:"email,omitempty"`
	Blob        BlobRef   `json:"blob"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// Contributor is a distinct uploader of a recording session, keyed by display name.
type Contributor struct {
	Name    string `json:"user"`
	Contact string `json:"email,omitempty"`
}

// CallRecording is the sealed input of post-call processing.
type CallRecording struct {
	RoomID        RoomID
	CallDate      time.Time
	Contributions []AudioContribution
	Contributors  []Contributor
}

type Transcript struct {
	User       string `json:"user"`
	Email      string `json:"email,omitempty"`
	Transcript string `json:"transcript"`
	Failed     bool   `json:"failed,omitempty"`
}

type AudioFile struct {
	User     string `json:"user"`
	FileName string `json:"fileName"`
}

// CallOutcome describes a processed call for downstream consumers.
type CallOutcome struct {
	RoomID       RoomID          `json:"roomId"`
	CallDate     time.Time       `json:"callDate"`
	AudioFiles   []AudioFile     `json:"audioFiles"`
	Transcripts  []Transcript    `json:"transcripts"`
	Summary      string          `json:"summary"`
	Participants []string        `json:"participants"`
	EmailSent    bool            `json:"emailSent"`
	Emails       map[string]bool `json:"emails,omitempty"`
	Error        bool            `json:"error"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}
