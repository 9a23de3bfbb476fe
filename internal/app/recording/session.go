package recording

import (
	"time"

	"github.com/dkeye/callrecap/internal/domain"
)

type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateProcessing State = "processing"
)

// session is the per-room aggregation record. All fields are guarded by Aggregator.mu.
type session struct {
	roomID    domain.RoomID
	startedAt time.Time

	contributions []domain.AudioContribution
	contributors  []domain.Contributor
	seen          map[string]int

	// triggered flips once, when the distinct contributor count first reaches the threshold.
	triggered bool
	// sealed is set when processing has read the contribution list; later uploads are refused.
	sealed bool

	stale    *time.Timer
	staleGen uint64
}

func newSession(roomID domain.RoomID, now time.Time) *session {
	return &session{
		roomID:    roomID,
		startedAt: now,
		seen:      make(map[string]int),
	}
}

func (s *session) state() State {
	if s.triggered {
		return StateProcessing
	}
	return StateCollecting
}

// add appends c and reports whether its contributor is new to the session.
func (s *session) add(c domain.AudioContribution) bool {
	s.contributions = append(s.contributions, c)
	if i, ok := s.seen[c.Contributor]; ok {
		if s.contributors[i].Contact == "" && c.Contact != "" {
			s.contributors[i].Contact = c.Contact
		}
		return false
	}
	s.seen[c.Contributor] = len(s.contributors)
	s.contributors = append(s.contributors, domain.Contributor{Name: c.Contributor, Contact: c.Contact})
	return true
}

func (s *session) recording() domain.CallRecording {
	return domain.CallRecording{
		RoomID:        s.roomID,
		CallDate:      s.startedAt,
		Contributions: append([]domain.AudioContribution(nil), s.contributions...),
		Contributors:  append([]domain.Contributor(nil), s.contributors...),
	}
}

func (s *session) blobs() []domain.BlobRef {
	out := make([]domain.BlobRef, 0, len(s.contributions))
	for _, c := range s.contributions {
		out = append(out, c.Blob)
	}
	return out
}

func (s *session) stopStale() {
	if s.stale != nil {
		s.stale.Stop()
		s.stale = nil
	}
	s.staleGen++
}
