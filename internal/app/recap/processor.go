// Package recap turns a sealed call recording into transcripts, a summary,
// per-participant emails and an optional downstream event.
package recap

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/callrecap/internal/domain"
	"github.com/dkeye/callrecap/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// FailedSummary is reported when the summarizer gives up.
const FailedSummary = "AI processing failed due to an error. Please check the logs."

type Transcriber interface {
	Transcribe(ctx context.Context, name string, audio io.Reader) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, transcripts []domain.Transcript) (string, error)
}

// CallDetails is the call metadata handed to the mailer.
type CallDetails struct {
	RoomID       domain.RoomID
	CallDate     time.Time
	Participants []string
}

// Mailer delivers the recap to one participant. It reports failure, never errors.
type Mailer interface {
	SendSummary(ctx context.Context, to domain.Contributor, summary string, call CallDetails) bool
}

type Sink interface {
	Publish(ctx context.Context, outcome domain.CallOutcome) error
}

type BlobOpener interface {
	Open(ctx context.Context, ref domain.BlobRef) (io.ReadCloser, error)
}

// Processor implements recording.Processor. Mailer and Sink are optional.
type Processor struct {
	Blobs       BlobOpener
	Transcriber Transcriber
	Summarizer  Summarizer
	Mailer      Mailer
	Sink        Sink
	// Concurrency bounds parallel transcriptions and emails; zero means 2.
	Concurrency int
}

func (p *Processor) Process(ctx context.Context, rec domain.CallRecording) domain.CallOutcome {
	logger := log.With().Str("module", "app.recap").Str("room", string(rec.RoomID)).Logger()

	out := domain.CallOutcome{
		RoomID:       rec.RoomID,
		CallDate:     rec.CallDate,
		AudioFiles:   make([]domain.AudioFile, 0, len(rec.Contributions)),
		Participants: make([]string, 0, len(rec.Contributors)),
	}
	for _, c := range rec.Contributions {
		out.AudioFiles = append(out.AudioFiles, domain.AudioFile{User: c.Contributor, FileName: path.Base(c.Blob.Key)})
	}
	for _, c := range rec.Contributors {
		out.Participants = append(out.Participants, c.Name)
	}

	out.Transcripts = p.transcribe(ctx, rec)

	summary, err := p.Summarizer.Summarize(ctx, out.Transcripts)
	if err != nil {
		metrics.IncCollaboratorFailure("summarize")
		logger.Error().Err(err).Msg("summarize call")
		out.Summary = FailedSummary
		out.Error = true
		out.ErrorMessage = err.Error()
	} else {
		out.Summary = summary
		logger.Info().Int("chars", len(summary)).Msg("summary generated")
		p.notify(ctx, rec, &out)
	}

	if p.Sink != nil {
		if err := p.Sink.Publish(ctx, out); err != nil {
			metrics.IncCollaboratorFailure("webhook")
			logger.Error().Err(err).Msg("publish call outcome")
		}
	}
	return out
}

func (p *Processor) limit() int {
	if p.Concurrency > 0 {
		return p.Concurrency
	}
	return 2
}

// transcribe runs every chunk through the transcriber and folds the results
// into one transcript per contributor, chunks in arrival order. A contributor
// whose chunks all failed gets a placeholder.
func (p *Processor) transcribe(ctx context.Context, rec domain.CallRecording) []domain.Transcript {
	texts := make([]string, len(rec.Contributions))
	ok := make([]bool, len(rec.Contributions))

	var g errgroup.Group
	g.SetLimit(p.limit())
	for i, c := range rec.Contributions {
		g.Go(func() error {
			text, err := p.transcribeOne(ctx, c)
			if err != nil {
				metrics.IncCollaboratorFailure("transcribe")
				log.Error().Err(err).Str("module", "app.recap").Str("room", string(rec.RoomID)).
					Str("user", c.Contributor).Str("blob", c.Blob.Key).Msg("transcribe chunk")
				return nil
			}
			texts[i], ok[i] = text, true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.Transcript, 0, len(rec.Contributors))
	for _, who := range rec.Contributors {
		var parts []string
		failed := true
		for i, c := range rec.Contributions {
			if c.Contributor != who.Name || !ok[i] {
				continue
			}
			failed = false
			if t := strings.TrimSpace(texts[i]); t != "" {
				parts = append(parts, t)
			}
		}
		t := domain.Transcript{User: who.Name, Email: who.Contact, Transcript: strings.Join(parts, " ")}
		if failed {
			t.Transcript = fmt.Sprintf("[Transcription failed for %s]", who.Name)
			t.Failed = true
		}
		log.Info().Str("module", "app.recap").Str("room", string(rec.RoomID)).Str("user", who.Name).
			Int("chars", len(t.Transcript)).Bool("failed", t.Failed).Msg("transcribed")
		out = append(out, t)
	}
	return out
}

func (p *Processor) transcribeOne(ctx context.Context, c domain.AudioContribution) (string, error) {
	r, err := p.Blobs.Open(ctx, c.Blob)
	if err != nil {
		return "", fmt.Errorf("open blob: %w", err)
	}
	defer r.Close()
	return p.Transcriber.Transcribe(ctx, c.Contributor, r)
}

// notify emails every contributor that left a contact address. One failure
// never blocks the others.
func (p *Processor) notify(ctx context.Context, rec domain.CallRecording, out *domain.CallOutcome) {
	if p.Mailer == nil {
		return
	}
	details := CallDetails{RoomID: rec.RoomID, CallDate: rec.CallDate, Participants: out.Participants}

	var (
		mu      sync.Mutex
		results = make(map[string]bool)
		g       errgroup.Group
	)
	g.SetLimit(p.limit())
	for _, c := range rec.Contributors {
		if c.Contact == "" {
			continue
		}
		g.Go(func() error {
			sent := p.Mailer.SendSummary(ctx, c, out.Summary, details)
			if !sent {
				metrics.IncCollaboratorFailure("email")
			}
			mu.Lock()
			results[c.Name] = sent
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(results) == 0 {
		return
	}
	out.Emails = results
	out.EmailSent = true
	for _, sent := range results {
		if !sent {
			out.EmailSent = false
		}
	}
}
