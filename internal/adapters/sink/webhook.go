// Package sink forwards processed call outcomes to an external webhook.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dkeye/callrecap/internal/domain"
	"github.com/rs/zerolog/log"
)

type Config struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxTries uint          `mapstructure:"max_tries"`
}

// Webhook posts each outcome as JSON. 5xx, 429 and transport errors are retried.
type Webhook struct {
	url      string
	client   *http.Client
	maxTries uint
	backoff  func() backoff.BackOff
}

// NewWebhook returns nil when no URL is configured, which disables the sink.
func NewWebhook(cfg Config) *Webhook {
	if cfg.URL == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tries := cfg.MaxTries
	if tries == 0 {
		tries = 3
	}
	return &Webhook{
		url:      cfg.URL,
		client:   &http.Client{Timeout: timeout},
		maxTries: tries,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return b
		},
	}
}

func (w *Webhook) Publish(ctx context.Context, outcome domain.CallOutcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode call outcome: %w", err)
	}

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, w.post(ctx, body)
	},
		backoff.WithBackOff(w.backoff()),
		backoff.WithMaxTries(w.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Str("module", "adapters.sink").Str("room", string(outcome.RoomID)).
				Int("attempt", attempt).Dur("retry_in", next).Msg("webhook delivery failed, retrying")
		}),
	)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	log.Info().Str("module", "adapters.sink").Str("room", string(outcome.RoomID)).Int("attempts", attempt).Msg("sent to webhook")
	return nil
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("webhook returned HTTP %d", resp.StatusCode))
	}
}
