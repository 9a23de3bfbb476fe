package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/callrecap/internal/domain"
)

func fastWebhook(url string, tries uint) *Webhook {
	w := NewWebhook(Config{URL: url, MaxTries: tries})
	w.backoff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return w
}

func TestDisabledWithoutURL(t *testing.T) {
	assert.Nil(t, NewWebhook(Config{}))
}

func TestPublishPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := fastWebhook(srv.URL, 3).Publish(context.Background(), domain.CallOutcome{
		RoomID:       "42",
		CallDate:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		AudioFiles:   []domain.AudioFile{{User: "Alice", FileName: "42_a.webm"}},
		Transcripts:  []domain.Transcript{{User: "Alice", Email: "alice@x.com", Transcript: "hi"}},
		Summary:      "You said hi.",
		Participants: []string{"Alice", "Bob"},
		EmailSent:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, "42", got["roomId"])
	assert.Equal(t, "2026-03-01T10:00:00Z", got["callDate"])
	assert.Equal(t, []any{"Alice", "Bob"}, got["participants"])
	assert.Equal(t, true, got["emailSent"])
	assert.Equal(t, false, got["error"])
	assert.Equal(t, "You said hi.", got["summary"])
	require.Len(t, got["audioFiles"], 1)
}

func TestPublishRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, fastWebhook(srv.URL, 5).Publish(context.Background(), domain.CallOutcome{RoomID: "42"}))
	assert.EqualValues(t, 3, calls.Load())
}

func TestPublishGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	require.Error(t, fastWebhook(srv.URL, 2).Publish(context.Background(), domain.CallOutcome{RoomID: "42"}))
	assert.EqualValues(t, 2, calls.Load())
}

func TestPublishClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	require.Error(t, fastWebhook(srv.URL, 5).Publish(context.Background(), domain.CallOutcome{RoomID: "42"}))
	assert.EqualValues(t, 1, calls.Load())
}
