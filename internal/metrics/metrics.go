// Package metrics exposes prometheus collectors for rooms, signaling and call processing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callrecap_rooms_active",
		Help: "Rooms currently held in memory (including rooms in their grace period)",
	})

	joinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callrecap_joins_total",
		Help: "Join attempts by outcome",
	}, []string{"outcome"}) // outcome=admitted|room_full|invalid|rate_limited

	roomsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callrecap_rooms_reaped_total",
		Help: "Rooms destroyed after staying empty for the grace period",
	})

	signalMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callrecap_signal_messages_total",
		Help: "Inbound signaling messages by type",
	}, []string{"type"})

	signalDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callrecap_signal_dropped_total",
		Help: "Outbound signaling frames dropped due to backpressure",
	})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callrecap_uploads_total",
		Help: "Audio uploads by outcome",
	}, []string{"outcome"}) // outcome=accepted|invalid|failed|late|rate_limited

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callrecap_upload_bytes_total",
		Help: "Bytes of audio accepted",
	})

	recordingSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callrecap_recording_sessions_total",
		Help: "Recording sessions by terminal state",
	}, []string{"state"}) // state=processed|stale

	processingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callrecap_processing_total",
		Help: "Call processing runs by outcome",
	}, []string{"outcome"}) // outcome=success|failed|panic

	processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "callrecap_processing_duration_seconds",
		Help:    "Time spent in transcription, summary and notification per call",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	collaboratorFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callrecap_collaborator_failures_total",
		Help: "Failures of external collaborators",
	}, []string{"collaborator"}) // collaborator=transcribe|summarize|email|sink|blob_delete
)

func IncRoomsActive()   { roomsActive.Inc() }
func DecRoomsActive()   { roomsActive.Dec() }
func IncRoomsReaped()   { roomsReapedTotal.Inc() }
func IncSignalDropped() { signalDroppedTotal.Inc() }

func IncJoin(outcome string)          { joinsTotal.WithLabelValues(outcome).Inc() }
func IncSignalMessage(msgType string) { signalMessagesTotal.WithLabelValues(msgType).Inc() }

func RecordUpload(outcome string, bytes int64) {
	uploadsTotal.WithLabelValues(outcome).Inc()
	if outcome == "accepted" && bytes > 0 {
		uploadBytesTotal.Add(float64(bytes))
	}
}

func IncRecordingSession(state string) { recordingSessionsTotal.WithLabelValues(state).Inc() }

func RecordProcessing(outcome string, seconds float64) {
	processingTotal.WithLabelValues(outcome).Inc()
	processingDuration.Observe(seconds)
}

func IncCollaboratorFailure(name string) { collaboratorFailuresTotal.WithLabelValues(name).Inc() }
