package server

import (
	"time"

	"github.com/sjawhar/audiocat/internal/status"
	"github.com/sjawhar/audiocat/internal/storage"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type RecordingStartedEvent struct {
	Event
	RecordingID string           `json:"recording_id"`
	Streams     []storage.Stream `json:"streams"`
}

type StatusEvent struct {
	Event
	RecordingID string `json:"recording_id"`
	status.Status
	Line string `json:"line"`
}

type RecordingEndedEvent struct {
	Event
	RecordingID string  `json:"recording_id"`
	Status      string  `json:"status"`
	TotalBytes  uint64  `json:"total_bytes"`
	Duration    float64 `json:"duration"`
	Error       string  `json:"error,omitempty"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
