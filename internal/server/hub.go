package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/sjawhar/audiocat/internal/status"
	"github.com/sjawhar/audiocat/internal/storage"
)

// Hub fans events out to websocket subscribers. Slow subscribers miss events
// rather than stall the recording.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastRecordingStarted(recordingID string, streams []storage.Stream) {
	h.broadcastEvent(RecordingStartedEvent{
		Event:       newEvent("recording_started", time.Now().UTC()),
		RecordingID: recordingID,
		Streams:     streams,
	})
}

func (h *Hub) BroadcastStatus(recordingID string, s status.Status) {
	h.broadcastEvent(StatusEvent{
		Event:       newEvent("status", time.Now().UTC()),
		RecordingID: recordingID,
		Status:      s,
		Line:        status.FormatLine(s),
	})
}

func (h *Hub) BroadcastRecordingEnded(recordingID, state string, totalBytes uint64, duration time.Duration, errMsg string) {
	h.broadcastEvent(RecordingEndedEvent{
		Event:       newEvent("recording_ended", time.Now().UTC()),
		RecordingID: recordingID,
		Status:      state,
		TotalBytes:  totalBytes,
		Duration:    duration.Seconds(),
		Error:       errMsg,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
