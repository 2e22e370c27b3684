package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/audiocat/internal/status"
)

func TestWSBroadcastEventShape(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastStatus("r1", status.Status{TotalBytes: 4096, Seconds: 1, Rate: 4096})

	select {
	case msg := <-ch:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload["type"] != "status" {
			t.Fatalf("expected event type status, got %#v", payload["type"])
		}
		if payload["line"] == nil {
			t.Fatalf("expected rendered status line in payload: %s", string(msg))
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for websocket broadcast")
	}
}

func TestWSStreamsEventsToClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(Handler(hub, nil, ControlHooks{}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read connection event: %v", err)
	}
	if !strings.Contains(string(msg), `"connection"`) {
		t.Fatalf("expected connection event first, got %s", msg)
	}

	// The handler subscribes right after sending the connection event.
	deadline := time.Now().Add(time.Second)
	for subscriberCount(hub) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.BroadcastRecordingEnded("r1", "completed", 8192, 3*time.Second, "")
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if !strings.Contains(string(msg), `"recording_ended"`) {
		t.Fatalf("expected recording_ended event, got %s", msg)
	}
}

func TestWSSendsStatusSnapshotOnConnect(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(Handler(hub, nil, ControlHooks{
		RecordingID: func() string { return "20260301093000" },
		Status: func() status.Status {
			return status.Status{PendingBytes: 4096, TotalBytes: 120000, Rate: 12000, Seconds: 10}
		},
	}))
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, msg, err := conn.ReadMessage(); err != nil || !strings.Contains(string(msg), `"connection"`) {
		t.Fatalf("expected connection event first, got %s (err %v)", msg, err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read status snapshot: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(msg, &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload["type"] != "status" {
		t.Fatalf("expected status snapshot, got %s", msg)
	}
	if payload["recording_id"] != "20260301093000" {
		t.Fatalf("unexpected recording id %#v", payload["recording_id"])
	}
	if payload["total_bytes"] != float64(120000) {
		t.Fatalf("unexpected total bytes %#v", payload["total_bytes"])
	}
	if payload["line"] != "Status: 000004096 / 000012000 / 000000120000 - 000:00:10" {
		t.Fatalf("unexpected status line %#v", payload["line"])
	}
}

func TestWSUnsubscribesWhenClientCloses(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(Handler(hub, nil, ControlHooks{}))
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	waitForSubscribers(t, hub, 1)

	_ = conn.Close()

	// No broadcast is needed for the handler to notice the close.
	waitForSubscribers(t, hub, 0)
}

func dialWS(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for subscriberCount(hub) != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", want, subscriberCount(hub))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func subscriberCount(h *Hub) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
