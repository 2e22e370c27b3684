package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/audiocat/internal/status"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// registerWSRoute streams hub events to each client. A new client first gets
// a connection event and then the latest status sample, so it sees progress
// before the next tick.
func registerWSRoute(mux *http.ServeMux, hub *Hub, controls ControlHooks) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		writeEvent(conn, ConnectionEvent{
			Event:     newEvent("connection", time.Now().UTC()),
			Connected: true,
		})

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		if snapshot, ok := statusSnapshot(controls); ok {
			writeEvent(conn, snapshot)
		}

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	})
}

func statusSnapshot(controls ControlHooks) (StatusEvent, bool) {
	if controls.Status == nil {
		return StatusEvent{}, false
	}

	current := controls.Status()
	recordingID := ""
	if controls.RecordingID != nil {
		recordingID = controls.RecordingID()
	}
	return StatusEvent{
		Event:       newEvent("status", time.Now().UTC()),
		RecordingID: recordingID,
		Status:      current,
		Line:        status.FormatLine(current),
	}, true
}

func writeEvent(conn *websocket.Conn, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}
