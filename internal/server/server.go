// Package server exposes recording progress over HTTP and a websocket.
package server

import (
	"net/http"

	"github.com/sjawhar/audiocat/internal/status"
)

type ControlHooks struct {
	RecordingID func() string
	Status      func() status.Status
	Warnings    func() []string
}

func Handler(hub *Hub, store RecordingStore, controls ControlHooks) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, controls)
	registerAPIRoutes(mux, store, controls)

	return mux
}
