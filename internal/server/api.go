package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/sjawhar/audiocat/internal/status"
	"github.com/sjawhar/audiocat/internal/storage"
)

var recordingIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type RecordingStore interface {
	GetRecordingsByDate(date string) ([]storage.Recording, error)
	GetRecording(id string) (storage.Recording, error)
	GetStreams(recordingID string) ([]storage.Stream, error)
	GetDates() ([]string, error)
}

func registerAPIRoutes(mux *http.ServeMux, store RecordingStore, controls ControlHooks) {
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var current status.Status
		if controls.Status != nil {
			current = controls.Status()
		}
		recordingID := ""
		if controls.RecordingID != nil {
			recordingID = controls.RecordingID()
		}
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"recording_id": recordingID,
			"status":       current,
			"line":         status.FormatLine(current),
			"warnings":     warnings,
		})
	})

	if store == nil {
		return
	}

	mux.HandleFunc("GET /api/recordings", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		recordings, err := store.GetRecordingsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list recordings: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, recordings)
	})

	mux.HandleFunc("GET /api/recordings/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validRecordingID(id) {
			writeJSONError(w, http.StatusForbidden, "invalid recording id")
			return
		}

		rec, err := store.GetRecording(id)
		if err != nil {
			writeJSONError(w, notFoundOr500(err), fmt.Sprintf("get recording: %v", err))
			return
		}

		streams, err := store.GetStreams(id)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get recording streams: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"recording": rec,
			"streams":   streams,
		})
	})

	mux.HandleFunc("GET /api/recordings/{id}/streams/{index}/audio", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validRecordingID(id) {
			writeJSONError(w, http.StatusForbidden, "invalid recording id")
			return
		}
		index, err := strconv.Atoi(r.PathValue("index"))
		if err != nil || index < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid stream index")
			return
		}

		streams, err := store.GetStreams(id)
		if err != nil {
			writeJSONError(w, notFoundOr500(err), fmt.Sprintf("get recording streams: %v", err))
			return
		}

		var outputPath string
		for _, st := range streams {
			if st.Index == index {
				outputPath = st.OutputPath
				break
			}
		}
		if outputPath == "" {
			writeJSONError(w, http.StatusNotFound, "stream not found")
			return
		}

		f, err := os.Open(filepath.Clean(outputPath))
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "output file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat output: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeContent(w, r, filepath.Base(outputPath), info.ModTime(), f)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, dates)
	})
}

func validRecordingID(id string) bool {
	return recordingIDPattern.MatchString(id)
}

func notFoundOr500(err error) int {
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
