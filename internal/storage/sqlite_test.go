package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestSQLitePragmas(t *testing.T) {
	store := newTestSQLiteStore(t)

	var mode string
	if err := store.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected journal_mode wal, got %q", mode)
	}

	var timeout int
	if err := store.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout failed: %v", err)
	}
	if timeout < 5000 {
		t.Fatalf("expected busy_timeout >= 5000, got %d", timeout)
	}
}

func TestSQLiteRecordingLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)

	startedAt := time.Date(2026, 2, 26, 10, 0, 0, 0, time.UTC)
	id := startedAt.Format("20060102150405")
	if err := store.CreateRecording(id, startedAt, "rec", 4096); err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}
	if err := store.AddStream(id, 0, "/dev/dsp", "rec-0.wav"); err != nil {
		t.Fatalf("AddStream 0 failed: %v", err)
	}
	if err := store.AddStream(id, 1, "/dev/dsp1", "rec-1.wav"); err != nil {
		t.Fatalf("AddStream 1 failed: %v", err)
	}

	if err := store.UpdateProgress(id, 8192); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	rec, err := store.GetRecording(id)
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if rec.Status != StatusRecording || rec.TotalBytes != 8192 || rec.EndedAt != nil {
		t.Fatalf("unexpected active recording: %+v", rec)
	}

	if err := store.UpdateStreamBytes(id, 1, 4096); err != nil {
		t.Fatalf("UpdateStreamBytes failed: %v", err)
	}
	if err := store.EndRecording(id, startedAt.Add(time.Minute), StatusFailed, 12288, "read \"/dev/dsp1\": short read"); err != nil {
		t.Fatalf("EndRecording failed: %v", err)
	}

	rec, err = store.GetRecording(id)
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if rec.Status != StatusFailed {
		t.Fatalf("expected status failed, got %q", rec.Status)
	}
	if rec.EndedAt == nil || !rec.EndedAt.Equal(startedAt.Add(time.Minute)) {
		t.Fatalf("unexpected ended_at %v", rec.EndedAt)
	}
	if rec.Prefix != "rec" || rec.BlockSize != 4096 || rec.TotalBytes != 12288 {
		t.Fatalf("unexpected recording fields: %+v", rec)
	}
	if rec.Error == "" {
		t.Fatal("expected error text to be stored")
	}

	streams, err := store.GetStreams(id)
	if err != nil {
		t.Fatalf("GetStreams failed: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(streams))
	}
	if streams[0].OutputPath != "rec-0.wav" || streams[1].Bytes != 4096 {
		t.Fatalf("unexpected streams: %+v", streams)
	}

	byDate, err := store.GetRecordingsByDate("2026-02-26")
	if err != nil {
		t.Fatalf("GetRecordingsByDate failed: %v", err)
	}
	if len(byDate) != 1 || byDate[0].ID != id {
		t.Fatalf("expected recording for date, got %+v", byDate)
	}

	dates, err := store.GetDates()
	if err != nil {
		t.Fatalf("GetDates failed: %v", err)
	}
	if len(dates) != 1 || dates[0] != "2026-02-26" {
		t.Fatalf("expected dates [2026-02-26], got %#v", dates)
	}
}

func TestSQLiteMissingRecording(t *testing.T) {
	store := newTestSQLiteStore(t)

	if err := store.EndRecording("nope", time.Now(), StatusCompleted, 0, ""); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if _, err := store.GetRecording("nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if err := store.CreateRecording(" ", time.Now(), "rec", 4096); err == nil {
		t.Fatal("expected error for empty recording id")
	}
}

func TestSQLiteStreamRequiresRecording(t *testing.T) {
	store := newTestSQLiteStore(t)

	if err := store.AddStream("missing", 0, "a.raw", "rec-0.wav"); err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestSQLiteConcurrentAccess(t *testing.T) {
	store := newTestSQLiteStore(t)

	startedAt := time.Now().UTC()
	id := startedAt.Format("20060102150405")
	if err := store.CreateRecording(id, startedAt, "rec", 4096); err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_ = store.AddStream(id, idx, fmt.Sprintf("in-%d.raw", idx), fmt.Sprintf("rec-%d.wav", idx))
			_ = store.UpdateProgress(id, uint64(idx)*4096)
			_, _ = store.GetRecording(id)
		}(i)
	}
	wg.Wait()

	streams, err := store.GetStreams(id)
	if err != nil {
		t.Fatalf("GetStreams failed: %v", err)
	}
	if len(streams) != 20 {
		t.Fatalf("expected 20 streams, got %d", len(streams))
	}
}
