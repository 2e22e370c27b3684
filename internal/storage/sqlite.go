package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusRecording = "recording"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Recording struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     string     `json:"status"`
	Prefix     string     `json:"prefix"`
	BlockSize  int        `json:"block_size"`
	TotalBytes uint64     `json:"total_bytes"`
	Error      string     `json:"error,omitempty"`
}

type Stream struct {
	RecordingID string `json:"recording_id"`
	Index       int    `json:"index"`
	InputPath   string `json:"input_path"`
	OutputPath  string `json:"output_path"`
	Bytes       uint64 `json:"bytes"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "audiocat.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			prefix TEXT NOT NULL DEFAULT '',
			block_size INTEGER NOT NULL DEFAULT 0,
			total_bytes INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create recordings table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS streams (
			recording_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			input_path TEXT NOT NULL,
			output_path TEXT NOT NULL,
			bytes INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY(recording_id, idx),
			FOREIGN KEY(recording_id) REFERENCES recordings(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create streams table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_recordings_started_at ON recordings(started_at)"); err != nil {
		return fmt.Errorf("create recordings index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateRecording(id string, startedAt time.Time, prefix string, blockSize int) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("recording id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO recordings(id, started_at, status, prefix, block_size) VALUES(?, ?, ?, ?, ?)`,
		id,
		startedAt.UTC().Format(time.RFC3339Nano),
		StatusRecording,
		prefix,
		blockSize,
	)
	if err != nil {
		return fmt.Errorf("create recording %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) AddStream(recordingID string, index int, inputPath, outputPath string) error {
	_, err := s.db.Exec(
		`INSERT INTO streams(recording_id, idx, input_path, output_path) VALUES(?, ?, ?, ?)`,
		recordingID,
		index,
		inputPath,
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("add stream %d to recording %s: %w", index, recordingID, err)
	}
	return nil
}

// UpdateProgress records the running byte total of an active recording.
func (s *SQLiteStore) UpdateProgress(id string, totalBytes uint64) error {
	res, err := s.db.Exec(
		`UPDATE recordings SET total_bytes = ? WHERE id = ?`,
		int64(totalBytes),
		id,
	)
	if err != nil {
		return fmt.Errorf("update progress for recording %s: %w", id, err)
	}
	return requireRow(res, "update progress")
}

func (s *SQLiteStore) UpdateStreamBytes(recordingID string, index int, n uint64) error {
	res, err := s.db.Exec(
		`UPDATE streams SET bytes = ? WHERE recording_id = ? AND idx = ?`,
		int64(n),
		recordingID,
		index,
	)
	if err != nil {
		return fmt.Errorf("update stream %d of recording %s: %w", index, recordingID, err)
	}
	return requireRow(res, "update stream bytes")
}

func (s *SQLiteStore) EndRecording(id string, endedAt time.Time, status string, totalBytes uint64, errMsg string) error {
	res, err := s.db.Exec(
		`UPDATE recordings SET ended_at = ?, status = ?, total_bytes = ?, error = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		status,
		int64(totalBytes),
		errMsg,
		id,
	)
	if err != nil {
		return fmt.Errorf("end recording %s: %w", id, err)
	}
	return requireRow(res, "end recording")
}

func (s *SQLiteStore) GetRecording(id string) (Recording, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, ended_at, status, prefix, block_size, total_bytes, error FROM recordings WHERE id = ?`,
		id,
	)

	rec, err := scanRecording(row)
	if err != nil {
		return Recording{}, fmt.Errorf("query recording %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetRecordingsByDate(date string) ([]Recording, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, ended_at, status, prefix, block_size, total_bytes, error
		 FROM recordings
		 WHERE substr(started_at, 1, 10) = ?
		 ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query recordings by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	recordings := make([]Recording, 0, 16)
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings rows: %w", err)
	}

	return recordings, nil
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM recordings ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) GetStreams(recordingID string) ([]Stream, error) {
	rows, err := s.db.Query(
		`SELECT recording_id, idx, input_path, output_path, bytes
		 FROM streams
		 WHERE recording_id = ?
		 ORDER BY idx ASC`,
		recordingID,
	)
	if err != nil {
		return nil, fmt.Errorf("query streams for recording %s: %w", recordingID, err)
	}
	defer func() { _ = rows.Close() }()

	streams := make([]Stream, 0, 4)
	for rows.Next() {
		var st Stream
		var n int64
		if err := rows.Scan(&st.RecordingID, &st.Index, &st.InputPath, &st.OutputPath, &n); err != nil {
			return nil, fmt.Errorf("scan stream for recording %s: %w", recordingID, err)
		}
		st.Bytes = uint64(n)
		streams = append(streams, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream rows for recording %s: %w", recordingID, err)
	}

	return streams, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (Recording, error) {
	var rec Recording
	var startedAt string
	var endedAt sql.NullString
	var total int64
	if err := row.Scan(&rec.ID, &startedAt, &endedAt, &rec.Status, &rec.Prefix, &rec.BlockSize, &total, &rec.Error); err != nil {
		return Recording{}, fmt.Errorf("scan recording: %w", err)
	}
	rec.TotalBytes = uint64(total)

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Recording{}, fmt.Errorf("parse started_at: %w", err)
	}
	rec.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Recording{}, fmt.Errorf("parse ended_at: %w", err)
		}
		rec.EndedAt = &parsedEnd
	}

	return rec, nil
}

func requireRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
