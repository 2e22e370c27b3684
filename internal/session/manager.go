package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/sjawhar/audiocat/internal/pipeline"
	"github.com/sjawhar/audiocat/internal/status"
	"github.com/sjawhar/audiocat/internal/storage"
)

const (
	recordingIDLayout = "20060102150405"
	archiveTimeout    = 5 * time.Minute
	archiveWorkers    = 2
)

type Options struct {
	Prefix         string
	StatusOut      io.Writer
	StatusInterval time.Duration
	Logf           func(format string, args ...any)
}

// Manager runs recordings one at a time and keeps the store, the event hub
// and the archive in step with each one.
type Manager struct {
	store    Store
	hub      EventBroadcaster
	archiver Archiver
	opts     Options
	now      func() time.Time

	mu       sync.Mutex
	active   bool
	current  string
	lastID   string
	reporter *status.Reporter
}

// NewManager wires the optional collaborators. Any of store, hub and archiver
// may be nil.
func NewManager(store Store, hub EventBroadcaster, archiver Archiver, opts Options) *Manager {
	if opts.StatusOut == nil {
		opts.StatusOut = io.Discard
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}

	return &Manager{
		store:    store,
		hub:      hub,
		archiver: archiver,
		opts:     opts,
		now:      time.Now,
	}
}

// CurrentRecording returns the ID of the recording in progress, or the last
// one once it has finished.
func (m *Manager) CurrentRecording() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != "" {
		return m.current
	}
	return m.lastID
}

// LatestStatus returns the most recent status sample of the current recording.
func (m *Manager) LatestStatus() status.Status {
	m.mu.Lock()
	r := m.reporter
	m.mu.Unlock()

	if r == nil {
		return status.Status{}
	}
	return r.Latest()
}

// Run records streams with runner until ctx ends or the runner fails. The
// returned error is the runner's; bookkeeping failures after the run are
// logged.
func (m *Manager) Run(ctx context.Context, runner Runner, streams []*pipeline.Stream) (Result, error) {
	startedAt := m.now().UTC()
	id, err := m.begin(startedAt)
	if err != nil {
		return Result{}, err
	}
	defer m.finish()

	recorded, err := m.recordStart(id, startedAt, runner.BlockSize(), streams)
	if err != nil {
		return Result{RecordingID: id, Status: storage.StatusFailed}, err
	}
	if m.hub != nil {
		m.hub.BroadcastRecordingStarted(id, recorded)
	}

	reporter := status.NewReporter(runner, m.opts.StatusOut, m.opts.StatusInterval)
	reporter.OnSample(func(s status.Status) { m.onSample(id, s) })
	m.mu.Lock()
	m.reporter = reporter
	m.mu.Unlock()

	reportCtx, stopReport := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error {
		reporter.Run(reportCtx)
		return nil
	})

	runErr := runner.Run(ctx, streams)
	stopReport()
	_ = g.Wait()

	endedAt := m.now().UTC()
	res := Result{
		RecordingID: id,
		Status:      storage.StatusCompleted,
		Counters:    runner.Snapshot(),
		Duration:    endedAt.Sub(startedAt),
	}
	errMsg := ""
	if runErr != nil {
		res.Status = storage.StatusFailed
		errMsg = runErr.Error()
	}

	m.recordEnd(res, endedAt, streams, errMsg)
	if m.hub != nil {
		m.hub.BroadcastRecordingEnded(id, res.Status, res.Counters.TotalBytes, res.Duration, errMsg)
	}

	m.opts.Logf("recording %s %s: %s written, %s dropped",
		id, res.Status,
		humanize.IBytes(res.Counters.TotalBytes),
		humanize.IBytes(res.Counters.DroppedBytes))

	if runErr == nil {
		m.archive(ctx, id, streams)
	}

	return res, runErr
}

func (m *Manager) begin(now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return "", ErrRecordingActive
	}

	id := now.Format(recordingIDLayout)
	if id <= m.lastID {
		last, err := time.Parse(recordingIDLayout, m.lastID)
		if err == nil {
			id = last.Add(time.Second).Format(recordingIDLayout)
		}
	}

	m.active = true
	m.current = id
	m.reporter = nil
	return id, nil
}

func (m *Manager) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.lastID = m.current
	m.current = ""
}

func (m *Manager) recordStart(id string, startedAt time.Time, blockSize int, streams []*pipeline.Stream) ([]storage.Stream, error) {
	recorded := make([]storage.Stream, 0, len(streams))
	for _, s := range streams {
		recorded = append(recorded, storage.Stream{
			RecordingID: id,
			Index:       s.Index,
			InputPath:   s.Input,
			OutputPath:  s.Output,
		})
	}

	if m.store == nil {
		return recorded, nil
	}

	if err := m.store.CreateRecording(id, startedAt, m.opts.Prefix, blockSize); err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	for _, s := range recorded {
		if err := m.store.AddStream(id, s.Index, s.InputPath, s.OutputPath); err != nil {
			_ = m.store.EndRecording(id, m.now().UTC(), storage.StatusFailed, 0, err.Error())
			return nil, fmt.Errorf("add stream %d: %w", s.Index, err)
		}
	}
	return recorded, nil
}

func (m *Manager) onSample(id string, s status.Status) {
	if m.hub != nil {
		m.hub.BroadcastStatus(id, s)
	}
	if m.store != nil {
		if err := m.store.UpdateProgress(id, s.TotalBytes); err != nil {
			m.opts.Logf("warning: update progress for %s: %v", id, err)
		}
	}
}

func (m *Manager) recordEnd(res Result, endedAt time.Time, streams []*pipeline.Stream, errMsg string) {
	if m.store == nil {
		return
	}

	for _, s := range streams {
		if err := m.store.UpdateStreamBytes(res.RecordingID, s.Index, res.Counters.PerStream[s.Index]); err != nil {
			m.opts.Logf("warning: update stream %d bytes: %v", s.Index, err)
		}
	}
	if err := m.store.EndRecording(res.RecordingID, endedAt, res.Status, res.Counters.TotalBytes, errMsg); err != nil {
		m.opts.Logf("warning: end recording %s: %v", res.RecordingID, err)
	}
}

// archive uploads every output file. The recording has already stopped, so
// uploads outlive ctx's cancellation but not its values.
func (m *Manager) archive(ctx context.Context, id string, streams []*pipeline.Stream) {
	if m.archiver == nil {
		return
	}

	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(archiveWorkers)
	for _, s := range streams {
		g.Go(func() error {
			if err := m.archiver.Upload(uploadCtx, id, s.Output); err != nil {
				m.opts.Logf("warning: archive %s: %v", s.Output, err)
				return nil
			}
			m.opts.Logf("archived %s", s.Output)
			return nil
		})
	}
	_ = g.Wait()
}
