package session

import (
	"context"
	"time"

	"github.com/sjawhar/audiocat/internal/pipeline"
	"github.com/sjawhar/audiocat/internal/status"
	"github.com/sjawhar/audiocat/internal/storage"
)

type Store interface {
	CreateRecording(id string, startedAt time.Time, prefix string, blockSize int) error
	AddStream(recordingID string, index int, inputPath, outputPath string) error
	UpdateProgress(id string, totalBytes uint64) error
	UpdateStreamBytes(recordingID string, index int, n uint64) error
	EndRecording(id string, endedAt time.Time, status string, totalBytes uint64, errMsg string) error
}

type EventBroadcaster interface {
	BroadcastRecordingStarted(recordingID string, streams []storage.Stream)
	BroadcastStatus(recordingID string, s status.Status)
	BroadcastRecordingEnded(recordingID, state string, totalBytes uint64, duration time.Duration, errMsg string)
}

type Archiver interface {
	Upload(ctx context.Context, recordingID, localPath string) error
}

// Runner is a pipeline that can be run once and sampled while it runs.
type Runner interface {
	Run(ctx context.Context, streams []*pipeline.Stream) error
	Snapshot() pipeline.Counters
	BlockSize() int
}

// Result describes a finished recording.
type Result struct {
	RecordingID string
	Status      string
	Counters    pipeline.Counters
	Duration    time.Duration
}
