// Package status samples pipeline counters and renders the progress line.
package status

import (
	"fmt"
	"time"

	"github.com/sjawhar/audiocat/internal/pipeline"
)

// Status is one sample of the pipeline counters.
type Status struct {
	PendingBytes  uint64         `json:"pending_bytes"`
	PendingJobs   int            `json:"pending_jobs"`
	TotalBytes    uint64         `json:"total_bytes"`
	DroppedBytes  uint64         `json:"dropped_bytes"`
	DroppedBlocks uint64         `json:"dropped_blocks"`
	Rate          uint64         `json:"bytes_per_second"`
	Seconds       uint64         `json:"elapsed_seconds"`
	PerStream     map[int]uint64 `json:"per_stream,omitempty"`
}

// Compute derives the average rate from c. Elapsed time is counted in whole
// seconds and never less than one.
func Compute(c pipeline.Counters, elapsed time.Duration) Status {
	secs := uint64(elapsed / time.Second)
	if secs == 0 {
		secs = 1
	}

	return Status{
		PendingBytes:  c.PendingBytes,
		PendingJobs:   c.PendingJobs,
		TotalBytes:    c.TotalBytes,
		DroppedBytes:  c.DroppedBytes,
		DroppedBlocks: c.DroppedBlocks,
		Rate:          c.TotalBytes / secs,
		Seconds:       secs,
		PerStream:     c.PerStream,
	}
}

// FormatLine renders pending bytes, average bytes per second, total bytes and
// elapsed h:mm:ss.
func FormatLine(s Status) string {
	return fmt.Sprintf("Status: %09d / %09d / %012d - %03d:%02d:%02d",
		s.PendingBytes,
		s.Rate,
		s.TotalBytes,
		s.Seconds/3600,
		(s.Seconds/60)%60,
		s.Seconds%60,
	)
}
