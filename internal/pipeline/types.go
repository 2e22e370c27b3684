package pipeline

import (
	"fmt"
	"io"
	"strings"
)

// DefaultBlockSize is the number of bytes moved per read and per write.
const DefaultBlockSize = 4096

// Stream pairs one input with the output it is recorded to. A Stream must not
// be modified once its capture has started.
type Stream struct {
	Index  int
	Input  string
	Output string
	Reader io.Reader
	Writer io.Writer
}

// WriteJob is one pending block write. Payload is owned by the job.
type WriteJob struct {
	Target  *Stream
	Payload []byte
}

// Counters is a point-in-time view of a queue's accounting.
type Counters struct {
	PendingBytes  uint64
	PendingJobs   int
	TotalBytes    uint64
	DroppedBytes  uint64
	DroppedBlocks uint64
	PerStream     map[int]uint64
}

// Backpressure selects what Enqueue does when a bounded queue is full.
type Backpressure int

const (
	Unbounded Backpressure = iota
	Block
	Drop
)

func (b Backpressure) String() string {
	switch b {
	case Unbounded:
		return "unbounded"
	case Block:
		return "block"
	case Drop:
		return "drop"
	default:
		return fmt.Sprintf("Backpressure(%d)", int(b))
	}
}

// ParseBackpressure accepts "unbounded", "block" or "drop".
func ParseBackpressure(s string) (Backpressure, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unbounded":
		return Unbounded, nil
	case "block":
		return Block, nil
	case "drop":
		return Drop, nil
	}
	return Unbounded, fmt.Errorf("unknown backpressure policy %q", s)
}

// FailurePolicy decides how far a capture error reaches.
type FailurePolicy int

const (
	// FailFast stops the whole pipeline on the first I/O error.
	FailFast FailurePolicy = iota
	// Isolate stops only the stream whose read failed. Write errors still
	// stop everything.
	Isolate
)

func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case Isolate:
		return "isolate"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy accepts "fail-fast" or "isolate".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "isolate":
		return Isolate, nil
	}
	return FailFast, fmt.Errorf("unknown failure policy %q", s)
}
