package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrShortRead is wrapped by every failed or incomplete block read.
	ErrShortRead = errors.New("short read")
	// ErrShortWrite is wrapped by every failed or incomplete block write.
	ErrShortWrite = errors.New("short write")
	// ErrQueueClosed is returned by Enqueue after Close or Abort, and by
	// Dequeue once a closed queue has been drained.
	ErrQueueClosed = errors.New("queue closed")
)

// StreamError reports an I/O failure on one stream.
type StreamError struct {
	Op    string
	Path  string
	Index int
	Err   error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s %q (stream %d): %v", e.Op, e.Path, e.Index, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

func shortReadError(s *Stream, got, want int, cause error) error {
	err := fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, got, want)
	if cause != nil {
		err = fmt.Errorf("%w: %w", err, cause)
	}
	return &StreamError{Op: "read", Path: s.Input, Index: s.Index, Err: err}
}

func shortWriteError(s *Stream, got, want int, cause error) error {
	err := fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, got, want)
	if cause != nil {
		err = fmt.Errorf("%w: %w", err, cause)
	}
	return &StreamError{Op: "write", Path: s.Output, Index: s.Index, Err: err}
}
