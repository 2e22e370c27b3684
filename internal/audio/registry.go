// Package audio opens the capture devices and the files they are recorded to.
// Bytes are copied as-is; no container header is written.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sjawhar/audiocat/internal/pipeline"
)

// DefaultPrefix is used when no output prefix is configured.
const DefaultPrefix = "recording"

// Device is one registered input and the output file it records to.
type Device struct {
	Index  int
	Input  string
	Output string
}

// Registry holds registered devices and, once opened, their file handles.
type Registry struct {
	prefix string

	mu      sync.Mutex
	devices []Device
	files   []*os.File
}

func NewRegistry(prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Registry{prefix: prefix}
}

// OutputName returns the output path for the device at index.
func OutputName(prefix string, index int) string {
	return fmt.Sprintf("%s-%d.wav", prefix, index)
}

// Register adds an input and assigns the next output name.
func (r *Registry) Register(input string) Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := Device{
		Index:  len(r.devices),
		Input:  input,
		Output: OutputName(r.prefix, len(r.devices)),
	}
	r.devices = append(r.devices, d)
	return d
}

func (r *Registry) Devices() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Device(nil), r.devices...)
}

// Open opens every input for reading and creates or truncates every output.
// If any open fails, the handles opened so far are closed.
func (r *Registry) Open() ([]*pipeline.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.files) > 0 {
		return nil, errors.New("devices already open")
	}

	streams := make([]*pipeline.Stream, 0, len(r.devices))
	for _, d := range r.devices {
		in, err := os.Open(d.Input)
		if err != nil {
			_ = r.closeLocked()
			return nil, fmt.Errorf("open input %q: %w", d.Input, err)
		}
		r.files = append(r.files, in)

		if dir := filepath.Dir(d.Output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				_ = r.closeLocked()
				return nil, fmt.Errorf("create output directory: %w", err)
			}
		}

		out, err := os.OpenFile(d.Output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			_ = r.closeLocked()
			return nil, fmt.Errorf("open output %q: %w", d.Output, err)
		}
		r.files = append(r.files, out)

		streams = append(streams, &pipeline.Stream{
			Index:  d.Index,
			Input:  d.Input,
			Output: d.Output,
			Reader: in,
			Writer: out,
		})
	}

	return streams, nil
}

// Close closes every handle opened by Open.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Registry) closeLocked() error {
	var errs []error
	for _, f := range r.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", f.Name(), err))
		}
	}
	r.files = nil
	return errors.Join(errs...)
}
