package audio

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOutputNamesFollowRegistrationOrder(t *testing.T) {
	reg := NewRegistry("rec")
	for _, in := range []string{"a.raw", "b.raw", "c.raw"} {
		reg.Register(in)
	}

	devices := reg.Devices()
	want := []string{"rec-0.wav", "rec-1.wav", "rec-2.wav"}
	if len(devices) != len(want) {
		t.Fatalf("expected %d devices, got %d", len(want), len(devices))
	}
	for i, d := range devices {
		if d.Index != i {
			t.Fatalf("device %d has index %d", i, d.Index)
		}
		if d.Output != want[i] {
			t.Fatalf("device %d output = %q, want %q", i, d.Output, want[i])
		}
	}
}

func TestDefaultPrefix(t *testing.T) {
	d := NewRegistry("").Register("/dev/dsp")
	if d.Output != "recording-0.wav" {
		t.Fatalf("expected default output name, got %q", d.Output)
	}
}

func TestOpenCreatesTruncatedOutputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.raw")
	if err := os.WriteFile(input, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	prefix := filepath.Join(dir, "out", "rec")
	stale := OutputName(prefix, 0)
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(stale, []byte("stale data"), 0o644); err != nil {
		t.Fatalf("write stale output: %v", err)
	}

	reg := NewRegistry(prefix)
	reg.Register(input)

	streams, err := reg.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(streams))
	}

	buf := make([]byte, 7)
	if _, err := streams[0].Reader.Read(buf); err != nil {
		t.Fatalf("read input: %v", err)
	}
	if _, err := streams[0].Writer.Write(buf); err != nil {
		t.Fatalf("write output: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, err := os.ReadFile(stale)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("expected raw copy without header, got %q", got)
	}
}

func TestOpenMissingInputNamesPath(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(filepath.Join(dir, "rec"))
	reg.Register(filepath.Join(dir, "ok.raw"))
	if err := os.WriteFile(filepath.Join(dir, "ok.raw"), nil, 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	reg.Register(filepath.Join(dir, "missing.raw"))

	_, err := reg.Open()
	if err == nil {
		t.Fatal("expected error for missing input")
	}
	if !strings.Contains(err.Error(), "missing.raw") {
		t.Fatalf("expected error to name the path, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist cause, got %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close after failed Open: %v", err)
	}
}
