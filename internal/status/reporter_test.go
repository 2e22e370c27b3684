package status

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sjawhar/audiocat/internal/pipeline"
)

type fixedSampler struct {
	counters pipeline.Counters
}

func (f fixedSampler) Snapshot() pipeline.Counters { return f.counters }

// lockedBuffer lets the test read output while the reporter is writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReporterSampleUsesElapsedSinceStart(t *testing.T) {
	start := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	r := NewReporter(fixedSampler{pipeline.Counters{TotalBytes: 120000, PendingBytes: 4096}}, &bytes.Buffer{}, time.Second)
	r.start = start
	r.now = func() time.Time { return start.Add(10 * time.Second) }

	var hooked []Status
	r.OnSample(func(s Status) { hooked = append(hooked, s) })

	s := r.Sample()
	require.EqualValues(t, 12000, s.Rate)
	require.EqualValues(t, 4096, s.PendingBytes)
	require.Equal(t, s, r.Latest())
	require.Len(t, hooked, 1)
}

func TestReporterRunPrintsLinesUntilCancelled(t *testing.T) {
	var out lockedBuffer
	r := NewReporter(fixedSampler{pipeline.Counters{TotalBytes: 10}}, &out, 5*time.Millisecond)
	require.False(t, r.overwrite)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "reporter did not stop")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	for _, line := range lines {
		require.True(t, strings.HasPrefix(line, "Status: "), "unexpected line %q", line)
	}
	require.EqualValues(t, 10, r.Latest().TotalBytes)
}

func TestReporterDefaultsInterval(t *testing.T) {
	r := NewReporter(fixedSampler{}, &bytes.Buffer{}, 0)
	require.Equal(t, DefaultInterval, r.interval)
}
