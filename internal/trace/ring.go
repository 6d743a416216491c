package trace

import (
	"errors"
	"io"
	"sync"
)

const defaultRingSize = 4096

// RingTracer keeps the most recent events in memory. When a dump writer is
// set, Close writes the retained events to it.
type RingTracer struct {
	mu     sync.Mutex
	buf    []Event
	stored uint64
	level  Level

	out    io.Writer
	format Format
}

// NewRingTracer creates a RingTracer retaining capacity events.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = defaultRingSize
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

// WithDump makes Close write the retained events to w.
func (t *RingTracer) WithDump(w io.Writer, format Format) *RingTracer {
	t.out, t.format = w, format
	return t
}

// Emit stores a copy of ev, overwriting the oldest event when full.
func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) {
		return
	}
	stored := *ev
	stored.Seq = NextSeq()

	t.mu.Lock()
	t.buf[t.stored%uint64(len(t.buf))] = stored
	t.stored++
	t.mu.Unlock()
}

// Snapshot returns the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := uint64(len(t.buf))
	n := min(t.stored, size)
	out := make([]Event, 0, n)
	for i := t.stored - n; i < t.stored; i++ {
		out = append(out, t.buf[i%size])
	}
	return out
}

// Dropped returns how many events were overwritten.
func (t *RingTracer) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stored - min(t.stored, uint64(len(t.buf)))
}

// Dump writes the retained events to w.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	events := t.Snapshot()
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op; events stay in memory until Close.
func (t *RingTracer) Flush() error {
	return nil
}

// Close dumps the retained events when a dump writer is set.
func (t *RingTracer) Close() error {
	if t.out == nil {
		return nil
	}
	out := t.out
	t.out = nil
	return errors.Join(t.Dump(out, t.format), closeOutput(out))
}

// Level returns the current tracing level.
func (t *RingTracer) Level() Level {
	return t.level
}

// Enabled returns true if tracing is active.
func (t *RingTracer) Enabled() bool {
	return t.level > LevelOff
}
