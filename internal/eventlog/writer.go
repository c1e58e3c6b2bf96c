// Package eventlog writes the per-run event timeline: one header line
// followed by one space-delimited line per event, carrying the event name,
// the absolute epoch-millisecond timestamp and the offset from the run
// origin. Lines are appended in call order and flushed synchronously, so the
// file always matches the sequence of actions the orchestrator has issued.
package eventlog

import (
	"fmt"
	"os"
	"sync"

	"github.com/tkoenig/watchlab/internal/clock"
	"github.com/tkoenig/watchlab/internal/domain"
)

const header = "event abs rel\n"

// Writer appends timeline rows to a single run's event-log file.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	clk    clock.Clock
	origin int64
	closed bool
}

// Create opens path for writing, truncating any previous content, and writes
// the header line. The origin is not set until RecordOrigin is called.
func Create(path string, clk clock.Clock) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating event log: %w", err)
	}
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing event log header: %w", err)
	}
	return &Writer{f: f, clk: clk}, nil
}

// RecordOrigin captures the run origin timestamp, writes the origin line with
// offset zero and returns the origin in epoch milliseconds.
func (w *Writer) RecordOrigin() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.origin != 0 {
		return 0, fmt.Errorf("origin already recorded")
	}
	w.origin = clock.EpochMillis(w.clk.Now())
	if err := w.append(domain.EventOrigin, w.origin); err != nil {
		return 0, err
	}
	return w.origin, nil
}

// Origin returns the run origin in epoch milliseconds, or zero before
// RecordOrigin has been called.
func (w *Writer) Origin() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.origin
}

// Record appends one event line with the current timestamp and its offset
// from the origin.
func (w *Writer) Record(event string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.origin == 0 {
		return fmt.Errorf("recording %q before origin", event)
	}
	return w.append(event, clock.EpochMillis(w.clk.Now()))
}

func (w *Writer) append(event string, abs int64) error {
	if w.closed {
		return fmt.Errorf("event log closed")
	}
	if _, err := fmt.Fprintf(w.f, "%s %d %d\n", event, abs, abs-w.origin); err != nil {
		return fmt.Errorf("appending %q: %w", event, err)
	}
	return w.f.Sync()
}

// Close flushes and closes the underlying file. Safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.f.Close()
}
