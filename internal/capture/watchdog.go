package capture

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watchdog observes the capture output file and warns when it stops growing.
// A capture tool that dies or loses its interface keeps the run alive (the
// subprocess is a detached failure domain), so the watchdog is the only
// in-run signal that packets have stopped flowing. It never aborts anything.
type Watchdog struct {
	path     string
	interval time.Duration
	log      *zap.Logger

	mu        sync.Mutex
	lastWrite time.Time

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatchdog creates a watchdog for the capture file at path, warning when
// no write has been observed for interval.
func NewWatchdog(path string, interval time.Duration, log *zap.Logger) *Watchdog {
	return &Watchdog{path: path, interval: interval, log: log}
}

// Start begins watching. The watch is on the containing directory since the
// capture tool creates the file after the watchdog starts.
func (w *Watchdog) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher
	w.lastWrite = time.Now()

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(2)
	go w.consume(ctx)
	go w.check(ctx)
	return nil
}

func (w *Watchdog) consume(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			w.lastWrite = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Debug("capture watchdog error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watchdog) check(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			stale := time.Since(w.lastWrite)
			w.mu.Unlock()
			if stale > w.interval {
				w.log.Warn("capture file has not grown",
					zap.String("path", w.path),
					zap.Duration("stale", stale))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the watch. Safe to call without a prior successful Start.
func (w *Watchdog) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
}
