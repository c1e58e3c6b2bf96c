package run

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tkoenig/watchlab/internal/domain"
	"github.com/tkoenig/watchlab/internal/eventlog"
)

// cleanupStep is one guarded teardown action. A failing step is logged and
// never prevents the steps after it.
type cleanupStep struct {
	name string
	fn   func() error
}

// abort tears down a failed repetition: close the session if one was
// created, delete whichever artifact files exist, then stop the capture
// controller if one was created. Each step is independently best effort.
func (c *Coordinator) abort(run *domain.Run, elog *eventlog.Writer, sess Session, capCtl CaptureController) {
	steps := []cleanupStep{
		{"close event log", func() error {
			if elog == nil {
				return nil
			}
			return elog.Close()
		}},
		{"close browser session", func() error {
			if sess == nil {
				return nil
			}
			return sess.Close()
		}},
		{"remove artifacts", func() error {
			return removeArtifacts(run.Artifacts)
		}},
		{"stop capture", func() error {
			if capCtl == nil {
				return nil
			}
			_, err := capCtl.Stop(nil)
			return err
		}},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			c.log.Warn("cleanup step failed",
				zap.Int("run", run.Ordinal),
				zap.String("step", step.name),
				zap.Error(err))
		}
	}
}

// removeArtifacts deletes whichever of the run's artifact files exist, then
// the run directory if it is empty. Missing files are not errors.
func removeArtifacts(a domain.Artifacts) error {
	var firstErr error
	for _, p := range a.Paths() {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("removing %s: %w", p, err)
		}
	}
	if dir := filepath.Dir(a.EventLogPath); dir != "." && dir != "/" {
		os.Remove(dir)
	}
	return firstErr
}
