// Package run contains the experiment orchestrator: the repetition loop that
// sequences a packet-capture subprocess and a browser session against a
// shared origin timestamp, records the event timeline, and discards the
// artifacts of any repetition that fails part-way.
package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tkoenig/watchlab/internal/browser"
	"github.com/tkoenig/watchlab/internal/capture"
	"github.com/tkoenig/watchlab/internal/clock"
	"github.com/tkoenig/watchlab/internal/config"
	"github.com/tkoenig/watchlab/internal/domain"
	"github.com/tkoenig/watchlab/internal/eventlog"
)

// CaptureController is the capture lifecycle the coordinator drives. The
// real implementation is capture.Controller.
type CaptureController interface {
	Start(ctx context.Context, outputPath string) error
	Stop(sig os.Signal) (capture.ExitStatus, error)
	Exits() <-chan capture.ExitStatus
}

// Session is the browser lifecycle the coordinator drives. The real
// implementation is browser.Session.
type Session interface {
	StartTrafficLogging(path string) error
	StopTrafficLogging() error
	Navigate(ctx context.Context, url string) error
	Close() error
}

// Recorder persists finished runs. Persistence is best effort: a store error
// never affects a run's outcome.
type Recorder interface {
	SaveRun(*domain.Run) error
}

// Summary counts the outcomes of one full repetition loop.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Coordinator executes the configured number of repetitions sequentially.
type Coordinator struct {
	cfg *config.Config
	log *zap.Logger
	clk clock.Clock

	newCapture    func() CaptureController
	launchSession func(ctx context.Context) (Session, error)
	store         Recorder
}

// New creates a Coordinator wired to the real capture controller and browser
// session. Tests swap those through the setters.
func New(cfg *config.Config, log *zap.Logger) *Coordinator {
	c := &Coordinator{
		cfg: cfg,
		log: log,
		clk: clock.System{},
	}
	c.newCapture = func() CaptureController {
		ctl := capture.New(cfg.Capture, log)
		ctl.EnableWatchdog(cfg.Experiment.Timing().Long)
		return ctl
	}
	c.launchSession = func(ctx context.Context) (Session, error) {
		return browser.Launch(ctx, cfg.Browser, log)
	}
	return c
}

// SetClock replaces the wall clock.
func (c *Coordinator) SetClock(clk clock.Clock) { c.clk = clk }

// SetCaptureFactory replaces the per-run capture controller constructor.
func (c *Coordinator) SetCaptureFactory(fn func() CaptureController) { c.newCapture = fn }

// SetSessionLauncher replaces the browser session launcher.
func (c *Coordinator) SetSessionLauncher(fn func(ctx context.Context) (Session, error)) {
	c.launchSession = fn
}

// SetStore sets the optional run-history store.
func (c *Coordinator) SetStore(store Recorder) { c.store = store }

// Run executes all configured repetitions in order. A failed repetition is
// cleaned up and the loop moves on; only context cancellation stops the loop
// early. The returned error is the context's error or nil.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	for i := 0; i < c.cfg.Experiment.Repetitions; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		run := c.runOnce(ctx, i)
		sum.Total++
		if run.Status == domain.RunSucceeded {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
		if c.store != nil {
			if err := c.store.SaveRun(run); err != nil {
				c.log.Warn("saving run record", zap.Int("run", i), zap.Error(err))
			}
		}
	}
	return sum, nil
}

// runOnce executes a single repetition and returns its terminal record. All
// failures are contained here.
func (c *Coordinator) runOnce(ctx context.Context, ordinal int) *domain.Run {
	run := &domain.Run{
		ID:        uuid.NewString(),
		Ordinal:   ordinal,
		Status:    domain.RunRunning,
		StartedAt: c.clk.Now(),
	}
	c.log.Info("run starting", zap.Int("run", ordinal), zap.String("id", run.ID))

	err := c.execute(ctx, run)

	finished := c.clk.Now()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = domain.RunCleaned
		run.Error = err.Error()
		fmt.Fprintf(os.Stderr, "run %d failed: %v\n", ordinal, err)
		c.log.Error("run failed", zap.Int("run", ordinal), zap.Error(err))
	} else {
		run.Status = domain.RunSucceeded
		c.log.Info("run succeeded", zap.Int("run", ordinal))
	}
	return run
}

// execute walks one repetition through its whole lifecycle. On any error the
// deferred handler tears down in order: session, artifacts, capture.
func (c *Coordinator) execute(ctx context.Context, run *domain.Run) (err error) {
	timing := c.cfg.Experiment.Timing()

	dir := filepath.Join(c.cfg.Experiment.OutputDir, fmt.Sprintf("run-%03d", run.Ordinal))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	run.Artifacts = domain.Artifacts{
		CapturePath:    filepath.Join(dir, "capture.pcap"),
		EventLogPath:   filepath.Join(dir, "events.log"),
		TrafficLogPath: filepath.Join(dir, "traffic.har"),
	}

	var (
		elog   *eventlog.Writer
		sess   Session
		capCtl CaptureController
	)
	defer func() {
		if err != nil {
			c.abort(run, elog, sess, capCtl)
		}
	}()

	elog, err = eventlog.Create(run.Artifacts.EventLogPath, c.clk)
	if err != nil {
		return err
	}
	run.Origin, err = elog.RecordOrigin()
	if err != nil {
		return err
	}

	capCtl = c.newCapture()
	if err = capCtl.Start(ctx, run.Artifacts.CapturePath); err != nil {
		return err
	}
	if err = elog.Record(domain.EventSnifferOn); err != nil {
		return err
	}

	// Checkpoint: a capture tool that failed to spawn or died immediately
	// has reported by now. Later exits surface only through the watchdog
	// and the Stop result; they do not interrupt the run.
	select {
	case ex := <-capCtl.Exits():
		if ex.Err != nil {
			return fmt.Errorf("capture unavailable: %w", ex.Err)
		}
		return fmt.Errorf("capture exited early with code %d", ex.Code)
	default:
	}

	sess, err = c.launchSession(ctx)
	if err != nil {
		return fmt.Errorf("launching browser session: %w", err)
	}
	if err = elog.Record(domain.EventBrowserOn); err != nil {
		return err
	}

	// Let the session settle before traffic logging so early requests are
	// not missed by logger setup.
	if err = c.clk.Sleep(ctx, timing.Fast); err != nil {
		return err
	}
	if err = sess.StartTrafficLogging(run.Artifacts.TrafficLogPath); err != nil {
		return err
	}
	if err = sess.Navigate(ctx, c.cfg.Experiment.HomeURL); err != nil {
		return err
	}
	if err = c.clk.Sleep(ctx, timing.Long); err != nil {
		return err
	}

	for _, ch := range c.cfg.Experiment.Channels {
		if err = sess.Navigate(ctx, ch.Link); err != nil {
			return err
		}
		if err = elog.Record(domain.ChannelOn(ch.Name)); err != nil {
			return err
		}
		if err = c.clk.Sleep(ctx, timing.Watch); err != nil {
			return err
		}
		if err = elog.Record(domain.ChannelOff(ch.Name)); err != nil {
			return err
		}
		if err = sess.Navigate(ctx, c.cfg.Experiment.HomeURL); err != nil {
			return err
		}
		if err = c.clk.Sleep(ctx, timing.Fast); err != nil {
			return err
		}
	}

	if err = sess.StopTrafficLogging(); err != nil {
		return err
	}
	if err = sess.Close(); err != nil {
		return err
	}
	if err = elog.Record(domain.EventBrowserOff); err != nil {
		return err
	}

	// Drain period: trailing network activity still reaches the capture
	// before it stops.
	if err = c.clk.Sleep(ctx, timing.Drain); err != nil {
		return err
	}

	if _, err = capCtl.Stop(nil); err != nil {
		return err
	}
	if err = elog.Record(domain.EventSnifferOff); err != nil {
		return err
	}
	return elog.Close()
}
