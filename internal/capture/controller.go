// Package capture starts and stops the external packet-capture subprocess.
// One Controller drives one subprocess writing one output file; the
// orchestrator creates a fresh Controller per run.
package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tkoenig/watchlab/internal/config"
)

// stopGrace is how long Stop waits after signalling before killing outright.
const stopGrace = 5 * time.Second

// ExitStatus describes how the capture subprocess ended. Err is set when the
// process could not be started or exited abnormally.
type ExitStatus struct {
	Code int
	Err  error
}

// Clean reports whether the subprocess started and exited without error.
func (s ExitStatus) Clean() bool { return s.Err == nil && s.Code == 0 }

// Controller owns one capture subprocess. Start is non-blocking; process
// start failures and exits are delivered on the Exits channel rather than
// interrupting the caller, matching the detached failure domain of the
// capture tool. Stop is idempotent.
type Controller struct {
	cfg config.CaptureConfig
	log *zap.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	outputPath string
	started    bool
	stopped    bool
	status     *ExitStatus

	exits chan ExitStatus
	done  chan struct{}

	wdInterval time.Duration
	wd         *Watchdog
}

// New creates a Controller for the configured capture tool.
func New(cfg config.CaptureConfig, log *zap.Logger) *Controller {
	return &Controller{
		cfg:   cfg,
		log:   log,
		exits: make(chan ExitStatus, 1),
		done:  make(chan struct{}),
	}
}

// EnableWatchdog makes Start also watch the output file for growth, warning
// when nothing has been written for interval. Must be called before Start.
func (c *Controller) EnableWatchdog(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wdInterval = interval
}

// Exits delivers at most one notification: the subprocess exit status, or the
// start error if the process never came up.
func (c *Controller) Exits() <-chan ExitStatus { return c.exits }

// Start launches the capture subprocess writing to outputPath and returns
// once it is spawned. A spawn failure is reported on the Exits channel, not
// returned, so the run proceeds until it next depends on capture state.
func (c *Controller) Start(ctx context.Context, outputPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("capture already started")
	}
	if outputPath == "" {
		return fmt.Errorf("capture output path is empty")
	}
	c.started = true
	c.outputPath = outputPath

	cmd := exec.CommandContext(ctx, c.cfg.Binary,
		"-i", c.cfg.Interface,
		"-s", strconv.Itoa(c.cfg.Snaplen),
		"-w", outputPath,
	)
	if err := cmd.Start(); err != nil {
		st := ExitStatus{Code: -1, Err: fmt.Errorf("starting %s: %w", c.cfg.Binary, err)}
		c.status = &st
		c.log.Error("capture start failed", zap.String("binary", c.cfg.Binary), zap.Error(err))
		c.exits <- st
		close(c.done)
		return nil
	}
	c.cmd = cmd
	c.log.Info("capture started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("interface", c.cfg.Interface),
		zap.String("output", outputPath))

	if c.wdInterval > 0 {
		wd := NewWatchdog(outputPath, c.wdInterval, c.log)
		if err := wd.Start(ctx); err != nil {
			c.log.Warn("capture watchdog unavailable", zap.Error(err))
		} else {
			c.wd = wd
		}
	}

	go c.wait()
	return nil
}

// wait collects the subprocess exit and publishes it exactly once.
func (c *Controller) wait() {
	err := c.cmd.Wait()

	st := ExitStatus{}
	if err != nil {
		st.Code = c.cmd.ProcessState.ExitCode()
		st.Err = err
	}

	c.mu.Lock()
	c.status = &st
	stopped := c.stopped
	c.mu.Unlock()

	// A terminate-signal exit during Stop is the expected shutdown path,
	// not an abnormal one.
	if st.Err != nil && !stopped {
		c.log.Warn("capture exited abnormally", zap.Int("code", st.Code), zap.Error(st.Err))
	}

	c.exits <- st
	close(c.done)
}

// Stop requests termination with sig (SIGTERM when nil) and waits for the
// subprocess to exit, killing it if it ignores the signal. Calling Stop on a
// never-started or already-stopped controller is a no-op.
func (c *Controller) Stop(sig os.Signal) (ExitStatus, error) {
	c.mu.Lock()
	if !c.started || c.stopped || c.cmd == nil {
		st := ExitStatus{}
		if c.status != nil {
			st = *c.status
		}
		c.stopped = true
		c.mu.Unlock()
		return st, nil
	}
	c.stopped = true
	proc := c.cmd.Process
	wd := c.wd
	c.wd = nil
	c.mu.Unlock()

	if wd != nil {
		wd.Stop()
	}

	if sig == nil {
		sig = syscall.SIGTERM
	}
	if err := proc.Signal(sig); err != nil {
		// Process already gone; wait() delivers the status.
		c.log.Debug("capture signal failed", zap.Error(err))
	}

	select {
	case <-c.done:
	case <-time.After(stopGrace):
		c.log.Warn("capture ignored signal, killing", zap.Int("pid", proc.Pid))
		proc.Kill()
		<-c.done
	}

	c.mu.Lock()
	st := *c.status
	c.mu.Unlock()
	c.log.Info("capture stopped", zap.Int("code", st.Code))
	return st, nil
}

// OutputPath returns the capture file path, empty before Start.
func (c *Controller) OutputPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputPath
}
