// Package browser owns one browser-automation session per run: it launches
// the browser against the persistent profile, attaches to the first page
// target over the DevTools protocol, navigates it, and can record the page's
// HTTP traffic to an archive file.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tkoenig/watchlab/internal/config"
)

// launchTimeout bounds how long Launch waits for the DevTools endpoint to
// answer after the browser process is spawned.
const launchTimeout = 20 * time.Second

// Session is one live browser-automation session. It is owned by a single
// run and must be closed before the run completes or on any error path.
type Session struct {
	cfg config.BrowserConfig
	log *zap.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	conn    *conn
	traffic *TrafficLogger
	closed  bool
}

// devtoolsTarget is one entry of the /json/list endpoint.
type devtoolsTarget struct {
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Launch starts the browser with the persistent profile directory, waits for
// its DevTools endpoint and attaches to the first available page target. If
// the browser exposes no page target the session is closed before
// ErrNoPageAvailable is returned.
func Launch(ctx context.Context, cfg config.BrowserConfig, log *zap.Logger) (*Session, error) {
	cmd := exec.CommandContext(ctx, cfg.Binary,
		"--remote-debugging-port="+strconv.Itoa(cfg.DebugPort),
		"--user-data-dir="+cfg.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"about:blank",
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting browser %s: %w", cfg.Binary, err)
	}

	s := &Session{cfg: cfg, log: log, cmd: cmd}

	target, err := s.firstPageTarget(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	c, err := dialCDP(ctx, target.WebSocketDebuggerURL, log)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.conn = c

	if err := c.call(ctx, "Page.enable", nil, nil); err != nil {
		s.Close()
		return nil, fmt.Errorf("enabling page domain: %w", err)
	}

	log.Info("browser session ready",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("profile", cfg.ProfileDir))
	return s, nil
}

// firstPageTarget polls the DevTools HTTP endpoint until it answers, then
// picks the first page-type target.
func (s *Session) firstPageTarget(ctx context.Context) (*devtoolsTarget, error) {
	listURL := fmt.Sprintf("http://127.0.0.1:%d/json/list", s.cfg.DebugPort)
	deadline := time.Now().Add(launchTimeout)
	client := &http.Client{Timeout: 2 * time.Second}

	var targets []devtoolsTarget
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err == nil {
			decodeErr := json.NewDecoder(resp.Body).Decode(&targets)
			resp.Body.Close()
			if decodeErr == nil && len(targets) > 0 {
				break
			}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("devtools endpoint not ready after %s", launchTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}

	for i := range targets {
		if targets[i].Type == "page" && targets[i].WebSocketDebuggerURL != "" {
			return &targets[i], nil
		}
	}
	return nil, ErrNoPageAvailable
}

// Navigate transitions the active page to url. Failures and timeouts are
// returned as *NavigationError; no retry happens at this level.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		return fmt.Errorf("session not launched")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout())
	defer cancel()

	var result struct {
		ErrorText string `json:"errorText"`
	}
	err := c.call(ctx, "Page.navigate", map[string]string{"url": url}, &result)
	if err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if result.ErrorText != "" {
		return &NavigationError{URL: url, Reason: result.ErrorText}
	}
	s.log.Info("navigated", zap.String("url", url))
	return nil
}

// StartTrafficLogging begins recording all HTTP exchanges of the active page
// to path. Must be called after Launch and before the navigation it should
// observe.
func (s *Session) StartTrafficLogging(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("session not launched")
	}
	if s.traffic != nil {
		return fmt.Errorf("traffic logging already active")
	}

	t, err := NewTrafficLogger(path)
	if err != nil {
		return err
	}
	s.conn.on("Network.requestWillBeSent", t.HandleRequestWillBeSent)
	s.conn.on("Network.responseReceived", t.HandleResponseReceived)
	s.conn.on("Network.loadingFinished", t.HandleLoadingFinished)
	s.conn.on("Network.loadingFailed", t.HandleLoadingFailed)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.conn.call(ctx, "Network.enable", nil, nil); err != nil {
		t.Flush()
		return fmt.Errorf("enabling network domain: %w", err)
	}
	s.traffic = t
	return nil
}

// StopTrafficLogging turns off network events and writes the archive file.
func (s *Session) StopTrafficLogging() error {
	s.mu.Lock()
	t := s.traffic
	s.traffic = nil
	c := s.conn
	s.mu.Unlock()
	if t == nil {
		return nil
	}

	if c != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c.call(ctx, "Network.disable", nil, nil)
		cancel()
	}
	s.log.Info("traffic log written",
		zap.String("path", t.Path()),
		zap.Int("entries", t.EntryCount()))
	return t.Flush()
}

// Close releases the session regardless of prior error state: it flushes an
// active traffic log, asks the browser to quit, and kills the process if it
// does not. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	t := s.traffic
	s.traffic = nil
	c := s.conn
	cmd := s.cmd
	s.mu.Unlock()

	if t != nil {
		t.Flush()
	}
	if c != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		c.call(ctx, "Browser.close", nil, nil)
		cancel()
		c.close()
	}
	if cmd != nil && cmd.Process != nil {
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			cmd.Process.Kill()
			<-done
		}
	}
	s.log.Info("browser session closed")
	return nil
}
