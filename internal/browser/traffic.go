package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// TrafficLogger records the HTTP exchanges of one page into an HTTP-archive
// style JSON file. Entries are collected from Network events as the page
// produces them and the document is written on Flush; an unflushed file from
// an aborted run is discarded by the orchestrator anyway.
type TrafficLogger struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	pending map[string]*harEntry
	entries []harEntry
	closed  bool
}

type harLog struct {
	Log harLogBody `json:"log"`
}

type harLogBody struct {
	Version string     `json:"version"`
	Creator harCreator `json:"creator"`
	Entries []harEntry `json:"entries"`
}

type harCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type harEntry struct {
	StartedDateTime time.Time   `json:"startedDateTime"`
	Time            float64     `json:"time"`
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
}

type harRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type harResponse struct {
	Status     int     `json:"status"`
	StatusText string  `json:"statusText"`
	MimeType   string  `json:"mimeType"`
	BodySize   float64 `json:"bodySize"`
}

// Network event payloads, trimmed to the fields the logger keeps.

type networkRequestWillBeSent struct {
	RequestID string `json:"requestId"`
	Request   struct {
		Method string `json:"method"`
		URL    string `json:"url"`
	} `json:"request"`
	WallTime float64 `json:"wallTime"` // seconds since epoch
}

type networkResponseReceived struct {
	RequestID string `json:"requestId"`
	Response  struct {
		Status     int    `json:"status"`
		StatusText string `json:"statusText"`
		MimeType   string `json:"mimeType"`
	} `json:"response"`
}

type networkLoadingFinished struct {
	RequestID         string  `json:"requestId"`
	EncodedDataLength float64 `json:"encodedDataLength"`
}

type networkLoadingFailed struct {
	RequestID string `json:"requestId"`
	ErrorText string `json:"errorText"`
}

// NewTrafficLogger creates the traffic-log file at path. The file exists from
// this point on so failure cleanup can treat it like the other artifacts.
func NewTrafficLogger(path string) (*TrafficLogger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating traffic log: %w", err)
	}
	return &TrafficLogger{
		path:    path,
		f:       f,
		pending: make(map[string]*harEntry),
	}, nil
}

// Path returns the traffic-log file path.
func (t *TrafficLogger) Path() string { return t.path }

// HandleRequestWillBeSent opens a new entry for the request.
func (t *TrafficLogger) HandleRequestWillBeSent(params json.RawMessage) {
	var ev networkRequestWillBeSent
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	started := time.Now()
	if ev.WallTime > 0 {
		sec, frac := int64(ev.WallTime), ev.WallTime-float64(int64(ev.WallTime))
		started = time.Unix(sec, int64(frac*float64(time.Second)))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[ev.RequestID] = &harEntry{
		StartedDateTime: started,
		Request: harRequest{
			Method: ev.Request.Method,
			URL:    ev.Request.URL,
		},
	}
}

// HandleResponseReceived fills in response metadata for a pending entry.
func (t *TrafficLogger) HandleResponseReceived(params json.RawMessage) {
	var ev networkResponseReceived
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.pending[ev.RequestID]
	if entry == nil {
		return
	}
	entry.Response.Status = ev.Response.Status
	entry.Response.StatusText = ev.Response.StatusText
	entry.Response.MimeType = ev.Response.MimeType
}

// HandleLoadingFinished completes a pending entry and moves it to the log.
func (t *TrafficLogger) HandleLoadingFinished(params json.RawMessage) {
	var ev networkLoadingFinished
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.pending[ev.RequestID]
	if entry == nil {
		return
	}
	delete(t.pending, ev.RequestID)
	entry.Response.BodySize = ev.EncodedDataLength
	entry.Time = float64(time.Since(entry.StartedDateTime)) / float64(time.Millisecond)
	t.entries = append(t.entries, *entry)
}

// HandleLoadingFailed drops the pending entry; failed fetches carry no
// response worth archiving.
func (t *TrafficLogger) HandleLoadingFailed(params json.RawMessage) {
	var ev networkLoadingFailed
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, ev.RequestID)
}

// EntryCount returns the number of completed entries collected so far.
func (t *TrafficLogger) EntryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Flush writes the archive document and closes the file. Safe to call more
// than once; only the first call writes.
func (t *TrafficLogger) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	entries := t.entries
	if entries == nil {
		entries = []harEntry{}
	}
	doc := harLog{Log: harLogBody{
		Version: "1.2",
		Creator: harCreator{Name: "watchlab", Version: "1.0"},
		Entries: entries,
	}}

	enc := json.NewEncoder(t.f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		t.f.Close()
		return fmt.Errorf("writing traffic log: %w", err)
	}
	return t.f.Close()
}
