package domain

import "time"

// Artifacts holds the three output paths produced by one run. On failure
// all three are removed; on success all three persist.
type Artifacts struct {
	CapturePath    string // raw packet capture (pcap)
	EventLogPath   string // plain-text event timeline
	TrafficLogPath string // HTTP archive traffic log
}

// Paths returns the artifact paths in cleanup order
func (a Artifacts) Paths() []string {
	return []string{a.EventLogPath, a.TrafficLogPath, a.CapturePath}
}

// Run represents a single repetition of the experiment
type Run struct {
	ID         string
	Ordinal    int
	Origin     int64 // epoch milliseconds, captured once at run start
	Artifacts  Artifacts
	Status     RunStatus
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}
