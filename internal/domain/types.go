package domain

// RunStatus represents the terminal state of a run
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	// RunCleaned means the run failed and its artifacts were removed
	RunCleaned RunStatus = "failed_cleaned"
)

// Event names written to the per-run event log. Channel visits use
// ChannelOn/ChannelOff to derive their names.
const (
	EventOrigin     = "origin"
	EventSnifferOn  = "sniffer-on"
	EventSnifferOff = "sniffer-off"
	EventBrowserOn  = "browser-on"
	EventBrowserOff = "browser-off"
)

// ChannelOn returns the event name recorded when a channel visit begins
func ChannelOn(name string) string { return name + "-on" }

// ChannelOff returns the event name recorded when a channel visit ends
func ChannelOff(name string) string { return name + "-off" }

// Channel is a named navigation target visited once per run
type Channel struct {
	Name string `toml:"name" yaml:"name"`
	Link string `toml:"link" yaml:"link"`
}
