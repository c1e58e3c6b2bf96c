package notify

import "fmt"

// ExperimentSummary builds the end-of-experiment notification from the
// repetition counts: a success notification when every run succeeded, a
// warning otherwise.
func ExperimentSummary(total, succeeded, failed int) Notification {
	typ := NotifySuccess
	if failed > 0 {
		typ = NotifyWarning
	}
	return Notification{
		Title:   "watchlab experiment finished",
		Message: fmt.Sprintf("%d runs: %d succeeded, %d failed and cleaned", total, succeeded, failed),
		Type:    typ,
	}
}
