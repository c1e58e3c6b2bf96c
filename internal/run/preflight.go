package run

import (
	"fmt"
	"os"
)

// Preflight verifies that the persistent browser profile directory exists.
// The profile carries the cookies and login state the experiment depends on,
// so no run may start without it. Runs exactly once, before the loop.
func Preflight(profileDir string) error {
	info, err := os.Stat(profileDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("profile directory %s does not exist", profileDir)
		}
		return fmt.Errorf("checking profile directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("profile path %s is not a directory", profileDir)
	}
	return nil
}

// ProfileMissingMessage is the instructional message printed when the
// preflight check fails, before the process terminates.
func ProfileMissingMessage(profileDir string) string {
	return fmt.Sprintf("profile directory %s does not exist\n"+
		"start the browser once with this profile and complete the login flow, then rerun", profileDir)
}
