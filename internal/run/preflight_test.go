package run

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreflight_ExistingDir(t *testing.T) {
	if err := Preflight(t.TempDir()); err != nil {
		t.Errorf("Preflight = %v, want nil", err)
	}
}

func TestPreflight_MissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "absent")
	if err := Preflight(dir); err == nil {
		t.Error("Preflight = nil for missing dir, want error")
	}
}

func TestPreflight_FileNotDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Preflight(path); err == nil {
		t.Error("Preflight = nil for regular file, want error")
	}
}

func TestProfileMissingMessage_TwoLines(t *testing.T) {
	msg := ProfileMissingMessage("/home/u/.watchlab/profile")
	lines := strings.Split(msg, "\n")
	if len(lines) != 2 {
		t.Errorf("message has %d lines, want 2:\n%s", len(lines), msg)
	}
	if !strings.Contains(lines[0], "/home/u/.watchlab/profile") {
		t.Errorf("first line should name the directory: %q", lines[0])
	}
}
