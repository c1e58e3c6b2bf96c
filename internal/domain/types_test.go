package domain

import "testing"

func TestChannelEventNames(t *testing.T) {
	if got := ChannelOn("alpha"); got != "alpha-on" {
		t.Errorf("ChannelOn = %q, want alpha-on", got)
	}
	if got := ChannelOff("alpha"); got != "alpha-off" {
		t.Errorf("ChannelOff = %q, want alpha-off", got)
	}
}

func TestArtifacts_Paths(t *testing.T) {
	a := Artifacts{
		CapturePath:    "/out/capture.pcap",
		EventLogPath:   "/out/events.log",
		TrafficLogPath: "/out/traffic.har",
	}
	paths := a.Paths()
	if len(paths) != 3 {
		t.Fatalf("len(Paths) = %d, want 3", len(paths))
	}
	if paths[len(paths)-1] != a.CapturePath {
		t.Errorf("capture file should be removed last, got order %v", paths)
	}
}
