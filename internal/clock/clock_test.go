package clock

import (
	"context"
	"testing"
	"time"
)

func TestEpochMillis(t *testing.T) {
	tm := time.Unix(1700000000, 500*int64(time.Millisecond))
	if got := EpochMillis(tm); got != 1700000000500 {
		t.Errorf("EpochMillis = %d, want 1700000000500", got)
	}
}

func TestManual_SleepAdvances(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clk := NewManual(start)

	if err := clk.Sleep(context.Background(), 3*time.Second); err != nil {
		t.Fatal(err)
	}

	if got := clk.Now(); !got.Equal(start.Add(3 * time.Second)) {
		t.Errorf("Now() = %v, want %v", got, start.Add(3*time.Second))
	}
	slept := clk.Slept()
	if len(slept) != 1 || slept[0] != 3*time.Second {
		t.Errorf("Slept() = %v, want [3s]", slept)
	}
}

func TestManual_SleepCancelled(t *testing.T) {
	clk := NewManual(time.Unix(1700000000, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := clk.Sleep(ctx, time.Second); err != context.Canceled {
		t.Errorf("Sleep on cancelled context = %v, want context.Canceled", err)
	}
	if len(clk.Slept()) != 0 {
		t.Errorf("Slept() = %v, want empty after cancelled sleep", clk.Slept())
	}
}

func TestSystem_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := System{}.Sleep(ctx, time.Minute)
	if err != context.Canceled {
		t.Errorf("Sleep = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled Sleep should return promptly")
	}
}
