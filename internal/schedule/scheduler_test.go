package schedule

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestParseCron(t *testing.T) {
	if _, err := ParseCron("*/5 * * * *"); err != nil {
		t.Errorf("ParseCron = %v, want nil", err)
	}
	if _, err := ParseCron("not a cron"); err == nil {
		t.Error("ParseCron should reject a malformed expression")
	}
}

func TestNew_InvalidExpression(t *testing.T) {
	if _, err := New("61 * * * *", nil, zap.NewNop()); err == nil {
		t.Error("New should reject minute 61")
	}
}

func TestNext(t *testing.T) {
	s, err := New("0 3 * * *", nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	from := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	next := s.Next(from)
	want := time.Date(2026, 8, 27, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestRun_CancelledWhileWaiting(t *testing.T) {
	fired := false
	s, err := New("0 0 1 1 *", func(ctx context.Context) error {
		fired = true
		return nil
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != context.DeadlineExceeded {
		t.Errorf("Run = %v, want context.DeadlineExceeded", err)
	}
	if fired {
		t.Error("experiment fired during a wait that should have been cancelled")
	}
}
