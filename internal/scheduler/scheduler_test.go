package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
)

type countingExpirer struct{ calls atomic.Int32 }

func (e *countingExpirer) ExpireStale(context.Context) (int, error) {
	e.calls.Add(1)
	return 0, nil
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("every minute please", &countingExpirer{}, log.New("test")); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestSchedulerRunsExpiry(t *testing.T) {
	e := &countingExpirer{}
	s, err := New("@every 1s", e, log.New("test"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for e.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if e.calls.Load() == 0 {
		t.Fatal("expiry job never ran")
	}
}
