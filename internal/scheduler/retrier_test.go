package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/lookout/internal/logger"
)

type countingTarget struct {
	calls atomic.Int32
}

func (c *countingTarget) RetryErrored(context.Context) int {
	c.calls.Add(1)
	return 1
}

func waitCalls(t *testing.T, c *countingTarget, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.calls.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("calls = %d, want at least %d", c.calls.Load(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAutoRetrier_Periodic(t *testing.T) {
	target := &countingTarget{}
	ar := NewAutoRetrier(target, logger.New("error", false), 5*time.Millisecond, nil)

	if err := ar.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer ar.Stop()

	waitCalls(t, target, 3)
}

func TestAutoRetrier_ManualOnly(t *testing.T) {
	target := &countingTarget{}
	trigger := make(chan struct{}, 1)
	ar := NewAutoRetrier(target, logger.New("error", false), 0, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ar.Start(ctx); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	if got := target.calls.Load(); got != 0 {
		t.Fatalf("retried %d times without trigger", got)
	}

	trigger <- struct{}{}
	waitCalls(t, target, 1)
}

func TestAutoRetrier_Retry(t *testing.T) {
	target := &countingTarget{}
	ar := NewAutoRetrier(target, logger.New("error", false), 0, nil)
	if n := ar.Retry(context.Background()); n != 1 {
		t.Errorf("Retry() = %d, want 1", n)
	}
}
