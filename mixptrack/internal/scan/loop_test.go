package scan

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type counter struct {
	passes atomic.Int64
	onPass func(n int64)
}

func (c *counter) Pass(context.Context) int {
	n := c.passes.Add(1)
	if c.onPass != nil {
		c.onPass(n)
	}
	return 0
}

func TestLoop_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &counter{}
	c.onPass = func(n int64) {
		if n == 3 {
			cancel()
		}
	}

	done := make(chan struct{})
	go func() {
		New(c, Config{Interval: 5 * time.Millisecond, Settle: -1}).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	if got := c.passes.Load(); got != 3 {
		t.Errorf("passes: got %d, want 3", got)
	}
}

func TestLoop_SettleDelaysFirstPass(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	c := &counter{}
	New(c, Config{Interval: time.Millisecond, Settle: time.Hour}).Run(ctx)

	if got := c.passes.Load(); got != 0 {
		t.Errorf("passes before settle elapsed: got %d, want 0", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	l := New(&counter{}, Config{})
	if l.interval != DefaultInterval {
		t.Errorf("interval: got %v, want %v", l.interval, DefaultInterval)
	}
	if l.settle != DefaultInterval {
		t.Errorf("settle: got %v, want %v", l.settle, DefaultInterval)
	}
}
