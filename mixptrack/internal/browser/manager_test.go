package browser

import (
	"context"
	"testing"
	"time"
)

// The monitor is owned by the manager: no caller context can end it.
func TestMonitorRunsUntilClose(t *testing.T) {
	m := NewManager(Config{MonitorInterval: 5 * time.Millisecond})

	m.mu.Lock()
	m.startMonitorLocked()
	m.startMonitorLocked() // a second Start reuses the running monitor
	m.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-m.monitorDone:
		t.Fatal("monitor stopped before Close")
	default:
	}

	m.Close()
	select {
	case <-m.monitorDone:
	case <-time.After(time.Second):
		t.Fatal("monitor still running after Close")
	}
}

func TestStartCancelledContext(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Start(ctx); err == nil {
		t.Fatal("Start with cancelled context: want error")
	}
	if m.monitorDone != nil {
		t.Error("monitor started without a browser")
	}
}

func TestStartAfterClose(t *testing.T) {
	m := NewManager(Config{})
	m.Close()
	if _, err := m.Start(context.Background()); err == nil {
		t.Fatal("Start after Close: want error")
	}
}
