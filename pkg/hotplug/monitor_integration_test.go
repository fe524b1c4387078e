//go:build linux && integration

package hotplug

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestMonitorIntegration needs real device events.
// Run with: go test -tags=integration -v -run TestMonitorIntegration -timeout 60s
// then plug or unplug a USB serial adapter.
func TestMonitorIntegration(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}
	defer func() { _ = m.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events := make(chan Event, 10)
	go func() {
		if runErr := m.Run(ctx, events); runErr != nil && !errors.Is(runErr, context.DeadlineExceeded) {
			t.Logf("Run() error: %v", runErr)
		}
	}()

	t.Log("Waiting for tty events... plug or unplug a serial adapter")
	select {
	case ev := <-events:
		t.Logf("Received event: Action=%s DevName=%s KObj=%s", ev.Action, ev.DevName, ev.KObj)
	case <-ctx.Done():
		t.Log("No events received")
	}
}
