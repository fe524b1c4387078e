//go:build !linux

package hotplug

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by NewMonitor on platforms without netlink.
var ErrUnsupported = errors.New("hotplug monitoring is only supported on linux")

// Monitor is unavailable on this platform.
type Monitor struct{}

// NewMonitor always fails on this platform.
func NewMonitor() (*Monitor, error) {
	return nil, ErrUnsupported
}

// SetSubsystem is a no-op.
func (m *Monitor) SetSubsystem(string) {}

// Close is a no-op.
func (m *Monitor) Close() error { return nil }

// Run returns ErrUnsupported.
func (m *Monitor) Run(_ context.Context, events chan<- Event) error {
	close(events)
	return ErrUnsupported
}
