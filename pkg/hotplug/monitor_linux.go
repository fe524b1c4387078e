//go:build linux

package hotplug

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// netlinkKobjectUEvent is the netlink protocol for kernel object events.
const netlinkKobjectUEvent = 15

// Monitor listens for kernel device events.
type Monitor struct {
	fd int

	mu        sync.RWMutex
	subsystem string
	closed    bool
}

// NewMonitor opens a netlink socket bound to the kernel broadcast group.
// Only SubsystemTTY events are delivered unless SetSubsystem changes it.
func NewMonitor() (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, netlinkKobjectUEvent)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Monitor{fd: fd, subsystem: SubsystemTTY}, nil
}

// SetSubsystem changes the delivered subsystem. "" delivers every event.
func (m *Monitor) SetSubsystem(subsystem string) {
	m.mu.Lock()
	m.subsystem = subsystem
	m.mu.Unlock()
}

// Close releases the socket.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return unix.Close(m.fd)
}

// Run delivers events until ctx is done or the socket fails. The events
// channel is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := unix.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}

		ev := ParseUEvent(buf[:n])
		if ev == nil || !m.wanted(ev) {
			continue
		}

		select {
		case events <- *ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Monitor) wanted(ev *Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subsystem == "" || ev.Subsystem == m.subsystem
}
