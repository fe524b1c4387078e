// Package systemd reports daemon readiness and liveness to systemd through
// the sd_notify protocol. Outside a Type=notify unit every call is a no-op.
package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify state strings.
type Notifier struct {
	send     func(unsetEnvironment bool, state string) (bool, error)
	watchdog func(unsetEnvironment bool) (time.Duration, error)
	logger   *slog.Logger
}

// NewNotifier creates a notifier bound to $NOTIFY_SOCKET.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		send:     daemon.SdNotify,
		watchdog: daemon.SdWatchdogEnabled,
		logger:   logger,
	}
}

func (n *Notifier) notify(state string) {
	sent, err := n.send(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify", "state", state)
	}
}

// Ready reports that startup finished.
func (n *Notifier) Ready(status string) {
	n.notify(daemon.SdNotifyReady + "\nSTATUS=" + status)
}

// Status updates the free-form unit status shown by systemctl.
func (n *Notifier) Status(status string) {
	n.notify("STATUS=" + status)
}

// Stopping reports that shutdown began.
func (n *Notifier) Stopping() {
	n.notify(daemon.SdNotifyStopping)
}

// RunWatchdog pings the watchdog at half its interval while healthy returns
// nil, and stops pinging once it fails so systemd restarts the unit. It
// returns immediately when the unit has no WatchdogSec.
func (n *Notifier) RunWatchdog(ctx context.Context, healthy func() error) {
	interval, err := n.watchdog(false)
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := healthy(); err != nil {
				n.logger.Error("Health check failed, withholding watchdog ping", "error", err)
				n.Status("unhealthy: " + err.Error())
				return
			}
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}
