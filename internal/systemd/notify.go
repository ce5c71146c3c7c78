// Package systemd reports the supervisor's lifecycle to systemd through the
// notify socket. Every call is a no-op when NOTIFY_SOCKET is not set.
package systemd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/procspawn/internal/logging"
)

// Notify sends the given state assignments, such as daemon.SdNotifyReady,
// in one datagram. It reports whether the message was delivered.
func Notify(states ...string) (bool, error) {
	return daemon.SdNotify(false, strings.Join(states, "\n"))
}

// Ready marks the service as started and sets its status line.
func Ready(status string) {
	send(daemon.SdNotifyReady, "STATUS="+status)
}

// Reloading marks the start of a configuration reload. Call Ready when done.
func Reloading() {
	send(daemon.SdNotifyReloading, fmt.Sprintf("MONOTONIC_USEC=%d", monotonicUsec()))
}

// Stopping marks the start of shutdown.
func Stopping() {
	send(daemon.SdNotifyStopping)
}

// Status updates the free-form status line shown by systemctl status.
func Status(format string, args ...any) {
	send("STATUS=" + fmt.Sprintf(format, args...))
}

// RunWatchdog pings the systemd watchdog at half the configured interval
// until ctx is done. It returns immediately when the watchdog is disabled.
func RunWatchdog(ctx context.Context) {
	logger := logging.GetLogger("systemd")

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("Invalid watchdog configuration", "error", err)
		return
	}
	if interval == 0 {
		return
	}

	logger.Debug("Watchdog enabled", "interval", interval)
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send(daemon.SdNotifyWatchdog)
		}
	}
}

func send(states ...string) {
	if _, err := Notify(states...); err != nil {
		logging.GetLogger("systemd").Warn("Failed to notify systemd", "error", err)
	}
}
