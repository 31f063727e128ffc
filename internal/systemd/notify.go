// Package systemd reports the tracker's lifecycle to a supervising systemd
// unit. Every call is a no-op when the unit does not set NOTIFY_SOCKET.
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/errors"
)

func notify(state string) error {
	if _, err := daemon.SdNotify(false, state); err != nil {
		return errors.Wrapf(err, "sd_notify %s", state)
	}
	return nil
}

// NotifyReady tells systemd the tracker finished bootstrapping.
func NotifyReady() error {
	return notify(daemon.SdNotifyReady)
}

// NotifyStopping tells systemd the final report is being sent.
func NotifyStopping() error {
	return notify(daemon.SdNotifyStopping)
}

// NotifyWatchdog resets the unit's watchdog timer.
func NotifyWatchdog() error {
	return notify(daemon.SdNotifyWatchdog)
}

// NotifyStatus sets the STATUS= line shown by systemctl status.
func NotifyStatus(status string) error {
	return notify("STATUS=" + status)
}

// WatchdogInterval returns how often NotifyWatchdog should be called, or 0
// when the unit has no watchdog configured.
func WatchdogInterval() time.Duration {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return 0
	}
	return interval / 2
}
