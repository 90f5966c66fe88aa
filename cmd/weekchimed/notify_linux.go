package main

import "github.com/coreos/go-systemd/v22/daemon"

// Best effort: no-ops outside a systemd unit (NOTIFY_SOCKET unset).

func notifyReady() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
}

func notifyStopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}
