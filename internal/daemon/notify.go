package daemon

import (
	"log/slog"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"
)

// SdNotify sends a state notification to systemd via NOTIFY_SOCKET.
// Without NOTIFY_SOCKET it does nothing. Failures are logged, not returned.
func SdNotify(state string) {
	if _, err := sddaemon.SdNotify(false, state); err != nil {
		slog.Warn("sd-notify failed", "state", state, "error", err)
	}
}
