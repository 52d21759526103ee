// Package daemon runs the k16brightd service on the system bus: it owns
// the connection, binds the service object, claims the bus name and runs
// the serial dispatch loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/godbus/dbus/v5"

	"github.com/iczelia/k16brightd/internal/caller"
	dbustypes "github.com/iczelia/k16brightd/internal/dbus"
	"github.com/iczelia/k16brightd/internal/logging"
	"github.com/iczelia/k16brightd/internal/power"
	"github.com/iczelia/k16brightd/internal/sysfs"
)

// Config holds daemon startup parameters.
type Config struct {
	// BusAddress is the D-Bus address to connect to.
	// Empty means the system bus. Integration tests point it at a private
	// dbus-daemon.
	BusAddress string

	// SysfsRoot is where sysfs is mounted. Empty means /sys.
	SysfsRoot string

	// Version is logged at startup.
	Version string

	// Logger receives the audit records. Nil means slog.Default.
	Logger *slog.Logger
}

func connect(address string, opts ...dbus.ConnOption) (*dbus.Conn, error) {
	if address == "" {
		return dbus.ConnectSystemBus(opts...)
	}
	return dbus.Connect(address, opts...)
}

// Run starts the daemon, claims the bus name, sends READY=1 via sd-notify,
// and serves calls until ctx is cancelled or the connection is lost.
// Returns nil on clean shutdown.
func Run(ctx context.Context, cfg Config) error {
	h := &handler{}
	conn, err := connect(cfg.BusAddress, dbus.WithHandler(h))
	if err != nil {
		return fmt.Errorf("connect to D-Bus: %w", err)
	}
	defer conn.Close()

	attrs := sysfs.New(cfg.SysfsRoot)
	dispatcher := NewDispatcher(power.NewService(attrs), logging.New(cfg.Logger))
	resolver := caller.NewResolver(conn)

	if err := h.bind(dbustypes.ObjectPath, dispatcher, resolver.Resolve); err != nil {
		return fmt.Errorf("bind %s: %w", dbustypes.ObjectPath, err)
	}
	defer h.unbind()

	reply, err := conn.RequestName(dbustypes.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name %q: %w", dbustypes.BusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("not primary owner of %q (reply=%d); policy rejected or name already taken", dbustypes.BusName, reply)
	}

	slog.Info("daemon ready",
		"bus_name", dbustypes.BusName,
		"path", dbustypes.ObjectPath,
		"sysfs_root", attrs.Root(),
		"version", cfg.Version)

	SdNotify(sddaemon.SdNotifyReady)

	err = dispatcher.Run(ctx, conn.Context().Done())

	h.unbind()
	SdNotify(sddaemon.SdNotifyStopping)

	if errors.Is(err, ErrConnectionClosed) {
		slog.Error("bus connection lost")
		return err
	}

	slog.Info("daemon shutting down")
	if _, rerr := conn.ReleaseName(dbustypes.BusName); rerr != nil {
		slog.Warn("release bus name failed", "error", rerr)
	}
	return nil
}
