// Package service installs k16brightd as a systemd system service together
// with the D-Bus system bus policy that lets it own its name.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sdbus "github.com/coreos/go-systemd/v22/dbus"

	dbustypes "github.com/iczelia/k16brightd/internal/dbus"
)

const unitFileName = "k16brightd.service"

const unitTemplate = `[Unit]
Description=k16brightd - CPU governor and backlight helper
Documentation=https://github.com/iczelia/k16brightd

[Service]
Type=notify
BusName=%s
ExecStart=%s
Restart=on-failure
RestartSec=5
NoNewPrivileges=yes
ProtectSystem=strict
ProtectHome=yes
PrivateTmp=yes

[Install]
WantedBy=multi-user.target
`

// policyTemplate lets root own the name and lets %s send to the service
// interface, introspection and peer interfaces only.
const policyTemplate = `<?xml version="1.0"?>
<!DOCTYPE busconfig PUBLIC "-//freedesktop//DTD D-BUS Bus Configuration 1.0//EN"
 "http://www.freedesktop.org/standards/dbus/1.0/busconfig.dtd">
<busconfig>
  <policy user="root">
    <allow own="{{name}}"/>
  </policy>
  <policy {{callers}}>
    <allow send_destination="{{name}}" send_interface="{{iface}}"/>
    <allow send_destination="{{name}}" send_interface="org.freedesktop.DBus.Introspectable"/>
    <allow send_destination="{{name}}" send_interface="org.freedesktop.DBus.Peer"/>
  </policy>
</busconfig>
`

// Options configures service installation.
type Options struct {
	// ConfigPath, if set, adds --config <path> to ExecStart.
	ConfigPath string
	// Group, if set, restricts callers to members of this group.
	// Empty allows every local user.
	Group string
	// Start the service immediately after enabling.
	Start bool
}

// rootDir prefixes every installed path. Replaced in tests.
var rootDir = "/"

// UnitPath returns the full path where the unit file is (or would be) installed.
func UnitPath() string {
	return filepath.Join(rootDir, "etc", "systemd", "system", unitFileName)
}

// PolicyPath returns where the D-Bus system bus policy is installed.
func PolicyPath() string {
	return filepath.Join(rootDir, "etc", "dbus-1", "system.d", dbustypes.BusName+".conf")
}

func renderPolicy(group string) string {
	callers := `context="default"`
	if group != "" {
		callers = fmt.Sprintf("group=%q", group)
	}
	return strings.NewReplacer(
		"{{name}}", dbustypes.BusName,
		"{{iface}}", dbustypes.Interface,
		"{{callers}}", callers,
	).Replace(policyTemplate)
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// systemdConn is the part of a go-systemd connection the installer uses.
// *sdbus.Conn implements it.
type systemdConn interface {
	ReloadContext(ctx context.Context) error
	EnableUnitFilesContext(ctx context.Context, files []string, runtime, force bool) (bool, []sdbus.EnableUnitFileChange, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]sdbus.DisableUnitFileChange, error)
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]any, error)
	Close()
}

// newConn connects to the system manager. Replaced in tests to avoid
// requiring a real systemd.
var newConn = func(ctx context.Context) (systemdConn, error) {
	return sdbus.NewSystemConnectionContext(ctx)
}

func connect(ctx context.Context) (systemdConn, error) {
	conn, err := newConn(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return conn, nil
}

// runJob starts a start or stop job for the unit and waits for its result.
func runJob(ctx context.Context, op string, submit func(context.Context, string, string, chan<- string) (int, error)) error {
	ch := make(chan string, 1)
	if _, err := submit(ctx, unitFileName, "replace", ch); err != nil {
		return fmt.Errorf("%s %s: %w", op, unitFileName, err)
	}
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("%s %s: job %s", op, unitFileName, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s %s: %w", op, unitFileName, ctx.Err())
	}
}

// Install writes the bus policy and the systemd unit, reloads systemd,
// and enables the service.
func Install(ctx context.Context, opts Options) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	self, err = filepath.EvalSymlinks(self)
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	execStart := self + " serve"
	if opts.ConfigPath != "" {
		execStart += " --config " + opts.ConfigPath
	}

	// The policy goes first: the unit's BusName= is useless until the
	// daemon may own the name.
	if err := writeFile(PolicyPath(), renderPolicy(opts.Group)); err != nil {
		return err
	}
	if err := writeFile(UnitPath(), fmt.Sprintf(unitTemplate, dbustypes.BusName, execStart)); err != nil {
		return err
	}

	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon reload: %w", err)
	}

	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unitFileName}, false, true); err != nil {
		return fmt.Errorf("enable %s: %w", unitFileName, err)
	}
	fmt.Printf("Enabled %s\n", unitFileName)

	if opts.Start {
		if err := runJob(ctx, "start", conn.StartUnitContext); err != nil {
			return err
		}
		fmt.Printf("Started %s\n", unitFileName)
	}

	return nil
}

// Uninstall stops and disables the service, removes the unit file and the
// bus policy, and reloads systemd.
func Uninstall(ctx context.Context) error {
	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// The unit may not be loaded or running.
	if err := runJob(ctx, "stop", conn.StopUnitContext); err != nil {
		slog.Debug("stop before uninstall failed", "error", err)
	}

	if _, err := conn.DisableUnitFilesContext(ctx, []string{unitFileName}, false); err != nil {
		return fmt.Errorf("disable %s: %w", unitFileName, err)
	}
	fmt.Printf("Disabled %s\n", unitFileName)

	for _, path := range []string{UnitPath(), PolicyPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		fmt.Printf("Removed %s\n", path)
	}

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon reload: %w", err)
	}
	return nil
}

// Status prints the unit's load, enablement and activity state to w.
func Status(ctx context.Context, w io.Writer) error {
	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	props, err := conn.GetUnitPropertiesContext(ctx, unitFileName)
	if err != nil {
		return fmt.Errorf("get %s properties: %w", unitFileName, err)
	}
	str := func(key string) string {
		v, _ := props[key].(string)
		return v
	}

	fmt.Fprintf(w, "%s - %s\n", unitFileName, str("Description"))
	fmt.Fprintf(w, "  Loaded: %s (%s)\n", str("LoadState"), str("UnitFileState"))
	fmt.Fprintf(w, "  Active: %s (%s)\n", str("ActiveState"), str("SubState"))
	if pid, ok := props["MainPID"].(uint32); ok && pid != 0 {
		fmt.Fprintf(w, "  Main PID: %d\n", pid)
	}
	fmt.Fprintf(w, "  Policy: %s\n", PolicyPath())
	return nil
}
