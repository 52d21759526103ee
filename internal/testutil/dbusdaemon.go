package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
)

// policyConfigTemplate mirrors the system bus default-deny policy and
// lets the current user (numeric UID) own and call the service name.
// The receive_type allows are needed or method replies get rejected.
//
// Args: sockPath, uid, bus name, bus name
const policyConfigTemplate = `<?xml version="1.0"?>
<!DOCTYPE busconfig PUBLIC "-//freedesktop//DTD D-BUS Bus Configuration 1.0//EN"
 "http://www.freedesktop.org/standards/dbus/1.0/busconfig.dtd">
<busconfig>
  <type>session</type>
  <listen>unix:path=%s</listen>
  <auth>EXTERNAL</auth>
  <policy context="default">
    <allow user="*"/>
    <deny own="*"/>
    <deny send_type="method_call"/>
    <allow send_type="signal"/>
    <allow send_requested_reply="true" send_type="method_return"/>
    <allow send_requested_reply="true" send_type="error"/>
    <allow receive_type="method_call"/>
    <allow receive_type="method_return"/>
    <allow receive_type="error"/>
    <allow receive_type="signal"/>
    <allow send_destination="org.freedesktop.DBus"/>
  </policy>
  <policy user="%s">
    <allow own="%s"/>
    <allow send_destination="%s"/>
  </policy>
</busconfig>`

// Bus is a private dbus-daemon started for one test.
type Bus struct {
	Addr string
	cmd  *exec.Cmd
}

// Kill terminates the bus daemon, dropping every connection to it.
func (b *Bus) Kill() {
	b.cmd.Process.Kill() //nolint:errcheck
	b.cmd.Wait()         //nolint:errcheck
}

// StartDBusDaemon starts a private dbus-daemon whose policy allows the
// current user to own and call busName, and returns its address. The
// test is skipped when dbus-daemon is not installed. A filesystem socket
// is used so parallel tests never collide.
func StartDBusDaemon(t *testing.T, busName string) string {
	t.Helper()
	return StartBus(t, busName).Addr
}

// StartBus is StartDBusDaemon for tests that need to kill the bus.
func StartBus(t *testing.T, busName string) *Bus {
	t.Helper()

	bin, err := exec.LookPath("dbus-daemon")
	if err != nil {
		t.Skip("dbus-daemon not installed")
	}

	tmpDir := t.TempDir()
	sockPath := filepath.Join(tmpDir, "bus.sock")
	confPath := filepath.Join(tmpDir, "policy.conf")

	uid := strconv.Itoa(os.Getuid())
	conf := fmt.Sprintf(policyConfigTemplate, sockPath, uid, busName, busName)
	if err := os.WriteFile(confPath, []byte(conf), 0o600); err != nil {
		t.Fatalf("write policy config: %v", err)
	}

	cmd := exec.Command(bin, "--config-file="+confPath, "--nofork", "--nosyslog")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start dbus-daemon: %v", err)
	}
	bus := &Bus{cmd: cmd}
	t.Cleanup(func() {
		if cmd.ProcessState == nil {
			bus.Kill()
		}
	})

	for range 50 {
		if _, err := os.Stat(sockPath); err == nil {
			bus.Addr = "unix:path=" + sockPath
			return bus
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("dbus-daemon socket not created in time")
	return nil
}

// Connect opens a client connection to addr, closed at test cleanup.
func Connect(t *testing.T, addr string) *dbus.Conn {
	t.Helper()
	conn, err := dbus.Connect(addr)
	if err != nil {
		t.Fatalf("connect %s: %v", addr, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// WaitForName polls until name has an owner on the bus at addr.
func WaitForName(t *testing.T, addr, name string) {
	t.Helper()
	conn := Connect(t, addr)
	for range 50 {
		var owned bool
		err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, name).Store(&owned)
		if err == nil && owned {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("bus name %q not registered in time", name)
}
