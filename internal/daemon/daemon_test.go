package daemon_test

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	. "github.com/iczelia/k16brightd/internal/daemon"
	dbustypes "github.com/iczelia/k16brightd/internal/dbus"
	"github.com/iczelia/k16brightd/internal/sysfs"
	"github.com/iczelia/k16brightd/internal/testutil"
)

type runningDaemon struct {
	addr   string
	fake   *testutil.FakeSysfs
	cancel context.CancelFunc
	errCh  chan error
}

// startDaemon runs the daemon against a private bus and a fake sysfs tree
// and waits until it owns its name.
func startDaemon(t *testing.T) *runningDaemon {
	t.Helper()
	addr := testutil.StartDBusDaemon(t, dbustypes.BusName)
	fake := testutil.NewFakeSysfs(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Config{
			BusAddress: addr,
			SysfsRoot:  fake.Root,
			Version:    "test",
		})
	}()
	t.Cleanup(cancel)

	testutil.WaitForName(t, addr, dbustypes.BusName)
	return &runningDaemon{addr: addr, fake: fake, cancel: cancel, errCh: errCh}
}

func (d *runningDaemon) object(t *testing.T) dbus.BusObject {
	t.Helper()
	return testutil.Connect(t, d.addr).Object(dbustypes.BusName, dbustypes.ObjectPath)
}

func (d *runningDaemon) stop(t *testing.T) error {
	t.Helper()
	d.cancel()
	select {
	case err := <-d.errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop within 5s after context cancel")
		return nil
	}
}

func assertCallFault(t *testing.T, err error, name, msg string) {
	t.Helper()
	derr, ok := dbustypes.AsError(err)
	if !ok {
		t.Fatalf("expected D-Bus error %s, got %v", name, err)
	}
	if derr.Name != name {
		t.Errorf("error name = %q, want %q", derr.Name, name)
	}
	if msg != "" {
		if got := dbustypes.Message(derr); got != msg {
			t.Errorf("error message = %q, want %q", got, msg)
		}
	}
}

func TestDaemon_SetGovernor(t *testing.T) {
	d := startDaemon(t)
	path := d.fake.AddCPU(t, 0, "powersave", "powersave", "performance")
	obj := d.object(t)

	if err := obj.Call(dbustypes.Interface+".SetGovernor", 0, int32(0), "performance").Err; err != nil {
		t.Fatalf("SetGovernor: %v", err)
	}
	if got := d.fake.Read(t, path); got != "performance" {
		t.Errorf("scaling_governor = %q, want %q", got, "performance")
	}

	err := obj.Call(dbustypes.Interface+".SetGovernor", 0, int32(4097), "performance").Err
	assertCallFault(t, err, dbustypes.ErrInvalidArgs, "cpu out of range")

	err = obj.Call(dbustypes.Interface+".SetGovernor", 0, int32(3), "performance").Err
	assertCallFault(t, err, dbustypes.ErrFailed, "path not found: "+d.fake.GovernorPath(3))

	if err := d.stop(t); err != nil {
		t.Errorf("Run() returned error: %v", err)
	}
}

func TestDaemon_SetBrightness(t *testing.T) {
	d := startDaemon(t)
	dir := d.fake.AddBacklight(t, "intel_backlight", "200\n", 10)
	obj := d.object(t)

	if err := obj.Call(dbustypes.Interface+".SetBrightness", 0, "intel_backlight", int32(150)).Err; err != nil {
		t.Fatalf("SetBrightness: %v", err)
	}
	if got := d.fake.Read(t, sysfs.BrightnessPath(dir)); got != "150\n" {
		t.Errorf("brightness = %q, want %q", got, "150\n")
	}

	err := obj.Call(dbustypes.Interface+".SetBrightness", 0, "intel_backlight", int32(201)).Err
	assertCallFault(t, err, dbustypes.ErrInvalidArgs, "brightness out of range 0..200")

	err = obj.Call(dbustypes.Interface+".SetBrightness", 0, "../../etc", int32(1)).Err
	assertCallFault(t, err, dbustypes.ErrInvalidArgs, "invalid backlight name")

	err = obj.Call(dbustypes.Interface+".SetBrightness", 0, "nv_backlight", int32(1)).Err
	assertCallFault(t, err, dbustypes.ErrFailed, "backlight not found: nv_backlight")

	if got := d.fake.Read(t, sysfs.BrightnessPath(dir)); got != "150\n" {
		t.Errorf("brightness modified by rejected calls: %q", got)
	}
}

func TestDaemon_WrongArgumentShape(t *testing.T) {
	d := startDaemon(t)
	path := d.fake.AddCPU(t, 0, "powersave")
	obj := d.object(t)

	calls := []struct {
		method string
		args   []any
	}{
		{"SetGovernor", []any{"0", "performance"}},
		{"SetGovernor", []any{int32(0)}},
		{"SetGovernor", []any{int32(0), "performance", "extra"}},
		{"SetGovernor", []any{uint32(0), "performance"}},
		{"SetBrightness", []any{int32(1), "intel_backlight"}},
		{"SetBrightness", nil},
	}
	for _, c := range calls {
		err := obj.Call(dbustypes.Interface+"."+c.method, 0, c.args...).Err
		assertCallFault(t, err, dbustypes.ErrInvalidArgs, "Invalid args")
	}
	if got := d.fake.Read(t, path); got != "powersave\n" {
		t.Errorf("scaling_governor modified to %q", got)
	}
}

func TestDaemon_UnrecognizedCalls(t *testing.T) {
	d := startDaemon(t)
	client := testutil.Connect(t, d.addr)
	obj := client.Object(dbustypes.BusName, dbustypes.ObjectPath)

	err := obj.Call(dbustypes.Interface+".GetGovernor", 0, int32(0)).Err
	assertCallFault(t, err, "org.freedesktop.DBus.Error.UnknownMethod", "")

	err = obj.Call("org.example.Other.SetGovernor", 0, int32(0), "performance").Err
	assertCallFault(t, err, "org.freedesktop.DBus.Error.UnknownInterface", "")

	other := client.Object(dbustypes.BusName, "/net/iczelia/Other")
	err = other.Call(dbustypes.Interface+".SetGovernor", 0, int32(0), "performance").Err
	assertCallFault(t, err, "org.freedesktop.DBus.Error.NoSuchObject", "")

	if err := obj.Call("org.freedesktop.DBus.Peer.Ping", 0).Err; err != nil {
		t.Errorf("Peer.Ping: %v", err)
	}

	// The loop keeps serving after unrecognized calls.
	path := d.fake.AddCPU(t, 1, "powersave")
	if err := obj.Call(dbustypes.Interface+".SetGovernor", 0, int32(1), "schedutil").Err; err != nil {
		t.Fatalf("SetGovernor after unknown calls: %v", err)
	}
	if got := d.fake.Read(t, path); got != "schedutil" {
		t.Errorf("scaling_governor = %q", got)
	}
}

func TestDaemon_CallWithoutInterface(t *testing.T) {
	d := startDaemon(t)
	obj := d.object(t)
	path := d.fake.AddCPU(t, 2, "powersave")

	if err := obj.Call(dbustypes.MethodSetGovernor, 0, int32(2), "performance").Err; err != nil {
		t.Fatalf("SetGovernor without interface: %v", err)
	}
	if got := d.fake.Read(t, path); got != "performance" {
		t.Errorf("scaling_governor = %q, want performance", got)
	}

	err := obj.Call(dbustypes.MethodSetBrightness, 0, "intel_backlight").Err
	assertCallFault(t, err, dbustypes.ErrInvalidArgs, "Invalid args")

	var xml string
	if err := obj.Call("Introspect", 0).Store(&xml); err != nil || !strings.Contains(xml, dbustypes.Interface) {
		t.Errorf("Introspect without interface = %v, %q", err, xml)
	}

	err = obj.Call("GetGovernor", 0).Err
	assertCallFault(t, err, "org.freedesktop.DBus.Error.UnknownMethod", "")
}

func TestDaemon_Introspect(t *testing.T) {
	d := startDaemon(t)
	client := testutil.Connect(t, d.addr)

	var xml string
	err := client.Object(dbustypes.BusName, dbustypes.ObjectPath).
		Call(dbustypes.IntrospectableInterface+".Introspect", 0).Store(&xml)
	if err != nil {
		t.Fatalf("Introspect: %v", err)
	}
	for _, want := range []string{`<method name="SetGovernor">`, `<method name="SetBrightness">`} {
		if !strings.Contains(xml, want) {
			t.Errorf("introspection missing %s", want)
		}
	}

	var root string
	err = client.Object(dbustypes.BusName, "/").
		Call(dbustypes.IntrospectableInterface+".Introspect", 0).Store(&root)
	if err != nil {
		t.Fatalf("Introspect /: %v", err)
	}
	if !strings.Contains(root, `<node name="net">`) {
		t.Errorf("root introspection does not list child node: %s", root)
	}
}

func TestDaemon_ShutdownReleasesName(t *testing.T) {
	d := startDaemon(t)

	if err := d.stop(t); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	conn := testutil.Connect(t, d.addr)
	var owned bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, dbustypes.BusName).Store(&owned); err != nil {
		t.Fatalf("NameHasOwner: %v", err)
	}
	if owned {
		t.Errorf("%s still owned after shutdown", dbustypes.BusName)
	}
}

// TestDaemon_NameAlreadyTaken verifies Run() returns an error when the bus
// name is already owned by another connection.
func TestDaemon_NameAlreadyTaken(t *testing.T) {
	addr := testutil.StartDBusDaemon(t, dbustypes.BusName)

	owner := testutil.Connect(t, addr)
	reply, err := owner.RequestName(dbustypes.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		t.Fatalf("pre-claim RequestName: %v", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		t.Fatalf("expected to become primary owner, got reply=%d", reply)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = Run(ctx, Config{BusAddress: addr, SysfsRoot: t.TempDir()})
	if err == nil {
		t.Fatal("Run() returned nil, expected error when name is already taken")
	}
	if !strings.Contains(err.Error(), "not primary owner") {
		t.Errorf("error = %v, want not primary owner", err)
	}
}

func TestDaemon_ConnectFailure(t *testing.T) {
	err := Run(context.Background(), Config{BusAddress: "unix:path=/nonexistent/k16brightd.sock"})
	if err == nil || !strings.Contains(err.Error(), "connect to D-Bus") {
		t.Errorf("Run() = %v, want connect error", err)
	}
}

func TestDaemon_ConnectionLost(t *testing.T) {
	bus := testutil.StartBus(t, dbustypes.BusName)
	fake := testutil.NewFakeSysfs(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Config{BusAddress: bus.Addr, SysfsRoot: fake.Root})
	}()
	testutil.WaitForName(t, bus.Addr, dbustypes.BusName)

	bus.Kill()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("Run() = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not notice the lost connection within 5s")
	}
}

func TestDaemon_SdNotify(t *testing.T) {
	// The bus is started first so that it does not inherit NOTIFY_SOCKET.
	addr := testutil.StartDBusDaemon(t, dbustypes.BusName)
	fake := testutil.NewFakeSysfs(t)

	sock := filepath.Join(t.TempDir(), "notify.sock")
	l, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sock, Net: "unixgram"})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	t.Setenv("NOTIFY_SOCKET", sock)

	read := func() string {
		t.Helper()
		l.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
		buf := make([]byte, 256)
		n, err := l.Read(buf)
		if err != nil {
			t.Fatalf("read notification: %v", err)
		}
		return string(buf[:n])
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Config{BusAddress: addr, SysfsRoot: fake.Root})
	}()

	if got := read(); got != "READY=1" {
		t.Errorf("first notification = %q, want READY=1", got)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := read(); got != "STOPPING=1" {
		t.Errorf("second notification = %q, want STOPPING=1", got)
	}
}
