// Package caller resolves who sent a D-Bus call: the unique bus name, the
// connection's UID and PID, and the user-facing process behind it.
//
// The result only feeds the audit log. Authorization is left to the bus
// policy.
package caller

import (
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// Info describes the sender of one call. Fields that could not be
// resolved are zero.
type Info struct {
	Sender     string
	UID        uint32
	PID        uint32
	Invoker    string
	InvokerPID uint32
}

// LogValue groups the resolved fields for slog.
func (i Info) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("sender", i.Sender)}
	if i.PID != 0 {
		attrs = append(attrs, slog.Uint64("uid", uint64(i.UID)), slog.Uint64("pid", uint64(i.PID)))
	}
	if i.Invoker != "" {
		attrs = append(attrs, slog.String("invoker", i.Invoker), slog.Uint64("invoker_pid", uint64(i.InvokerPID)))
	}
	return slog.GroupValue(attrs...)
}

// busClient is the subset of bus driver calls the resolver needs.
type busClient interface {
	GetConnectionUnixProcessID(sender string) (uint32, error)
	GetConnectionUnixUser(sender string) (uint32, error)
}

// Resolver resolves sender information through the bus driver and procfs.
type Resolver struct {
	client busClient
	proc   procfs
}

// NewResolver creates a resolver that queries the bus driver over conn.
func NewResolver(conn *dbus.Conn) *Resolver {
	return &Resolver{client: &busDriver{conn: conn}, proc: DefaultProcRoot}
}

// Resolve returns whatever can be learned about sender. It never fails;
// lookups that error are logged at debug level and left zero.
func (r *Resolver) Resolve(sender string) Info {
	info := Info{Sender: sender}
	if sender == "" {
		return info
	}

	pid, err := r.client.GetConnectionUnixProcessID(sender)
	if err != nil {
		slog.Debug("failed to get connection PID", "sender", sender, "error", err)
		return info
	}
	info.PID = pid

	uid, err := r.client.GetConnectionUnixUser(sender)
	if err != nil {
		slog.Debug("failed to get connection UID", "sender", sender, "error", err)
	} else {
		info.UID = uid
	}

	info.Invoker, info.InvokerPID = r.proc.invoker(pid)
	return info
}

// busDriver implements busClient on a live connection.
type busDriver struct {
	conn *dbus.Conn
}

func (b *busDriver) GetConnectionUnixProcessID(sender string) (uint32, error) {
	var pid uint32
	err := b.conn.BusObject().Call("org.freedesktop.DBus.GetConnectionUnixProcessID", 0, sender).Store(&pid)
	return pid, err
}

func (b *busDriver) GetConnectionUnixUser(sender string) (uint32, error) {
	var uid uint32
	err := b.conn.BusObject().Call("org.freedesktop.DBus.GetConnectionUnixUser", 0, sender).Store(&uid)
	return uid, err
}
