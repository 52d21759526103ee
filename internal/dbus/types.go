// Package dbus provides the D-Bus names, fault constructors and
// introspection data for the k16brightd service.
package dbus

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// D-Bus identity of the service.
const (
	BusName    = "net.iczelia.K16BrightD"
	ObjectPath = dbus.ObjectPath("/net/iczelia/K16BrightD")
	Interface  = "net.iczelia.K16BrightD"

	IntrospectableInterface = "org.freedesktop.DBus.Introspectable"
)

// Method names on Interface.
const (
	MethodSetGovernor   = "SetGovernor"
	MethodSetBrightness = "SetBrightness"
)

// Error names returned to callers.
const (
	ErrInvalidArgs = "org.freedesktop.DBus.Error.InvalidArgs"
	ErrFailed      = "org.freedesktop.DBus.Error.Failed"
	// ErrNoMemory reports a transport-local condition: the call was
	// accepted by the connection but no reply could be produced for it.
	ErrNoMemory = "org.freedesktop.DBus.Error.NoMemory"
)

// NewDBusError creates a D-Bus error with the given name and message.
func NewDBusError(name, message string) *dbus.Error {
	return &dbus.Error{
		Name: name,
		Body: []any{message},
	}
}

// InvalidArgs returns an InvalidArgs fault with a formatted message.
func InvalidArgs(format string, args ...any) *dbus.Error {
	return NewDBusError(ErrInvalidArgs, fmt.Sprintf(format, args...))
}

// Failed returns a Failed fault with a formatted message.
func Failed(format string, args ...any) *dbus.Error {
	return NewDBusError(ErrFailed, fmt.Sprintf(format, args...))
}

// NoMemory returns the transport-local fault used when a reply cannot be built.
func NoMemory(reason string) *dbus.Error {
	return NewDBusError(ErrNoMemory, reason)
}

// Message returns the human-readable text of a D-Bus error, or "" if it
// carries none.
func Message(err *dbus.Error) string {
	if err == nil || len(err.Body) == 0 {
		return ""
	}
	if s, ok := err.Body[0].(string); ok {
		return s
	}
	return ""
}

// AsError extracts a D-Bus error reply from err. Replies received by a
// client arrive as dbus.Error values, locally built faults as pointers.
func AsError(err error) (*dbus.Error, bool) {
	var val dbus.Error
	if errors.As(err, &val) {
		return &val, true
	}
	var ptr *dbus.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr, true
	}
	return nil, false
}

// IntrospectNode describes the object exported at ObjectPath.
func IntrospectNode() *introspect.Node {
	return &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: Interface,
				Methods: []introspect.Method{
					{
						Name: MethodSetGovernor,
						Args: []introspect.Arg{
							{Name: "cpu_index", Type: "i", Direction: "in"},
							{Name: "governor_name", Type: "s", Direction: "in"},
						},
					},
					{
						Name: MethodSetBrightness,
						Args: []introspect.Arg{
							{Name: "device_name", Type: "s", Direction: "in"},
							{Name: "level", Type: "i", Direction: "in"},
						},
					},
				},
			},
		},
	}
}

// IntrospectXML renders IntrospectNode as introspection XML.
func IntrospectXML() string {
	xml, _ := introspect.NewIntrospectable(IntrospectNode()).Introspect()
	return xml
}
