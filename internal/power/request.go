// Package power implements the SetGovernor and SetBrightness request
// handlers of the service.
package power

import (
	"github.com/godbus/dbus/v5"

	dbustypes "github.com/iczelia/k16brightd/internal/dbus"
)

// Request is a decoded call on the service interface. The set of
// implementations is closed: SetGovernor and SetBrightness.
type Request interface {
	// Method returns the D-Bus member name of the request.
	Method() string
	// Args returns the request arguments for audit logging.
	Args() map[string]any

	dispatch(h Handler) *dbus.Error
}

// Handler has one operation per request variant. A nil return is an
// empty success reply.
type Handler interface {
	SetGovernor(req SetGovernor) *dbus.Error
	SetBrightness(req SetBrightness) *dbus.Error
}

// Dispatch routes req to the matching Handler operation.
func Dispatch(h Handler, req Request) *dbus.Error {
	return req.dispatch(h)
}

// SetGovernor asks for a CPU's scaling governor to be changed.
type SetGovernor struct {
	CPU      int32
	Governor string
}

func (r SetGovernor) Method() string { return dbustypes.MethodSetGovernor }

func (r SetGovernor) Args() map[string]any {
	return map[string]any{"cpu": r.CPU, "governor": r.Governor}
}

func (r SetGovernor) dispatch(h Handler) *dbus.Error { return h.SetGovernor(r) }

// SetBrightness asks for a backlight device's level to be changed.
type SetBrightness struct {
	Device string
	Level  int32
}

func (r SetBrightness) Method() string { return dbustypes.MethodSetBrightness }

func (r SetBrightness) Args() map[string]any {
	return map[string]any{"device": r.Device, "level": r.Level}
}

func (r SetBrightness) dispatch(h Handler) *dbus.Error { return h.SetBrightness(r) }

// Decoder turns a message body into a Request, or returns an
// InvalidArgs fault if the body has the wrong shape.
type Decoder func(body []any) (Request, *dbus.Error)

// Classify maps (interface, member) to the decoder of the matching
// request variant. ok is false for calls the service does not handle;
// those are left to the transport's own fallback.
func Classify(iface, member string) (dec Decoder, ok bool) {
	if iface != dbustypes.Interface {
		return nil, false
	}
	switch member {
	case dbustypes.MethodSetGovernor:
		return decodeSetGovernor, true
	case dbustypes.MethodSetBrightness:
		return decodeSetBrightness, true
	default:
		return nil, false
	}
}

func errShape() *dbus.Error {
	return dbustypes.InvalidArgs("Invalid args")
}

func decodeSetGovernor(body []any) (Request, *dbus.Error) {
	if len(body) != 2 {
		return nil, errShape()
	}
	cpu, ok := body[0].(int32)
	if !ok {
		return nil, errShape()
	}
	gov, ok := body[1].(string)
	if !ok {
		return nil, errShape()
	}
	return SetGovernor{CPU: cpu, Governor: gov}, nil
}

func decodeSetBrightness(body []any) (Request, *dbus.Error) {
	if len(body) != 2 {
		return nil, errShape()
	}
	dev, ok := body[0].(string)
	if !ok {
		return nil, errShape()
	}
	level, ok := body[1].(int32)
	if !ok {
		return nil, errShape()
	}
	return SetBrightness{Device: dev, Level: level}, nil
}
