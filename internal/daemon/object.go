package daemon

import (
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/iczelia/k16brightd/internal/caller"
	dbustypes "github.com/iczelia/k16brightd/internal/dbus"
	"github.com/iczelia/k16brightd/internal/power"
)

var serviceXML = sync.OnceValue(dbustypes.IntrospectXML)

// handler is the dbus.Handler installed on the connection. It serves one
// bound object path, plus introspection of that path's ancestors so that
// tree walkers such as busctl can find it.
type handler struct {
	mu      sync.RWMutex
	path    dbus.ObjectPath
	d       *Dispatcher
	resolve func(sender string) caller.Info
}

func (h *handler) bind(path dbus.ObjectPath, d *Dispatcher, resolve func(string) caller.Info) error {
	if !path.IsValid() {
		return fmt.Errorf("invalid object path %q", path)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.path != "" {
		return fmt.Errorf("object path %s already bound", h.path)
	}
	h.path, h.d, h.resolve = path, d, resolve
	return nil
}

func (h *handler) unbind() {
	h.mu.Lock()
	h.path = ""
	h.mu.Unlock()
}

func (h *handler) LookupObject(path dbus.ObjectPath) (dbus.ServerObject, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.path == "" {
		return nil, false
	}
	if path == h.path {
		return &serviceObject{d: h.d, resolve: h.resolve}, true
	}
	if child, ok := childOf(path, h.path); ok {
		return &parentObject{path: path, child: child}, true
	}
	return nil, false
}

// childOf returns the first element below parent on the way to target.
func childOf(parent, target dbus.ObjectPath) (string, bool) {
	p, t := string(parent), string(target)
	if p != "/" {
		p += "/"
	}
	if !strings.HasPrefix(t, p) || len(t) == len(p) {
		return "", false
	}
	rest := t[len(p):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest, true
}

type serviceObject struct {
	d       *Dispatcher
	resolve func(string) caller.Info
}

func (o *serviceObject) LookupInterface(name string) (dbus.Interface, bool) {
	switch name {
	case dbustypes.Interface:
		return &serviceInterface{o}, true
	case dbustypes.IntrospectableInterface:
		return introspectable(serviceXML()), true
	case "":
		// The interface header is optional on method calls.
		return memberOnly{o}, true
	}
	return nil, false
}

// memberOnly resolves a call that names no interface by its member alone.
type memberOnly struct {
	o *serviceObject
}

func (m memberOnly) LookupMethod(name string) (dbus.Method, bool) {
	if name == "Introspect" {
		return introspectable(serviceXML()).LookupMethod(name)
	}
	return (&serviceInterface{m.o}).LookupMethod(name)
}

type serviceInterface struct {
	o *serviceObject
}

func (i *serviceInterface) LookupMethod(name string) (dbus.Method, bool) {
	dec, ok := power.Classify(dbustypes.Interface, name)
	if !ok {
		return nil, false
	}
	return &serviceMethod{o: i.o, member: name, decode: dec}, true
}

// serviceMethod decodes one call on the service interface and submits it
// to the dispatcher. A fresh value is created per call.
type serviceMethod struct {
	o      *serviceObject
	member string
	decode power.Decoder
}

// DecodeArguments replaces godbus' reflection-based decoding so that a
// body of the wrong shape gets the service's own InvalidArgs reply.
func (m *serviceMethod) DecodeArguments(_ *dbus.Conn, sender string, _ *dbus.Message, body []any) ([]any, error) {
	from := m.o.resolve(sender)
	req, derr := m.decode(body)
	if derr != nil {
		m.o.d.Reject(m.member, from, derr)
		return nil, derr
	}
	return []any{req, from}, nil
}

func (m *serviceMethod) Call(args ...any) ([]any, error) {
	req, ok := args[0].(power.Request)
	if !ok {
		return nil, dbustypes.InvalidArgs("Invalid args")
	}
	from, _ := args[1].(caller.Info)
	if derr := m.o.d.Submit(req, from); derr != nil {
		return nil, derr
	}
	return nil, nil
}

func (m *serviceMethod) NumArguments() int { return 2 }
func (m *serviceMethod) NumReturns() int   { return 0 }

func (m *serviceMethod) ArgumentValue(position int) any {
	switch {
	case m.member == dbustypes.MethodSetGovernor && position == 0,
		m.member == dbustypes.MethodSetBrightness && position == 1:
		return int32(0)
	default:
		return ""
	}
}

func (m *serviceMethod) ReturnValue(int) any { return nil }

// parentObject is an ancestor of the bound path. It only answers
// introspection, listing the next path element as a child node.
type parentObject struct {
	path  dbus.ObjectPath
	child string
}

func (o *parentObject) LookupInterface(name string) (dbus.Interface, bool) {
	if name != dbustypes.IntrospectableInterface {
		return nil, false
	}
	node := &introspect.Node{
		Name:       string(o.path),
		Interfaces: []introspect.Interface{introspect.IntrospectData},
		Children:   []introspect.Node{{Name: o.child}},
	}
	xml, _ := introspect.NewIntrospectable(node).Introspect()
	return introspectable(xml), true
}

// introspectable serves org.freedesktop.DBus.Introspectable with fixed XML.
type introspectable string

func (x introspectable) LookupMethod(name string) (dbus.Method, bool) {
	if name != "Introspect" {
		return nil, false
	}
	return introspectMethod(x), true
}

type introspectMethod string

func (x introspectMethod) Call(...any) ([]any, error) { return []any{string(x)}, nil }
func (x introspectMethod) NumArguments() int          { return 0 }
func (x introspectMethod) NumReturns() int            { return 1 }
func (x introspectMethod) ArgumentValue(int) any      { return nil }
func (x introspectMethod) ReturnValue(int) any        { return "" }
