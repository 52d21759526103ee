// Package cli provides a D-Bus client for the k16brightd service and the
// formatting used by the command-line subcommands.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	dbustypes "github.com/iczelia/k16brightd/internal/dbus"
)

// DefaultTimeout bounds how long a call waits for the daemon's reply.
const DefaultTimeout = 5 * time.Second

// CallError is a fault returned by the daemon.
type CallError struct {
	Method  string
	Name    string
	Message string
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Method, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

// Client calls the k16brightd service.
type Client struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	timeout time.Duration
}

// Dial connects to the bus at address (empty means the system bus).
func Dial(address string) (*Client, error) {
	var conn *dbus.Conn
	var err error
	if address == "" {
		conn, err = dbus.ConnectSystemBus()
	} else {
		conn, err = dbus.Connect(address)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to D-Bus: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient creates a client on an existing connection. Close closes conn.
func NewClient(conn *dbus.Conn) *Client {
	return &Client{
		conn:    conn,
		obj:     conn.Object(dbustypes.BusName, dbustypes.ObjectPath),
		timeout: DefaultTimeout,
	}
}

// SetTimeout changes the per-call reply timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SetGovernor sets the scaling governor of one CPU.
func (c *Client) SetGovernor(ctx context.Context, cpu int32, governor string) error {
	return c.call(ctx, dbustypes.MethodSetGovernor, cpu, governor)
}

// SetBrightness sets the level of a backlight device.
func (c *Client) SetBrightness(ctx context.Context, device string, level int32) error {
	return c.call(ctx, dbustypes.MethodSetBrightness, device, level)
}

func (c *Client) call(ctx context.Context, method string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.obj.CallWithContext(ctx, dbustypes.Interface+"."+method, 0, args...).Err
	if err == nil {
		return nil
	}
	if derr, ok := dbustypes.AsError(err); ok {
		return &CallError{Method: method, Name: derr.Name, Message: dbustypes.Message(derr)}
	}
	return fmt.Errorf("%s: %w", method, err)
}
