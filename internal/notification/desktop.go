// Package notification shows on-screen feedback for the client commands
// as desktop notifications.
package notification

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest      = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyInterface = "org.freedesktop.Notifications"

	appName = "k16brightd"
	// expireMillis keeps OSD-style notices short.
	expireMillis = 1500
)

// Notice is one notification. Value is a 0..100 progress value shown as a
// bar by servers that support it; negative means none. Tag groups notices
// so a newer one replaces the previous one on screen.
type Notice struct {
	Summary string
	Body    string
	Icon    string
	Value   int
	Tag     string
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify sends a notification and returns its ID.
	Notify(n Notice) (uint32, error)
}

// DBusNotifier sends notifications over the session bus.
type DBusNotifier struct {
	conn *dbus.Conn
}

// NewDBusNotifier connects to the session bus.
func NewDBusNotifier() (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return &DBusNotifier{conn: conn}, nil
}

// Close closes the session bus connection.
func (n *DBusNotifier) Close() error {
	return n.conn.Close()
}

// Notify sends a low-urgency, short-lived notification.
func (n *DBusNotifier) Notify(notice Notice) (uint32, error) {
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(0)), // low
	}
	if notice.Value >= 0 {
		hints["value"] = dbus.MakeVariant(int32(notice.Value))
	}
	if notice.Tag != "" {
		// Understood by dunst, mako and notify-osd respectively.
		hints["x-dunst-stack-tag"] = dbus.MakeVariant(notice.Tag)
		hints["x-canonical-private-synchronous"] = dbus.MakeVariant(notice.Tag)
	}

	obj := n.conn.Object(notifyDest, notifyPath)
	call := obj.Call(
		notifyInterface+".Notify",
		0,
		appName,             // app_name
		uint32(0),           // replaces_id
		notice.Icon,         // app_icon
		notice.Summary,      // summary
		notice.Body,         // body
		[]string{},          // actions
		hints,               // hints
		int32(expireMillis), // expire_timeout
	)
	if call.Err != nil {
		return 0, fmt.Errorf("notify call: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("store notify result: %w", err)
	}
	return id, nil
}

// BrightnessNotice describes a brightness change. An unknown maximum
// (maxLevel <= 0) shows the raw level without a bar.
func BrightnessNotice(device string, level, maxLevel int64) Notice {
	n := Notice{
		Summary: "Brightness",
		Icon:    "display-brightness-symbolic",
		Value:   -1,
		Tag:     appName + "-brightness",
	}
	if maxLevel > 0 {
		pct := int(min(maxLevel, max(level, 0)) * 100 / maxLevel)
		n.Value = pct
		n.Body = fmt.Sprintf("%s: %d%%", device, pct)
	} else {
		n.Body = fmt.Sprintf("%s: %d", device, level)
	}
	return n
}

// GovernorNotice describes a governor change on one or more CPUs.
func GovernorNotice(cpus []int32, governor string) Notice {
	var target string
	switch len(cpus) {
	case 1:
		target = fmt.Sprintf("CPU %d", cpus[0])
	default:
		ids := make([]string, len(cpus))
		for i, c := range cpus {
			ids[i] = fmt.Sprint(c)
		}
		target = "CPUs " + strings.Join(ids, ",")
	}
	return Notice{
		Summary: "CPU governor",
		Body:    fmt.Sprintf("%s: %s", target, governor),
		Icon:    "preferences-system-power-symbolic",
		Value:   -1,
		Tag:     appName + "-governor",
	}
}
