// Package logging provides the log handler setup and the per-call audit
// record of the daemon.
package logging

import (
	"context"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/iczelia/k16brightd/internal/caller"
	dbustypes "github.com/iczelia/k16brightd/internal/dbus"
)

// Result values recorded for a call.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
	ResultDropped  = "dropped"
)

// Logger wraps slog for structured audit logging.
type Logger struct {
	*slog.Logger
}

// New creates an audit logger on top of l. A nil l uses slog.Default.
func New(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{Logger: l}
}

// NewRequestID returns a fresh id used to correlate log lines of one call.
func NewRequestID() string {
	return uuid.NewString()
}

// Result classifies a fault for the audit record.
func Result(derr *dbus.Error) string {
	switch {
	case derr == nil:
		return ResultOK
	case derr.Name == dbustypes.ErrInvalidArgs:
		return ResultRejected
	case derr.Name == dbustypes.ErrNoMemory:
		return ResultDropped
	default:
		return ResultFailed
	}
}

// LogCall logs one D-Bus method call with its outcome. Successful calls
// are logged at info, rejected ones at warn and failures at error.
func (l *Logger) LogCall(ctx context.Context, id, method string, args map[string]any, from caller.Info, derr *dbus.Error) {
	result := Result(derr)
	attrs := []slog.Attr{
		slog.String("request_id", id),
		slog.String("method", method),
		slog.Any("caller", from),
		slog.String("result", result),
	}
	for k, v := range args {
		attrs = append(attrs, slog.Any(k, v))
	}

	level := slog.LevelInfo
	if derr != nil {
		attrs = append(attrs,
			slog.String("fault", derr.Name),
			slog.String("error", dbustypes.Message(derr)),
		)
		level = slog.LevelError
		if result == ResultRejected {
			level = slog.LevelWarn
		}
	}

	l.LogAttrs(ctx, level, "dbus_call", attrs...)
}
