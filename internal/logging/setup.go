package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Formats accepted by NewHandler.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel parses a level name (debug, info, warn, error). Empty means
// info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// underSystemd reports whether the process was started by systemd, which
// adds its own timestamps to the journal.
func underSystemd() bool {
	return os.Getenv("INVOCATION_ID") != ""
}

// NewHandler returns the slog handler for format, writing to w and
// filtering by level.
func NewHandler(format string, level *slog.LevelVar, w io.Writer) (slog.Handler, error) {
	switch format {
	case "", FormatText:
		opts := &tint.Options{Level: level, TimeFormat: time.TimeOnly}
		if underSystemd() {
			opts.NoColor = true
			opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.Attr{}
				}
				return a
			}
		}
		return tint.NewHandler(w, opts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
