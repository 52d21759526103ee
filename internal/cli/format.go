package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iczelia/k16brightd/internal/sysfs"
)

// Status is the snapshot printed by the status command.
type Status struct {
	CPUs       []sysfs.CPU       `json:"cpus"`
	Backlights []sysfs.Backlight `json:"backlights"`
}

// Formatter outputs data as text tables or JSON.
type Formatter struct {
	w      io.Writer
	asJSON bool
}

// NewFormatter creates a new formatter.
func NewFormatter(w io.Writer, asJSON bool) *Formatter {
	return &Formatter{w: w, asJSON: asJSON}
}

// FormatStatus outputs CPU governors and backlight levels.
func (f *Formatter) FormatStatus(s Status) error {
	if f.asJSON {
		if s.CPUs == nil {
			s.CPUs = []sysfs.CPU{}
		}
		if s.Backlights == nil {
			s.Backlights = []sysfs.Backlight{}
		}
		return json.NewEncoder(f.w).Encode(s)
	}

	if len(s.CPUs) == 0 {
		fmt.Fprintln(f.w, "No CPUs with cpufreq")
	} else {
		fmt.Fprintf(f.w, "%-6s  %-14s  %s\n", "CPU", "GOVERNOR", "AVAILABLE")
		fmt.Fprintf(f.w, "%-6s  %-14s  %s\n", "------", "--------------", "---------")
		for _, cpu := range s.CPUs {
			fmt.Fprintf(f.w, "%-6d  %-14s  %s\n", cpu.Index, truncate(cpu.Governor, 14), strings.Join(cpu.Available, " "))
		}
	}

	fmt.Fprintln(f.w)

	if len(s.Backlights) == 0 {
		fmt.Fprintln(f.w, "No backlight devices")
		return nil
	}
	fmt.Fprintf(f.w, "%-24s  %10s  %10s  %s\n", "BACKLIGHT", "BRIGHTNESS", "MAX", "PERCENT")
	fmt.Fprintf(f.w, "%-24s  %10s  %10s  %s\n", "------------------------", "----------", "----------", "-------")
	for _, bl := range s.Backlights {
		fmt.Fprintf(f.w, "%-24s  %10d  %10s  %s\n", truncate(bl.Name, 24), bl.Brightness, formatMax(bl.MaxBrightness), percent(bl))
	}
	return nil
}

// FormatAction outputs the result of a successful set command.
func (f *Formatter) FormatAction(method, target string, value any) error {
	if f.asJSON {
		return json.NewEncoder(f.w).Encode(map[string]any{
			"status": "ok",
			"method": method,
			"target": target,
			"value":  value,
		})
	}
	fmt.Fprintf(f.w, "%s %s: %v\n", method, target, value)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "…"
}

func formatMax(v int64) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprint(v)
}

func percent(bl sysfs.Backlight) string {
	if bl.MaxBrightness <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d%%", bl.Brightness*100/bl.MaxBrightness)
}
