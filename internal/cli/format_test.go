package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iczelia/k16brightd/internal/sysfs"
)

func TestFormatStatus_Table(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, false)

	err := f.FormatStatus(Status{
		CPUs: []sysfs.CPU{
			{Index: 0, Governor: "powersave", Available: []string{"performance", "powersave"}},
			{Index: 1, Governor: "performance"},
		},
		Backlights: []sysfs.Backlight{
			{Name: "intel_backlight", Brightness: 150, MaxBrightness: 200},
			{Name: "acpi_video0", Brightness: 3},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	mustContain(t, out, "CPU     GOVERNOR")
	mustContain(t, out, "performance powersave")
	mustContain(t, out, "intel_backlight")
	mustContain(t, out, "75%")
	mustNotContain(t, out, "No CPUs")

	// Unknown maximum is shown as a dash, not as 0.
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "acpi_video0") && !strings.HasSuffix(line, "-  -") {
			t.Errorf("acpi_video0 line = %q, want unknown max and percent", line)
		}
	}
}

func TestFormatStatus_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(&buf, false).FormatStatus(Status{}); err != nil {
		t.Fatal(err)
	}
	mustContain(t, buf.String(), "No CPUs with cpufreq")
	mustContain(t, buf.String(), "No backlight devices")
}

func TestFormatStatus_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(&buf, true).FormatStatus(Status{}); err != nil {
		t.Fatal(err)
	}
	var got map[string][]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if got["cpus"] == nil || got["backlights"] == nil {
		t.Errorf("empty lists encoded as null: %s", buf.String())
	}
}

func TestFormatAction(t *testing.T) {
	var buf bytes.Buffer
	NewFormatter(&buf, false).FormatAction("SetGovernor", "cpu0", "performance")
	if got := buf.String(); got != "SetGovernor cpu0: performance\n" {
		t.Errorf("text = %q", got)
	}

	buf.Reset()
	NewFormatter(&buf, true).FormatAction("SetBrightness", "intel_backlight", int32(5))
	mustContain(t, buf.String(), `"status":"ok"`)
	mustContain(t, buf.String(), `"value":5`)
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("a_very_long_backlight_name", 10); got != "a_very_lo…" {
		t.Errorf("truncate = %q", got)
	}
}

func mustContain(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected output to contain %q\nfull output:\n%s", substr, s)
	}
}

func mustNotContain(t *testing.T, s, substr string) {
	t.Helper()
	if strings.Contains(s, substr) {
		t.Errorf("expected output NOT to contain %q\nfull output:\n%s", substr, s)
	}
}
