package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestCPUIndex(t *testing.T) {
	tests := []struct {
		cpu  int32
		want error
	}{
		{0, nil},
		{1, nil},
		{4095, nil},
		{4096, nil},
		{-1, ErrCPUOutOfRange},
		{4097, ErrCPUOutOfRange},
		{9999, ErrCPUOutOfRange},
		{-2147483648, ErrCPUOutOfRange},
	}
	for _, tt := range tests {
		if got := CPUIndex(tt.cpu); got != tt.want {
			t.Errorf("CPUIndex(%d) = %v, want %v", tt.cpu, got, tt.want)
		}
	}
}

func TestGovernorName(t *testing.T) {
	valid := []string{
		"performance",
		"powersave",
		"schedutil",
		"on_demand",
		"_",
		"A",
		strings.Repeat("x", MaxGovernorLen),
	}
	for _, name := range valid {
		if err := GovernorName(name); err != nil {
			t.Errorf("GovernorName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",
		strings.Repeat("x", MaxGovernorLen+1),
		"performance\n",
		"power save",
		"conservative2",
		"../../x",
		"a-b",
		"a.b",
		"perf\x00ormance",
		"perförmance",
	}
	for _, name := range invalid {
		if err := GovernorName(name); !errors.Is(err, ErrInvalidGovernor) {
			t.Errorf("GovernorName(%q) = %v, want ErrInvalidGovernor", name, err)
		}
	}
}

func TestBacklightName(t *testing.T) {
	valid := []string{
		"intel_backlight",
		"acpi_video0",
		"amdgpu_bl1",
		"nv-backlight",
		"0",
		strings.Repeat("a", MaxBacklightNameLen),
	}
	for _, name := range valid {
		if err := BacklightName(name); err != nil {
			t.Errorf("BacklightName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",
		strings.Repeat("a", MaxBacklightNameLen+1),
		"../../etc",
		"..",
		".",
		"intel/backlight",
		"intel.backlight",
		"/etc/passwd",
		"intel backlight",
		"intel\\backlight",
	}
	for _, name := range invalid {
		if err := BacklightName(name); !errors.Is(err, ErrInvalidBacklight) {
			t.Errorf("BacklightName(%q) = %v, want ErrInvalidBacklight", name, err)
		}
	}
}

func TestBrightness(t *testing.T) {
	tests := []struct {
		level, max int32
		ok         bool
	}{
		{0, 200, true},
		{150, 200, true},
		{200, 200, true},
		{201, 200, false},
		{-1, 200, false},
		// Unknown maximum: only the lower bound applies.
		{100000, 0, true},
		{0, 0, true},
		{-1, 0, false},
		// A negative maximum is treated as unknown.
		{5, -3, true},
	}
	for _, tt := range tests {
		err := Brightness(tt.level, tt.max)
		if tt.ok && err != nil {
			t.Errorf("Brightness(%d, %d) = %v, want nil", tt.level, tt.max, err)
		}
		if !tt.ok {
			var re *RangeError
			if !errors.As(err, &re) {
				t.Errorf("Brightness(%d, %d) = %v, want *RangeError", tt.level, tt.max, err)
				continue
			}
			if re.Max != tt.max {
				t.Errorf("RangeError.Max = %d, want %d", re.Max, tt.max)
			}
		}
	}
}

func TestRangeErrorMessage(t *testing.T) {
	err := Brightness(300, 200)
	if got, want := err.Error(), "brightness out of range 0..200"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	err = Brightness(-1, 0)
	if got, want := err.Error(), "brightness out of range 0..0"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
