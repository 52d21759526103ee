// Package testutil provides test fixtures: a fake sysfs tree and a private
// dbus-daemon with a system-bus style policy.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FakeSysfs is a temporary directory laid out like the parts of sysfs the
// daemon touches.
type FakeSysfs struct {
	Root string
}

// NewFakeSysfs creates an empty fake sysfs tree under t.TempDir().
func NewFakeSysfs(t *testing.T) *FakeSysfs {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{
		filepath.Join(root, "devices", "system", "cpu"),
		filepath.Join(root, "class", "backlight"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create %s: %v", dir, err)
		}
	}
	return &FakeSysfs{Root: root}
}

// GovernorPath returns the scaling_governor file of cpu.
func (f *FakeSysfs) GovernorPath(cpu int) string {
	return filepath.Join(f.Root, "devices", "system", "cpu", fmt.Sprintf("cpu%d", cpu), "cpufreq", "scaling_governor")
}

// AddCPU creates cpu<idx>/cpufreq with the given current governor and
// available governors.
func (f *FakeSysfs) AddCPU(t *testing.T, idx int, governor string, available ...string) string {
	t.Helper()
	path := f.GovernorPath(idx)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create %s: %v", dir, err)
	}
	writeFile(t, path, governor+"\n")
	if len(available) > 0 {
		writeFile(t, filepath.Join(dir, "scaling_available_governors"), strings.Join(available, " ")+"\n")
	}
	return path
}

// BacklightDir returns the directory of backlight device name.
func (f *FakeSysfs) BacklightDir(name string) string {
	return filepath.Join(f.Root, "class", "backlight", name)
}

// AddBacklight creates a backlight device. maxBrightness is written
// verbatim so tests can plant malformed values.
func (f *FakeSysfs) AddBacklight(t *testing.T, name, maxBrightness string, brightness int) string {
	t.Helper()
	dir := f.BacklightDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create %s: %v", dir, err)
	}
	if maxBrightness != "" {
		writeFile(t, filepath.Join(dir, "max_brightness"), maxBrightness)
	}
	writeFile(t, filepath.Join(dir, "brightness"), fmt.Sprintf("%d\n", brightness))
	return dir
}

// Read returns the content of a file, failing the test if it is missing.
func (f *FakeSysfs) Read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
