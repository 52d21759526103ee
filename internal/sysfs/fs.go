package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultRoot is where sysfs is mounted.
const DefaultRoot = "/sys"

// FS builds attribute paths below a sysfs root.
type FS struct {
	root string
}

// New returns an FS rooted at root, or at DefaultRoot when root is empty.
func New(root string) *FS {
	if root == "" {
		root = DefaultRoot
	}
	return &FS{root: root}
}

// Root returns the sysfs root directory.
func (fs *FS) Root() string { return fs.root }

func (fs *FS) cpuDir() string {
	return filepath.Join(fs.root, "devices", "system", "cpu")
}

func (fs *FS) backlightClassDir() string {
	return filepath.Join(fs.root, "class", "backlight")
}

// GovernorPath returns the scaling_governor attribute of a CPU.
func (fs *FS) GovernorPath(cpu int32) string {
	return filepath.Join(fs.cpuDir(), fmt.Sprintf("cpu%d", cpu), "cpufreq", "scaling_governor")
}

// BacklightDir returns the directory of a backlight device.
// name must already have passed validate.BacklightName.
func (fs *FS) BacklightDir(name string) string {
	return filepath.Join(fs.backlightClassDir(), name)
}

// MaxBrightnessPath returns the max_brightness attribute below a device directory.
func MaxBrightnessPath(dir string) string {
	return filepath.Join(dir, "max_brightness")
}

// BrightnessPath returns the brightness attribute below a device directory.
func BrightnessPath(dir string) string {
	return filepath.Join(dir, "brightness")
}

// CPU describes the frequency scaling state of one CPU.
type CPU struct {
	Index     int      `json:"index"`
	Governor  string   `json:"governor"`
	Available []string `json:"available_governors,omitempty"`
}

// Backlight describes one backlight device.
type Backlight struct {
	Name          string `json:"name"`
	Brightness    int64  `json:"brightness"`
	MaxBrightness int64  `json:"max_brightness"`
}

// CPUs lists CPUs that expose cpufreq, ordered by index. A missing cpu
// directory yields an empty list.
func (fs *FS) CPUs() ([]CPU, error) {
	entries, err := os.ReadDir(fs.cpuDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cpu dir: %w", err)
	}

	var cpus []CPU
	for _, e := range entries {
		idx, ok := cpuIndex(e.Name())
		if !ok {
			continue
		}
		freqDir := filepath.Join(fs.cpuDir(), e.Name(), "cpufreq")
		gov, err := ReadString(filepath.Join(freqDir, "scaling_governor"))
		if err != nil {
			// Offline CPUs and systems without cpufreq have no governor.
			continue
		}
		cpu := CPU{Index: idx, Governor: gov}
		if avail, err := ReadString(filepath.Join(freqDir, "scaling_available_governors")); err == nil {
			cpu.Available = strings.Fields(avail)
		}
		cpus = append(cpus, cpu)
	}
	sort.Slice(cpus, func(i, j int) bool { return cpus[i].Index < cpus[j].Index })
	return cpus, nil
}

func cpuIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "cpu")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Backlights lists backlight devices ordered by name. Devices whose
// attributes cannot be read are reported with zero values.
func (fs *FS) Backlights() ([]Backlight, error) {
	entries, err := os.ReadDir(fs.backlightClassDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backlight dir: %w", err)
	}

	var out []Backlight
	for _, e := range entries {
		dir := fs.BacklightDir(e.Name())
		bl := Backlight{Name: e.Name()}
		bl.Brightness, _ = ReadInt(BrightnessPath(dir))
		bl.MaxBrightness, _ = ReadInt(MaxBrightnessPath(dir))
		out = append(out, bl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Exists reports whether path can be stat'ed.
func (fs *FS) Exists(path string) bool { return Exists(path) }

// ReadInt reads the leading integer of an attribute file.
func (fs *FS) ReadInt(path string) (int64, error) { return ReadInt(path) }

// WriteString writes s to an attribute file.
func (fs *FS) WriteString(path, s string) error { return WriteString(path, s) }

// WriteInt writes v and a newline to an attribute file.
func (fs *FS) WriteInt(path string, v int) error { return WriteInt(path, v) }
