package power

import (
	"errors"
	"math"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	dbustypes "github.com/iczelia/k16brightd/internal/dbus"
	"github.com/iczelia/k16brightd/internal/sysfs"
	"github.com/iczelia/k16brightd/internal/validate"
)

// Attrs is the attribute file access used by Service. *sysfs.FS
// implements it.
type Attrs interface {
	GovernorPath(cpu int32) string
	BacklightDir(name string) string
	Exists(path string) bool
	ReadInt(path string) (int64, error)
	WriteString(path, s string) error
	WriteInt(path string, v int) error
}

// Service is the Handler that validates requests and performs the writes.
type Service struct {
	attrs Attrs
}

// NewService creates a Service writing through attrs.
func NewService(attrs Attrs) *Service {
	return &Service{attrs: attrs}
}

// SetGovernor validates the request, checks that the CPU exposes a
// scaling governor and writes the name without a trailing newline.
func (s *Service) SetGovernor(req SetGovernor) *dbus.Error {
	if err := validate.CPUIndex(req.CPU); err != nil {
		return dbustypes.InvalidArgs("%s", err)
	}
	if err := validate.GovernorName(req.Governor); err != nil {
		return dbustypes.InvalidArgs("%s", err)
	}

	path := s.attrs.GovernorPath(req.CPU)
	if !s.attrs.Exists(path) {
		return dbustypes.Failed("path not found: %s", path)
	}

	if err := s.attrs.WriteString(path, req.Governor); err != nil {
		return writeFailed(err)
	}
	return nil
}

// SetBrightness validates the device name, bounds the level by the
// device's max_brightness (read fresh on every call) and writes it.
func (s *Service) SetBrightness(req SetBrightness) *dbus.Error {
	if err := validate.BacklightName(req.Device); err != nil {
		return dbustypes.InvalidArgs("%s", err)
	}

	dir := s.attrs.BacklightDir(req.Device)
	if !s.attrs.Exists(dir) {
		return dbustypes.Failed("backlight not found: %s", req.Device)
	}

	if err := validate.Brightness(req.Level, s.maxBrightness(dir)); err != nil {
		return dbustypes.InvalidArgs("%s", err)
	}

	if err := s.attrs.WriteInt(sysfs.BrightnessPath(dir), int(req.Level)); err != nil {
		return writeFailed(err)
	}
	return nil
}

// maxBrightness returns 0 (unknown) when max_brightness is unreadable or
// not a number.
func (s *Service) maxBrightness(dir string) int32 {
	v, err := s.attrs.ReadInt(sysfs.MaxBrightnessPath(dir))
	if err != nil {
		return 0
	}
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < 0:
		return 0
	}
	return int32(v)
}

func writeFailed(err error) *dbus.Error {
	var serr *sysfs.Error
	if errors.As(err, &serr) {
		return dbustypes.Failed("write failed: %s (%d)", serr.Reason(), serr.Code())
	}
	return dbustypes.Failed("write failed: %s (%d)", err, -int(unix.EIO))
}
