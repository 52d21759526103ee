// Package validate checks request fields before any filesystem access.
//
// Every function here is pure: it looks only at its arguments. Callers
// map the returned errors onto InvalidArgs faults.
package validate

import (
	"errors"
	"fmt"
)

// Limits on request fields.
const (
	MaxCPUIndex         = 4096
	MaxGovernorLen      = 32
	MaxBacklightNameLen = 64
)

var (
	ErrCPUOutOfRange    = errors.New("cpu out of range")
	ErrInvalidGovernor  = errors.New("invalid governor")
	ErrInvalidBacklight = errors.New("invalid backlight name")
)

// RangeError reports a brightness level outside 0..Max.
// Max is 0 when the device maximum is unknown.
type RangeError struct {
	Level int32
	Max   int32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("brightness out of range 0..%d", e.Max)
}

// CPUIndex accepts 0 ≤ cpu ≤ MaxCPUIndex.
func CPUIndex(cpu int32) error {
	if cpu < 0 || cpu > MaxCPUIndex {
		return ErrCPUOutOfRange
	}
	return nil
}

// GovernorName accepts 1..MaxGovernorLen bytes of [A-Za-z_].
func GovernorName(name string) error {
	if !matches(name, MaxGovernorLen, isGovernorByte) {
		return ErrInvalidGovernor
	}
	return nil
}

// BacklightName accepts 1..MaxBacklightNameLen bytes of [A-Za-z0-9_-].
// Separators such as '/' and '.' are rejected, so the name can always be
// joined below the backlight class directory as a single component.
func BacklightName(name string) error {
	if !matches(name, MaxBacklightNameLen, isBacklightByte) {
		return ErrInvalidBacklight
	}
	return nil
}

// Brightness accepts level ≥ 0, and level ≤ max when max > 0.
func Brightness(level, max int32) error {
	if level < 0 || (max > 0 && level > max) {
		return &RangeError{Level: level, Max: max}
	}
	return nil
}

// matches works on bytes: any multi-byte UTF-8 sequence contains bytes
// outside the allowed ASCII sets and is rejected.
func matches(s string, maxLen int, allowed func(byte) bool) bool {
	if len(s) == 0 || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !allowed(s[i]) {
			return false
		}
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isGovernorByte(c byte) bool {
	return isLetter(c) || c == '_'
}

func isBacklightByte(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_' || c == '-'
}
