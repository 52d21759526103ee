// Package sysfs reads and writes kernel attribute files.
//
// The write primitives make exactly one attempt and report failures as
// *Error values carrying the errno of the failing syscall.
package sysfs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Error is a failed attribute file operation.
type Error struct {
	Op    string // "open", "write", "close" or "read"
	Path  string
	Errno unix.Errno
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Errno.Error())
}

func (e *Error) Unwrap() error { return e.Errno }

// Code returns the negated errno, e.g. -13 for EACCES.
func (e *Error) Code() int { return -int(e.Errno) }

// Reason returns the OS error text for the errno.
func (e *Error) Reason() string { return e.Errno.Error() }

func errnoOf(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EIO
}

// WriteString opens path for writing (create, truncate), writes s in full
// and closes it. A failure at any stage is returned; a write that makes no
// progress is reported as EIO rather than silently truncating s.
func WriteString(path, s string) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC|unix.O_CLOEXEC|unix.O_NOFOLLOW, 0o644)
	if err != nil {
		return &Error{Op: "open", Path: path, Errno: errnoOf(err)}
	}

	buf := []byte(s)
	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if err != nil {
			unix.Close(fd) //nolint:errcheck
			return &Error{Op: "write", Path: path, Errno: errnoOf(err)}
		}
		if n <= 0 {
			unix.Close(fd) //nolint:errcheck
			return &Error{Op: "write", Path: path, Errno: unix.EIO}
		}
		buf = buf[n:]
	}

	// Attribute stores may only report their error at close.
	if err := unix.Close(fd); err != nil {
		return &Error{Op: "close", Path: path, Errno: errnoOf(err)}
	}
	return nil
}

// WriteInt writes v followed by a newline.
func WriteInt(path string, v int) error {
	return WriteString(path, strconv.Itoa(v)+"\n")
}

// Exists reports whether path can be stat'ed.
func Exists(path string) bool {
	var st unix.Stat_t
	return unix.Stat(path, &st) == nil
}

// ReadInt reads the leading decimal integer of an attribute file.
// Leading whitespace and an optional sign are accepted; trailing data
// after the digits is ignored.
func ReadInt(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &Error{Op: "read", Path: path, Errno: errnoOf(err)}
	}
	v, err := parseLeadingInt(string(data))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// ReadString reads an attribute file with surrounding whitespace removed.
func ReadString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{Op: "read", Path: path, Errno: errnoOf(err)}
	}
	return strings.TrimSpace(string(data)), nil
}

var errNoDigits = errors.New("no integer found")

func parseLeadingInt(s string) (int64, error) {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	start := i
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digits {
		return 0, errNoDigits
	}
	return strconv.ParseInt(s[start:i], 10, 64)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
