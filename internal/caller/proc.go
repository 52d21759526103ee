package caller

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultProcRoot is where procfs is mounted.
const DefaultProcRoot = "/proc"

var shells = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "fish": true,
	"dash": true, "csh": true, "tcsh": true, "ksh": true,
}

// IsShell reports whether comm names a known shell.
func IsShell(comm string) bool {
	return shells[comm]
}

// procfs reads process metadata below a procfs root.
type procfs string

func (p procfs) comm(pid uint32) string {
	data, err := os.ReadFile(filepath.Join(string(p), strconv.FormatUint(uint64(pid), 10), "comm"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ppid parses the fourth field of /proc/<pid>/stat. The comm field may
// contain spaces and parentheses, so parsing starts after the last ')'.
func (p procfs) ppid(pid uint32) uint32 {
	data, err := os.ReadFile(filepath.Join(string(p), strconv.FormatUint(uint64(pid), 10), "stat"))
	if err != nil {
		return 0
	}
	s := string(data)
	i := strings.LastIndexByte(s, ')')
	if i < 0 || i+2 >= len(s) {
		return 0
	}
	fields := strings.Fields(s[i+2:])
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// invoker walks up from pid, skipping shells, and returns the first
// non-shell ancestor (or pid itself). It returns ("", 0) when pid cannot
// be read.
func (p procfs) invoker(pid uint32) (string, uint32) {
	comm := p.comm(pid)
	if comm == "" {
		return "", 0
	}
	if !IsShell(comm) {
		return comm, pid
	}
	for q := p.ppid(pid); q > 1; q = p.ppid(q) {
		c := p.comm(q)
		if c == "" {
			break
		}
		if !IsShell(c) {
			return c, q
		}
	}
	return comm, pid
}
