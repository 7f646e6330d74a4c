package audit

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// DataSource is the abstract evidence source every Check reads
// through; the Auditor never touches the filesystem directly. The
// production implementation maps every operation to Linux pseudo
// filesystems, except the synthetic "uname.<field>" paths, which come
// from uname(2); tests use an in-memory map instead.
type DataSource interface {
	// Read returns the contents of path and true, or false if the path
	// does not exist or cannot be read.
	Read(path string) (string, bool)
	// CmdlineParam returns the value of key from /proc/cmdline (empty
	// string, true for a bare boolean flag), or false if key is absent.
	CmdlineParam(key string) (string, bool)
	// List returns the entry names directly under dir and true, or
	// false if dir does not exist or cannot be listed.
	List(dir string) ([]string, bool)
}

// maxFileSize bounds how much of any one pseudo-file is read, so a
// misbehaving virtual file can never cause unbounded memory growth.
const maxFileSize = 1 << 20

// SystemFileSystemDataSource is the production DataSource, reading
// real /proc and /sys pseudo-files.
type SystemFileSystemDataSource struct{}

// unameFields exposes the handful of uname(2) fields Checks consult,
// addressed as synthetic "uname.<field>" paths so every Check reads
// evidence through the same Read interface, real files and kernel
// identity alike.
func unameFields() (map[string]string, bool) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return nil, false
	}
	toStr := func(b [65]byte) string {
		n := 0
		for n < len(b) && b[n] != 0 {
			n++
		}
		return string(b[:n])
	}
	return map[string]string{
		"uname.sysname":  toStr(u.Sysname),
		"uname.nodename": toStr(u.Nodename),
		"uname.release":  toStr(u.Release),
		"uname.version":  toStr(u.Version),
		"uname.machine":  toStr(u.Machine),
	}, true
}

func (SystemFileSystemDataSource) Read(path string) (string, bool) {
	if strings.HasPrefix(path, "uname.") {
		fields, ok := unameFields()
		if !ok {
			return "", false
		}
		v, ok := fields[path]
		return v, ok
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	if len(data) > maxFileSize {
		data = data[:maxFileSize]
	}
	return string(data), true
}

func (SystemFileSystemDataSource) List(dir string) ([]string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, true
}

func (s SystemFileSystemDataSource) CmdlineParam(key string) (string, bool) {
	cmdline, ok := s.Read("/proc/cmdline")
	if !ok {
		return "", false
	}
	for _, tok := range strings.Fields(cmdline) {
		if eq := strings.IndexByte(tok, '='); eq >= 0 {
			if tok[:eq] == key {
				return tok[eq+1:], true
			}
			continue
		}
		if tok == key {
			return "", true
		}
	}
	return "", false
}

// MemoryDataSource is the in-memory DataSource fake used by tests: a
// pure map, never touching the real filesystem.
type MemoryDataSource struct {
	Files   map[string]string
	Cmdline map[string]string
	Dirs    map[string][]string
}

// NewMemoryDataSource constructs an empty fake.
func NewMemoryDataSource() *MemoryDataSource {
	return &MemoryDataSource{
		Files:   make(map[string]string),
		Cmdline: make(map[string]string),
		Dirs:    make(map[string][]string),
	}
}

func (m *MemoryDataSource) Read(path string) (string, bool) {
	v, ok := m.Files[path]
	return v, ok
}

func (m *MemoryDataSource) CmdlineParam(key string) (string, bool) {
	v, ok := m.Cmdline[key]
	return v, ok
}

func (m *MemoryDataSource) List(dir string) ([]string, bool) {
	v, ok := m.Dirs[dir]
	return v, ok
}
