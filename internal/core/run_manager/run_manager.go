// Package run_manager keeps the runtime directory of a running client: a temp directory
// named after the instance id that holds the run.lock file.
package run_manager

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gopkg.in/ini.v1"
)

const (
	LockFileName = "run.lock"
	dirSuffix    = "cortexlink-runtime"
)

// Lock is the content of run.lock.
type Lock struct {
	PID        int    `ini:"pid"`
	Version    string `ini:"version"`
	InstanceID string `ini:"instance"`
	URL        string `ini:"url"`
	Started    string `ini:"timestamp"`
	StartedAt  int64  `ini:"timestamp-unix"`
}

type Manager struct {
	base       string
	instanceID string
	dir        string
}

// New returns a manager creating its directory under base (os.TempDir when empty).
func New(base, instanceID string) *Manager {
	if base == "" {
		base = os.TempDir()
	}
	return &Manager{base: base, instanceID: instanceID}
}

func (m *Manager) pattern() string {
	return fmt.Sprintf("*-%s-%s", m.instanceID, dirSuffix)
}

// Create makes the runtime directory.
func (m *Manager) Create() (string, error) {
	if m.dir != "" {
		return m.dir, fmt.Errorf("runtime directory is already created")
	}
	path, err := os.MkdirTemp(m.base, m.pattern())
	if err != nil {
		return "", err
	}
	m.dir = path
	return path, nil
}

func (m *Manager) Dir() string {
	return m.dir
}

// Others lists runtime directories of the same instance that are still held by a live
// process, excluding this manager's own.
func (m *Manager) Others() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(m.base, m.pattern()))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, dir := range matches {
		if dir == m.dir {
			continue
		}
		lock, err := ReadLock(filepath.Join(dir, LockFileName))
		if err != nil || !alive(lock.PID) {
			continue
		}
		out = append(out, dir)
	}
	slices.Sort(out)
	return out, nil
}

// WriteLock stores lock as run.lock in the runtime directory.
func (m *Manager) WriteLock(lock *Lock) error {
	if m.dir == "" {
		return fmt.Errorf("runtime directory is not created")
	}
	f := ini.Empty()
	sec, err := f.NewSection("runtime")
	if err != nil {
		return err
	}
	if err := sec.ReflectFrom(lock); err != nil {
		return err
	}
	return f.SaveTo(filepath.Join(m.dir, LockFileName))
}

func ReadLock(path string) (*Lock, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	lock := &Lock{}
	if err := f.Section("runtime").MapTo(lock); err != nil {
		return nil, err
	}
	return lock, nil
}

// Clean removes the runtime directory.
func (m *Manager) Clean() error {
	if m.dir == "" {
		return nil
	}
	dir := m.dir
	m.dir = ""
	return os.RemoveAll(dir)
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	return err == nil || pid == os.Getpid()
}
