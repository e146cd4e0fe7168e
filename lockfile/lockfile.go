// Package lockfile implements csvtrans.lock — a run lock on the output
// tree so two concurrent csvtrans invocations cannot interleave writes
// into the same output area.
//
// The lock records the owning PID. A lock whose owner is gone is stale
// and gets taken over instead of blocking forever after a crash.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is the lock file name inside the output directory.
const LockFileName = "csvtrans.lock"

// ErrLocked reports that another live csvtrans process owns the lock.
var ErrLocked = errors.New("output directory locked by another csvtrans run")

// Lock is a held run lock.
type Lock struct {
	path string
}

// Acquire takes the run lock for the given output directory, creating the
// directory if needed. A stale lock (owner process gone) is replaced.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, LockFileName)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}

		pid, readErr := readOwner(path)
		if readErr == nil && processAlive(pid) {
			return nil, fmt.Errorf("%w (pid %d)", ErrLocked, pid)
		}
		// Stale or unreadable lock: remove and retry once.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale lock %s: %w", path, err)
		}
	}
	return nil, fmt.Errorf("%w", ErrLocked)
}

// Release removes the lock. Safe to call on an already-released lock.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// Path returns the lock file location, empty after release.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// readOwner parses the PID stored in a lock file.
func readOwner(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// processAlive reports whether a PID refers to a live process we could
// signal. Signal 0 performs the existence check without side effects.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
