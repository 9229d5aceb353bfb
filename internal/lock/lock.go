// Package lock guarantees a single pipeline run at a time.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("another run is in progress")

// HeldError is returned by Acquire when another process owns the lock.
type HeldError struct {
	PID     int  // 0 when unknown
	Running bool // whether PID is alive
}

func (e *HeldError) Error() string {
	if e.PID == 0 {
		return ErrLocked.Error()
	}
	if !e.Running {
		return fmt.Sprintf("%s (pid %d, not responding)", ErrLocked, e.PID)
	}
	return fmt.Sprintf("%s (pid %d)", ErrLocked, e.PID)
}

func (e *HeldError) Unwrap() error { return ErrLocked }

// RunLock is an exclusive, non-blocking file lock with a PID sidecar at
// <path>.pid for diagnostics.
type RunLock struct {
	fl  *flock.Flock
	pid *PIDFile
}

// New creates a RunLock for path. Nothing is touched until Acquire.
func New(path string) *RunLock {
	return &RunLock{
		fl:  flock.New(path),
		pid: NewPIDFile(path + ".pid"),
	}
}

// Path returns the lock file path.
func (l *RunLock) Path() string { return l.fl.Path() }

// Acquire takes the lock without waiting. If another process holds it the
// error wraps ErrLocked and, when known, names that process.
func (l *RunLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	locked, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", l.fl.Path(), err)
	}
	if !locked {
		pid, running := l.pid.IsRunning()
		return &HeldError{PID: pid, Running: running}
	}

	if err := l.pid.Write(); err != nil {
		_ = l.fl.Unlock()
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release drops the lock and removes the lock and PID files. It is a no-op
// when this process does not hold the lock.
func (l *RunLock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	pidErr := l.pid.Remove()
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", l.fl.Path(), err)
	}
	if err := os.Remove(l.fl.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	if pidErr != nil && !errors.Is(pidErr, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", pidErr)
	}
	return nil
}
