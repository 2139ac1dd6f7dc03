// Package lock guards a working directory against concurrent installer runs.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// FileName is the lock file created in the guarded directory.
	FileName = "llob-install.lock"
	// StaleLockThreshold is the maximum age of a lock before it's considered stale.
	StaleLockThreshold = 10 * time.Minute
)

// heartbeatInterval is how often a held lock refreshes its modification time.
var heartbeatInterval = StaleLockThreshold / 4

// ErrLockExists is returned when another installer holds the lock.
var ErrLockExists = errors.New("install lock exists: another installer may be running")

// Lock represents a held install lock. While held, its modification time is
// refreshed in the background so a long but live run never looks stale.
type Lock struct {
	path string
	file *os.File

	stop chan struct{}
	wg   sync.WaitGroup
}

// AcquireLock takes the install lock in dir, creating dir if needed.
// Uses O_CREATE|O_EXCL for atomic lock creation. A lock older than
// StaleLockThreshold is removed and acquisition is retried once.
func AcquireLock(ctx context.Context, dir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, FileName)

	file, err := create(lockPath)
	if os.IsExist(err) {
		if stale, _ := isLockStale(lockPath); !stale {
			return nil, fmt.Errorf("%w (%s)", ErrLockExists, describeHolder(lockPath))
		}
		os.Remove(lockPath)
		file, err = create(lockPath)
		if os.IsExist(err) {
			return nil, ErrLockExists
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	lockData := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	l := &Lock{path: lockPath, file: file, stop: make(chan struct{})}
	l.wg.Add(1)
	go l.heartbeat()
	return l, nil
}

func (l *Lock) heartbeat() {
	defer l.wg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.touch()
		}
	}
}

// touch marks the lock as recently held.
func (l *Lock) touch() {
	now := time.Now()
	os.Chtimes(l.path, now, now)
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release releases the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.stop != nil {
		close(l.stop)
		l.wg.Wait()
		l.stop = nil
	}

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		path := l.path
		l.path = ""
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
	}

	return nil
}

func create(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
}

// isLockStale checks if a lock file is older than the stale lock threshold.
func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > StaleLockThreshold, nil
}

// describeHolder summarizes the lock file contents for error messages.
func describeHolder(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil || len(data) == 0 {
		return lockPath
	}
	return lockPath + ": " + strings.Join(strings.Fields(string(data)), " ")
}
