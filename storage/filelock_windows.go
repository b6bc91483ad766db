//go:build windows

package storage

import (
	"os"
	"time"

	"golang.org/x/sys/windows"
)

// FileLock is an advisory LockFileEx lock that keeps two processes from
// writing the same store file.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock prepares a lock on path + ".lock". Nothing is acquired yet.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Lock acquires the lock, giving up with ErrLockTimeout after timeout.
func (l *FileLock) Lock(timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return &StorageError{Op: "lock", Entity: "file", ID: l.path, Err: err}
	}

	deadline := time.Now().Add(timeout)
	for {
		var ol windows.Overlapped
		err := windows.LockFileEx(windows.Handle(f.Fd()),
			windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, &ol)
		if err == nil {
			l.file = f
			return nil
		}
		if time.Now().After(deadline) {
			f.Close()
			return &StorageError{Op: "lock", Entity: "file", ID: l.path, Err: ErrLockTimeout}
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Unlock releases the lock. The lock file stays so that every process
// locks the same inode.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	var ol windows.Overlapped
	windows.UnlockFileEx(windows.Handle(l.file.Fd()), 0, 1, 0, &ol)
	l.file.Close()
	l.file = nil
	return nil
}
