//go:build !windows

package storage

import (
	"os"
	"syscall"
	"time"
)

// FileLock is an advisory flock(2) lock that keeps two processes from
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
		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
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
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	l.file = nil
	return nil
}
