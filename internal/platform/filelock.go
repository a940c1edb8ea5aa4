package platform

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/ocx/iceoryx2/internal/ioerrors"
)

// FileLock is an advisory, per-file OS lock used both to signal node
// liveness (a node holds its own node-file locked for as long as it is
// alive) and to guard dynamic-config critical sections.
type FileLock struct {
	f *os.File
}

// OpenLock opens (creating if necessary) path and returns an unlocked
// FileLock handle over it.
func OpenLock(path string) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, translate("OpenLock", err)
	}
	return &FileLock{f: f}, nil
}

// TryLock attempts a non-blocking exclusive lock. A failure because
// another process holds the lock is reported as ioerrors.Busy, never a
// panic or a blocking wait — this is what the dead-node reaper relies on
// to distinguish "alive" from "dead".
func (l *FileLock) TryLock() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if err == unix.EWOULDBLOCK {
			return ioerrors.New(ioerrors.Busy, "TryLock", err)
		}
		return translate("TryLock", err)
	}
	return nil
}

// Lock blocks until the exclusive lock is acquired.
func (l *FileLock) Lock() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX); err != nil {
		return translate("Lock", err)
	}
	return nil
}

// Unlock releases the lock without closing the underlying file.
func (l *FileLock) Unlock() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		return translate("Unlock", err)
	}
	return nil
}

// Close releases the lock (if held) and closes the file.
func (l *FileLock) Close() error {
	_ = l.Unlock()
	return l.f.Close()
}

// Path returns the locked file's path on disk.
func (l *FileLock) Path() string { return l.f.Name() }

// WriteAt writes data starting at offset 0, truncating any previous
// content — used to (re)write a node/dynamic-config file's body while its
// lock is held.
func (l *FileLock) WriteAt(data []byte) (int, error) {
	if err := l.f.Truncate(int64(len(data))); err != nil {
		return 0, translate("WriteAt", err)
	}
	n, err := l.f.WriteAt(data, 0)
	if err != nil {
		return n, translate("WriteAt", err)
	}
	return n, nil
}

// ReadAll reads the full current content of the locked file.
func (l *FileLock) ReadAll() ([]byte, error) {
	info, err := l.f.Stat()
	if err != nil {
		return nil, translate("ReadAll", err)
	}
	buf := make([]byte, info.Size())
	if _, err := l.f.ReadAt(buf, 0); err != nil {
		return nil, translate("ReadAll", err)
	}
	return buf, nil
}
