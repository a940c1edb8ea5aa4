// Package platform presents a uniform capability set over OS primitives:
// exclusive file creation, advisory locking, named shared memory, a
// monotonic clock, and process liveness checks. Higher layers never call
// os/syscall directly; they go through here so the compact error taxonomy
// in internal/ioerrors is the only failure contract they see.
package platform

import (
	"os"
	"path/filepath"

	"github.com/ocx/iceoryx2/internal/ioerrors"
)

// MaxPathLen bounds paths accepted by this package; longer paths fail with
// PathTooLong rather than being handed to the OS.
const MaxPathLen = 4096

// CreateExclusive creates path, failing with AlreadyExists semantics
// (mapped to ioerrors.Busy for the caller to retry as "someone else won the
// race") if it already exists.
func CreateExclusive(path string, perm os.FileMode) (*os.File, error) {
	if len(path) > MaxPathLen {
		return nil, ioerrors.New(ioerrors.PathTooLong, "CreateExclusive", nil)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, perm)
	if err != nil {
		return nil, translate("CreateExclusive", err)
	}
	return f, nil
}

// WriteAtomic writes data to path by writing a sibling temp file and
// renaming it into place, so concurrent readers never observe a partial
// write. The rename replaces any file already at path, so a concurrent
// writer's bytes are silently overwritten and no lost race is reported;
// WriteExclusive is the variant that detects an existing file.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	if len(path) > MaxPathLen {
		return ioerrors.New(ioerrors.PathTooLong, "WriteAtomic", nil)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return translate("WriteAtomic", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return translate("WriteAtomic", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return translate("WriteAtomic", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return translate("WriteAtomic", err)
	}
	if err := tmp.Close(); err != nil {
		return translate("WriteAtomic", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return translate("WriteAtomic", err)
	}
	return nil
}

// WriteExclusive writes data to path, succeeding only if path did not
// already exist: it writes a sibling temp file, then links it into place
// (rather than renaming, which would silently replace an existing file)
// so a concurrent writer that already published path is detected and
// reported as ioerrors.Busy instead of having its bytes overwritten.
func WriteExclusive(path string, data []byte, perm os.FileMode) error {
	if len(path) > MaxPathLen {
		return ioerrors.New(ioerrors.PathTooLong, "WriteExclusive", nil)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return translate("WriteExclusive", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once linked

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return translate("WriteExclusive", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return translate("WriteExclusive", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return translate("WriteExclusive", err)
	}
	if err := tmp.Close(); err != nil {
		return translate("WriteExclusive", err)
	}
	if err := os.Link(tmpPath, path); err != nil {
		return translate("WriteExclusive", err)
	}
	return nil
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return translate("EnsureDir", err)
	}
	return nil
}

// Remove deletes path. An already-gone path is reported as
// ioerrors.AlreadyRemoved, which ioerrors.IsIdempotentSuccess treats as
// success (idempotent cleanup).
func Remove(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ioerrors.New(ioerrors.AlreadyRemoved, "Remove", err)
		}
		return translate("Remove", err)
	}
	return nil
}

// ReadFile is a thin wrapper so callers stay inside the platform package's
// error taxonomy.
func ReadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, translate("ReadFile", err)
	}
	return b, nil
}
