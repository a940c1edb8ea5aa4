package platform

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/ocx/iceoryx2/internal/ioerrors"
)

// SharedMemory is a named shared-memory object backed by a regular file
// under the registry's segments/ directory, mapped MAP_SHARED so every process that opens the same path
// observes the same bytes. Segments are addressed exclusively by path
// (which encodes the segment-id) and offset, never by the mapped address,
// so that a remap at a different virtual address never invalidates a descriptor.
type SharedMemory struct {
	f    *os.File
	data []byte
}

// CreateSharedMemory creates (or truncates) the backing file at path to
// size bytes and maps it read-write.
func CreateSharedMemory(path string, size int) (*SharedMemory, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, translate("CreateSharedMemory", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, translate("CreateSharedMemory", err)
	}
	return mapFile(f, size)
}

// OpenSharedMemory maps an existing segment file read-write at its current
// size, determined via stat.
func OpenSharedMemory(path string) (*SharedMemory, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, translate("OpenSharedMemory", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, translate("OpenSharedMemory", err)
	}
	return mapFile(f, int(info.Size()))
}

func mapFile(f *os.File, size int) (*SharedMemory, error) {
	if size == 0 {
		// mmap of a zero-length region is undefined; callers always size
		// segments before mapping.
		f.Close()
		return nil, ioerrors.New(ioerrors.UnexpectedOsError, "mapFile", nil)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, translate("mapFile", err)
	}
	return &SharedMemory{f: f, data: data}, nil
}

// Bytes returns the mapped region. Callers treat offsets into it as stable
// for the lifetime of this SharedMemory value; a Grow produces a new
// SharedMemory and a new SegmentId rather than mutating this one in place.
func (s *SharedMemory) Bytes() []byte { return s.data }

// Close unmaps and closes the backing file. It does not delete the file —
// segment files are reclaimed by the registry once every accounted
// reference is released.
func (s *SharedMemory) Close() error {
	err := unix.Munmap(s.data)
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return translate("Close", err)
	}
	return nil
}
