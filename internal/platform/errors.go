package platform

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/ocx/iceoryx2/internal/ioerrors"
)

// translate maps a raw OS error into the core's compact error taxonomy.
// Anything it doesn't recognise becomes UnexpectedOsError, 
// section 4.A's failure contract.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if os.IsPermission(err) {
		return ioerrors.New(ioerrors.Permission, op, err)
	}
	if os.IsNotExist(err) {
		return ioerrors.New(ioerrors.NodeNotFound, op, err)
	}
	if os.IsExist(err) {
		return ioerrors.New(ioerrors.Busy, op, err)
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM:
			return ioerrors.New(ioerrors.Permission, op, err)
		case syscall.ENOENT:
			return ioerrors.New(ioerrors.NodeNotFound, op, err)
		case syscall.EEXIST:
			return ioerrors.New(ioerrors.Busy, op, err)
		case syscall.ENOSPC, syscall.ENOMEM:
			return ioerrors.New(ioerrors.OutOfMemory, op, err)
		case syscall.ENAMETOOLONG:
			return ioerrors.New(ioerrors.PathTooLong, op, err)
		case syscall.EINTR:
			return ioerrors.New(ioerrors.UnexpectedOsError, op, fmt.Errorf("interrupted: %w", err))
		case syscall.EWOULDBLOCK:
			return ioerrors.New(ioerrors.Busy, op, err)
		}
	}
	return ioerrors.New(ioerrors.UnexpectedOsError, op, err)
}
