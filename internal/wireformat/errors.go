package wireformat

import "github.com/ocx/iceoryx2/internal/ioerrors"

func errCorrupted() error {
	return ioerrors.New(ioerrors.CorruptedServiceFile, "wireformat", nil)
}
