package registry

import (
	"bytes"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/platform"
	"github.com/ocx/iceoryx2/internal/telemetry"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// ServiceDescriptor is the immutable identity and messaging-pattern
// metadata of a service. Only Name and Pattern feed the content-addressed
// ServiceId; the remaining fields are compared byte-for-byte on Open. Two
// CreateOrOpen calls with byte-identical descriptors always resolve to the
// same ServiceId and are required to open the same underlying service.
type ServiceDescriptor struct {
	Name               string
	Pattern            string
	PayloadTypeName    string
	UserHeaderTypeName string
	QoS                []byte
}

func (d ServiceDescriptor) id() ids.ServiceId {
	return ids.NewServiceId(d.Name, d.Pattern)
}

func (d ServiceDescriptor) encode() []byte {
	return wireformat.EncodeKV(map[string]string{
		"name":         d.Name,
		"pattern":      d.Pattern,
		"payload_type": d.PayloadTypeName,
		"user_header":  d.UserHeaderTypeName,
		"qos":          string(d.QoS),
	})
}

// Service is an opened static-config handle: the descriptor that created
// it plus its content-addressed id. The static-config file is
// write-once — once created it is never mutated, only compared against on
// open.
type Service struct {
	layout Layout
	id     ids.ServiceId
	desc   ServiceDescriptor
}

func (s *Service) ID() ids.ServiceId        { return s.id }
func (s *Service) Descriptor() ServiceDescriptor { return s.desc }

// CreateOrOpen resolves the ServiceId for desc (name+pattern only) and
// either creates its static-config file or verifies an existing one
// matches desc byte-for-byte.
// Since the id no longer covers payload type, user-header type, or QoS, a
// second caller racing to open the same name can easily disagree on those
// fields — that must surface as IncompatibleService, not a silent second
// service. CreateOrOpen therefore uses platform.WriteExclusive (detects
// "someone already created this file") rather than WriteAtomic (which
// would silently overwrite): the winner's write sticks, and every other
// caller — racing or arriving later — falls through to Open, which
// byte-compares the stored descriptor against its own.
func CreateOrOpen(prefix string, desc ServiceDescriptor) (*Service, error) {
	layout := NewLayout(prefix)
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}

	id := desc.id()
	path := layout.StaticConfigPath(id)

	h := wireformat.Header{Magic: wireformat.MagicService, Major: wireformat.CurrentMajor, Minor: wireformat.CurrentMinor}
	body := append(h.Encode(), desc.encode()...)

	err := platform.WriteExclusive(path, body, 0o644)
	if err == nil {
		telemetry.Logger().Info("service created", "service_id", id.String(), "name", desc.Name)
		return &Service{layout: layout, id: id, desc: desc}, nil
	}
	if code, ok := ioerrors.CodeOf(err); !ok || code != ioerrors.Busy {
		return nil, err
	}
	return Open(prefix, id, desc)
}

// Open resolves an existing service by its already-known id, verifying the
// on-disk descriptor matches want.
func Open(prefix string, id ids.ServiceId, want ServiceDescriptor) (*Service, error) {
	layout := NewLayout(prefix)
	path := layout.StaticConfigPath(id)

	raw, err := platform.ReadFile(path)
	if err != nil {
		return nil, ioerrors.New(ioerrors.ServiceNotFound, "Open", err)
	}
	if len(raw) < wireformat.HeaderSize {
		return nil, ioerrors.New(ioerrors.CorruptedServiceFile, "Open", nil)
	}
	h, err := wireformat.DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	wantHeader := wireformat.Header{Magic: wireformat.MagicService, Major: wireformat.CurrentMajor, Minor: wireformat.CurrentMinor}
	if !h.CompatibleWith(wantHeader) {
		return nil, ioerrors.New(ioerrors.IncompatibleService, "Open", nil)
	}
	if !bytes.Equal(raw[wireformat.HeaderSize:], want.encode()) {
		return nil, ioerrors.New(ioerrors.IncompatibleService, "Open", nil)
	}
	return &Service{layout: layout, id: id, desc: want}, nil
}

// Remove deletes the service's static-config and dynamic-config files.
// Callers are responsible for having already drained every port;
// Remove itself does not check for live ports.
func (s *Service) Remove() error {
	if err := platform.Remove(s.layout.StaticConfigPath(s.id)); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return err
	}
	if err := platform.Remove(s.layout.DynamicConfigPath(s.id)); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return err
	}
	telemetry.Logger().Info("service removed", "service_id", s.id.String())
	return nil
}
