package iceoryx2

import (
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/platform"
	"github.com/ocx/iceoryx2/internal/port"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// BlackboardService is an opened blackboard service: a single
// shared-memory region carved into one seqlocked slot per declared key,
// written by at most one Writer and read by any number of Readers.
type BlackboardService struct {
	node *Node
	svc  *registry.Service
	dyn  *registry.DynamicConfig
	cfg  ServiceConfig

	mem   *platform.SharedMemory
	slots map[string]port.BlackboardSlot

	writerTaken bool
}

// Blackboard creates or opens a blackboard service named name, declaring
// one key per entry in keyValueSizes (value size in bytes, excluding the
// seqlock header). The key layout is fixed at creation time: all Writers
// and Readers opened against the service share the same slot map.
func (n *Node) Blackboard(name string, keyValueSizes map[string]int, cfg ServiceConfig) (*BlackboardService, error) {
	desc := registry.ServiceDescriptor{Name: name, Pattern: "blackboard", QoS: qosBytes(cfg)}
	svc, err := registry.CreateOrOpen(n.prefix, desc)
	if err != nil {
		return nil, err
	}
	dyn, err := registry.OpenDynamicConfig(n.prefix, svc.ID())
	if err != nil {
		return nil, err
	}

	total := 0
	for _, sz := range keyValueSizes {
		total += wireformat.BlackboardEntryHeaderSize + sz
	}
	path := filepath.Join(n.prefix, "segments", "blackboard-"+uuid.New().String()+".shm")
	mem, err := platform.CreateSharedMemory(path, total)
	if err != nil {
		return nil, err
	}

	slots := make(map[string]port.BlackboardSlot, len(keyValueSizes))
	offset := 0
	for key, sz := range keyValueSizes {
		end := offset + wireformat.BlackboardEntryHeaderSize + sz
		slots[key] = port.NewBlackboardSlot(mem.Bytes()[offset:end])
		offset = end
	}

	return &BlackboardService{node: n, svc: svc, dyn: dyn, cfg: cfg, mem: mem, slots: slots}, nil
}

func (s *BlackboardService) ID() ids.ServiceId { return s.svc.ID() }

// Writer is the façade's single-writer-per-key blackboard handle.
type Writer struct {
	port *port.Writer
	svc  *BlackboardService
}

// CreateWriter opens the service's Writer. Only one may be live at a
// time — a second call before the first is Reclaim-ed fails, matching
// the pattern's single-writer invariant.
func (s *BlackboardService) CreateWriter() (*Writer, error) {
	if s.writerTaken {
		return nil, ioerrors.New(ioerrors.MaxPortsExceeded, "BlackboardService.CreateWriter", nil)
	}
	w, err := port.NewWriter(s.node.ID(), s.svc.ID(), s.slots, s.dyn, s.cfg.MaxPorts)
	if err != nil {
		return nil, err
	}
	s.writerTaken = true
	return &Writer{port: w, svc: s}, nil
}

func (w *Writer) ID() ids.PortId { return w.port.ID() }

// Update writes value into key's slot.
func (w *Writer) Update(key string, value []byte) error { return w.port.Update(key, value) }

// Reclaim retires the writer, freeing the service's single writer slot.
func (w *Writer) Reclaim() error {
	if err := w.port.Reclaim(); err != nil {
		return err
	}
	w.svc.writerTaken = false
	return nil
}

// Reader is the façade's multi-reader blackboard handle.
type Reader struct{ port *port.Reader }

// CreateReader opens a new Reader over the service's keys.
func (s *BlackboardService) CreateReader() (*Reader, error) {
	r, err := port.NewReader(s.node.ID(), s.svc.ID(), s.slots, s.dyn, s.cfg.MaxPorts)
	if err != nil {
		return nil, err
	}
	return &Reader{port: r}, nil
}

func (r *Reader) ID() ids.PortId { return r.port.ID() }

// Get returns key's current value.
func (r *Reader) Get(key string) ([]byte, error) { return r.port.Get(key) }

// Reclaim retires the reader.
func (r *Reader) Reclaim() error { return r.port.Reclaim() }

// Close unmaps the blackboard's shared-memory region. Call it only after
// every Writer and Reader against the service has been reclaimed.
func (s *BlackboardService) Close() error { return s.mem.Close() }
