package registry

import (
	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/platform"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// DynamicConfig is the live, mutable port table for one service. Every mutation takes the .dynamic file's exclusive lock
// for the duration of the read-modify-write, so the file lock is this
// table's only synchronization primitive — there is no in-process mutex,
// since the table is meant to be shared across processes attached to the
// same service.
type DynamicConfig struct {
	path string
}

func dynamicHeader() wireformat.Header {
	return wireformat.Header{Magic: wireformat.MagicDynamic, Major: wireformat.CurrentMajor, Minor: wireformat.CurrentMinor}
}

// OpenDynamicConfig resolves the .dynamic file path for svc, creating an
// empty table if none exists yet.
func OpenDynamicConfig(prefix string, svc ids.ServiceId) (*DynamicConfig, error) {
	layout := NewLayout(prefix)
	path := layout.DynamicConfigPath(svc)

	d := &DynamicConfig{path: path}
	if _, err := platform.ReadFile(path); err != nil {
		if err := d.writeLocked(func(t wireformat.DynamicConfigTable) (wireformat.DynamicConfigTable, error) {
			return t, nil
		}); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// withLock opens and exclusive-locks the table file for the duration of fn.
func (d *DynamicConfig) withLock(fn func(lock *platform.FileLock) error) error {
	lock, err := platform.OpenLock(d.path)
	if err != nil {
		return err
	}
	defer lock.Close()
	if err := lock.Lock(); err != nil {
		return err
	}
	return fn(lock)
}

func (d *DynamicConfig) readLocked(lock *platform.FileLock) (wireformat.DynamicConfigTable, error) {
	raw, err := lock.ReadAll()
	if err != nil {
		return wireformat.DynamicConfigTable{}, err
	}
	if len(raw) == 0 {
		return wireformat.DynamicConfigTable{}, nil
	}
	_, table, err := wireformat.DecodeDynamicConfigTable(raw)
	return table, err
}

// writeLocked loads the current table, applies mutate, and writes the
// result back, all under the file lock.
func (d *DynamicConfig) writeLocked(mutate func(wireformat.DynamicConfigTable) (wireformat.DynamicConfigTable, error)) error {
	return d.withLock(func(lock *platform.FileLock) error {
		table, err := d.readLocked(lock)
		if err != nil {
			return err
		}
		table, err = mutate(table)
		if err != nil {
			return err
		}
		body := table.Encode(dynamicHeader())
		_, err = lock.WriteAt(body)
		return err
	})
}

// Insert adds entry to the table. MaxPorts bounds how many live (non-
// removed) entries the service tolerates before new ports are rejected
// with MaxPortsExceeded.
func (d *DynamicConfig) Insert(entry wireformat.PortEntry, maxPorts int) error {
	return d.writeLocked(func(table wireformat.DynamicConfigTable) (wireformat.DynamicConfigTable, error) {
		live := 0
		reuseIdx := -1
		for i, e := range table.Entries {
			if e.IsEmpty() || e.Flags&wireformat.FlagRemoved != 0 {
				if reuseIdx == -1 {
					reuseIdx = i
				}
				continue
			}
			live++
		}
		if live >= maxPorts {
			return table, ioerrors.New(ioerrors.MaxPortsExceeded, "DynamicConfig.Insert", nil)
		}
		if reuseIdx >= 0 {
			table.Entries[reuseIdx] = entry
		} else {
			table.Entries = append(table.Entries, entry)
		}
		return table, nil
	})
}

// Remove marks the entry for portID as removed. It is idempotent: removing
// an already-absent port returns AlreadyRemoved rather than an error the
// caller must special-case differently from a successful first removal.
func (d *DynamicConfig) Remove(portID ids.PortId) error {
	found := false
	err := d.writeLocked(func(table wireformat.DynamicConfigTable) (wireformat.DynamicConfigTable, error) {
		for i, e := range table.Entries {
			if [16]byte(e.PortID) == [16]byte(portID) && e.Flags&wireformat.FlagRemoved == 0 {
				table.Entries[i].Flags |= wireformat.FlagRemoved
				found = true
				break
			}
		}
		return table, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return ioerrors.New(ioerrors.AlreadyRemoved, "DynamicConfig.Remove", nil)
	}
	return nil
}

// RemoveByNode marks every live entry owned by nodeID as removed and
// returns the entries removed (in their pre-removal state), so a caller
// can decrement refcounts on any samples those ports held or translate
// the removal into a ProcessDied notification. Returns an empty slice,
// not an error, when the node owned no entries on this service —
// most services a dead node touched will report nothing here.
func (d *DynamicConfig) RemoveByNode(nodeID ids.NodeId) ([]wireformat.PortEntry, error) {
	var removed []wireformat.PortEntry
	err := d.writeLocked(func(table wireformat.DynamicConfigTable) (wireformat.DynamicConfigTable, error) {
		for i, e := range table.Entries {
			if e.Flags&wireformat.FlagRemoved != 0 || e.IsEmpty() {
				continue
			}
			if [16]byte(e.NodeID) == [16]byte(nodeID) {
				removed = append(removed, e)
				table.Entries[i].Flags |= wireformat.FlagRemoved
			}
		}
		return table, nil
	})
	return removed, err
}

// UpdateSegment stamps portID's entry with the segment id its allocator
// just grew into, so a subscriber attaching after the grow (or one
// re-reading the table to find a retired generation) can resolve where
// the port's samples now live.
func (d *DynamicConfig) UpdateSegment(portID ids.PortId, segID ids.SegmentId) error {
	found := false
	err := d.writeLocked(func(table wireformat.DynamicConfigTable) (wireformat.DynamicConfigTable, error) {
		for i, e := range table.Entries {
			if [16]byte(e.PortID) == [16]byte(portID) && e.Flags&wireformat.FlagRemoved == 0 {
				table.Entries[i].SegmentID = uint64(segID)
				found = true
				break
			}
		}
		return table, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return ioerrors.New(ioerrors.AlreadyRemoved, "DynamicConfig.UpdateSegment", nil)
	}
	return nil
}

// UpdateRing stamps portID's entry with the segment id of the
// shared-memory ring it sends through, so a Subscriber resolving a
// Publisher from a separate process (rather than a live in-process
// object) can open the same ring by its content-addressed segment file.
func (d *DynamicConfig) UpdateRing(portID ids.PortId, ringID ids.SegmentId) error {
	found := false
	err := d.writeLocked(func(table wireformat.DynamicConfigTable) (wireformat.DynamicConfigTable, error) {
		for i, e := range table.Entries {
			if [16]byte(e.PortID) == [16]byte(portID) && e.Flags&wireformat.FlagRemoved == 0 {
				table.Entries[i].RingID = uint64(ringID)
				found = true
				break
			}
		}
		return table, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return ioerrors.New(ioerrors.AlreadyRemoved, "DynamicConfig.UpdateRing", nil)
	}
	return nil
}

// List returns every live (non-removed, non-empty) port entry.
func (d *DynamicConfig) List() ([]wireformat.PortEntry, error) {
	var out []wireformat.PortEntry
	err := d.withLock(func(lock *platform.FileLock) error {
		table, err := d.readLocked(lock)
		if err != nil {
			return err
		}
		for _, e := range table.Entries {
			if !e.IsEmpty() && e.Flags&wireformat.FlagRemoved == 0 {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}
