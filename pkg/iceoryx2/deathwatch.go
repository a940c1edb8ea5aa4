package iceoryx2

import (
	"sync"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/port"
)

// deathWatch tracks, per NodeId, the in-process Notifiers that represent
// that node's liveness on some paired event channel. Node.Reap consults
// it to turn a dead-node observation (internal/registry.Reaper) into the
// EventNotifierDead delivery spec.md §4.C calls ProcessDied — resolving
// the §9 open question ("at least once per dead node observed on any
// service the node touched") by firing once per registered Notifier, in
// whatever process happens to run the reap.
type deathWatch struct {
	mu        sync.Mutex
	notifiers map[ids.NodeId][]*port.Notifier
}

var watch = &deathWatch{notifiers: make(map[ids.NodeId][]*port.Notifier)}

func (w *deathWatch) register(node ids.NodeId, n *port.Notifier) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notifiers[node] = append(w.notifiers[node], n)
}

func (w *deathWatch) unregister(node ids.NodeId, n *port.Notifier) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := w.notifiers[node]
	for i, c := range list {
		if c == n {
			w.notifiers[node] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(w.notifiers[node]) == 0 {
		delete(w.notifiers, node)
	}
}

// notifyDead marks every Notifier owned by node as dead, draining the
// registration so a Reaper sweeping the same node twice (racing
// observers, per spec.md §4.C) is a no-op the second time.
func (w *deathWatch) notifyDead(node ids.NodeId) {
	w.mu.Lock()
	list := w.notifiers[node]
	delete(w.notifiers, node)
	w.mu.Unlock()
	for _, n := range list {
		n.MarkDead()
	}
}
