package transport

import (
	"sync"

	"github.com/critdb/crit/pkg/crit/types"
)

// Registry is a process-local directory of Transports, one per server,
// modeling the "all servers run concurrently in a single process"
// scheduling model of spec.md §5. It is the default substrate: no
// sockets, no serialization, just a buffered channel per server.
type Registry struct {
	mu    sync.RWMutex
	table map[types.ServerID]*Local
}

// NewRegistry returns an empty, ready-to-use Registry. A single
// Registry is shared by every server in one process; servers in
// different segments may still share a Registry, since membership
// (the peer set) is what actually restricts who talks to whom.
func NewRegistry() *Registry {
	return &Registry{table: make(map[types.ServerID]*Local)}
}

// Register creates and returns a new Local transport bound to id,
// replacing any previous transport registered under the same id (the
// prior one is closed first, as happens when a server restarts under
// the same identity in tests).
func (r *Registry) Register(id types.ServerID) *Local {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.table[id]; ok {
		old.closeLocked()
	}
	l := &Local{
		id:       id,
		registry: r,
		inbox:    make(chan Envelope, 256),
	}
	r.table[id] = l
	return l
}

func (r *Registry) lookup(id types.ServerID) *Local {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.table[id]
}

func (r *Registry) unregister(id types.ServerID, l *Local) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.table[id] == l {
		delete(r.table, id)
	}
}

// Local is the Registry-backed Transport implementation.
type Local struct {
	id       types.ServerID
	registry *Registry
	inbox    chan Envelope

	mu     sync.Mutex
	closed bool
}

var _ Transport = (*Local)(nil)

func (l *Local) Send(env Envelope) error {
	target := l.registry.lookup(env.To)
	if target == nil {
		// No-connect delivery: a missing/down target is silently a
		// no-op, consistent with spec.md §4.2's observation that a
		// remote_down is indistinguishable from an ack.
		return nil
	}
	target.mu.Lock()
	defer target.mu.Unlock()
	if target.closed {
		return nil
	}
	select {
	case target.inbox <- env:
	default:
		// Inbox full: drop rather than block the sender forever.
		// A sufficiently large buffer makes this exceptional; callers
		// that need delivery guarantees rely on the ack aggregator's
		// retry-free "peer just never acked" path, not this layer.
	}
	return nil
}

func (l *Local) Inbox() <-chan Envelope {
	return l.inbox
}

func (l *Local) Close() {
	l.mu.Lock()
	l.closeLocked()
	l.mu.Unlock()
	l.registry.unregister(l.id, l)
}

func (l *Local) closeLocked() {
	if l.closed {
		return
	}
	l.closed = true
	close(l.inbox)
}
