package join

import (
	"sync"

	"github.com/critdb/crit/pkg/crit"
	"github.com/critdb/crit/pkg/crit/types"
)

// Directory resolves a server identity to the live *crit.Server it
// names. Spec.md §4.4 describes the coordinator reaching every member
// of both segments by identity ("for every server in LocPids..."); a
// real distributed deployment would do this by process lookup over
// the transport substrate (out of scope, spec.md §1). Since every
// server here is co-resident in one process (spec.md §5), a simple
// in-memory directory stands in for that lookup.
type Directory interface {
	Lookup(id types.ServerID) (*crit.Server, bool)
}

// MapDirectory is the straightforward in-memory Directory. Start does
// not register a server; the caller adds each one with Register.
type MapDirectory struct {
	mu      sync.RWMutex
	servers map[types.ServerID]*crit.Server
}

// NewMapDirectory constructs an empty, ready-to-use MapDirectory.
func NewMapDirectory() *MapDirectory {
	return &MapDirectory{servers: make(map[types.ServerID]*crit.Server)}
}

// Register adds or replaces the entry for s.ID().
func (d *MapDirectory) Register(s *crit.Server) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.servers[s.ID()] = s
}

// Unregister removes the entry for id, if present.
func (d *MapDirectory) Unregister(id types.ServerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.servers, id)
}

// Lookup implements Directory.
func (d *MapDirectory) Lookup(id types.ServerID) (*crit.Server, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.servers[id]
	return s, ok
}
