// Package discovery implements the external discovery loop spec.md §6
// and §1 describe as a caller of the join coordinator, never part of
// the core: "the discovery loop that periodically resolves a desired
// node set and drives joins is treated as an external caller of the
// join coordinator."
package discovery

import "context"

// Node is one cluster member as seen by a Backend, identified by the
// address a table server's transport can be reached at.
type Node struct {
	Name string
	Addr string
}

// Backend is spec.md §6's discovery backend contract collapsed into
// idiomatic Go: init(opts) -> state and get_nodes(state) ->
// ({ok,[node]}|{error,_}, state') become a single stateful value
// behind one method, with state threaded through the receiver instead
// of passed explicitly.
type Backend interface {
	GetNodes(ctx context.Context) ([]Node, error)
}
