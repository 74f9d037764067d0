// Package transport provides the node-to-node message-passing
// substrate spec.md §1 treats as an external, assumed-reliable
// collaborator ("implementing that substrate is not in scope"). We
// still ship one concrete, in-process implementation (Local) so the
// rest of the module is directly testable, plus an optional
// relt-backed implementation for real cross-process delivery, grounded
// on the teacher's own transport (pkg/mcast/core/transport.go).
package transport

import "github.com/critdb/crit/pkg/crit/types"

// Envelope is one message in flight between two servers. Kind
// distinguishes the small, fixed protocol vocabulary table servers
// speak among themselves (spec.md §4.3.1, §4.3.3, §4.4.1).
type Envelope struct {
	Kind EnvelopeKind
	From types.ServerID
	To   types.ServerID
	Body interface{}
}

type EnvelopeKind int

const (
	KindRemoteOp EnvelopeKind = iota
	KindAck
	KindCheckServer
	KindCheckServerFailed
	KindDown
)

// RemoteOp is the body of a KindRemoteOp envelope: spec.md §4.3.1 "On
// receipt of remote_op{alias, ref, reply_to, op}".
type RemoteOp struct {
	Alias   types.Alias
	Ref     types.Token
	ReplyTo types.ServerID
	Op      types.WriteOp
}

// AckMsg is the body of a KindAck envelope: "ack(ref, self)".
type AckMsg struct {
	Ref  types.Token
	From types.ServerID
}

// CheckServer is the body of a KindCheckServer envelope, spec.md
// §4.3.3: a probe asking the receiver whether it still owns alias
// Dest. It carries only the source and the alias; there is no monitor
// reference or dump reference in it.
type CheckServer struct {
	Source types.ServerID
	Dest   types.Alias
}

// CheckServerFailed is the reply when dest names an unknown alias.
type CheckServerFailed struct {
	Dest types.Alias
}

// Down announces that From has terminated, delivered to every server
// that still names it as a peer.
type Down struct {
	Reason error
}

// Transport is what a table server depends on to reach its peers. One
// Transport is owned by one server; Send targets another server's
// Transport by ServerID.
type Transport interface {
	// Send delivers env best-effort ("no-connect": no reconnection
	// logic, no delivery guarantee beyond "if the target is
	// reachable, it gets the message in FIFO order relative to other
	// sends from this Transport").
	Send(env Envelope) error
	// Inbox is where envelopes addressed to this transport's owner
	// arrive, in send order per sender.
	Inbox() <-chan Envelope
	// Close detaches this transport from the substrate. Any
	// in-flight sends addressed to it afterward are silently
	// dropped, modeling a DOWN node.
	Close()
}
