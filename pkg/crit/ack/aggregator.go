// Package ack implements the ack aggregator described in spec.md §4.2:
// one instance per table server, tracking, per outstanding write,
// which peers still owe an acknowledgement, and releasing the waiting
// caller once the set empties or the peer disappears.
//
// Modeled as its own serialized actor (private inbox channel, single
// goroutine owning all state) the same way the teacher's core.Peer is
// a self-contained actor with its own poll loop (pkg/mcast/core/peer.go).
package ack

import (
	"github.com/critdb/crit/pkg/crit/types"
)

type cmdKind int

const (
	cmdAdd cmdKind = iota
	cmdAck
	cmdRemoteDown
	cmdStop
)

// command is the private inbox message type; Aggregator never exposes
// its state except through the results it pushes to waiters.
type command struct {
	kind       cmdKind
	token      types.Token
	peers      []types.ServerID
	peer       types.ServerID
	stopReason error
	waiter     chan<- types.Response
}

// Aggregator is the public interface a table server drives. All
// methods are safe to call concurrently; they are serialized
// internally by the actor's single inbox.
type Aggregator interface {
	// Add registers a new pending write. If peers is empty, waiter is
	// released with success immediately and nothing is registered.
	Add(token types.Token, peers []types.ServerID, waiter chan<- types.Response)
	// Ack marks peer as having acknowledged token. Unknown tokens
	// and unknown peers are dropped silently.
	Ack(token types.Token, peer types.ServerID)
	// RemoteDown applies Ack(token, peer) to every tracked token, as
	// a peer going away is indistinguishable from it having acked.
	RemoteDown(peer types.ServerID)
	// Stop releases every outstanding waiter with a CrashError
	// wrapping reason (nil reason means a normal, non-crash stop,
	// e.g. the table server itself stopping, spec.md §3 Lifecycles).
	Stop(reason error)
}

type pendingWrite struct {
	remaining map[types.ServerID]struct{}
	waiter    chan<- types.Response
}

// aggregator is the concrete, actor-backed implementation.
type aggregator struct {
	log     types.Logger
	inbox   chan command
	pending map[types.Token]*pendingWrite
}

// New starts a fresh Aggregator actor and returns it. It runs until
// Stop is called; the caller does not need to hold a reference to the
// goroutine, only to the returned Aggregator.
func New(log types.Logger) Aggregator {
	a := &aggregator{
		log:     log,
		inbox:   make(chan command, 64),
		pending: make(map[types.Token]*pendingWrite),
	}
	go a.run()
	return a
}

func (a *aggregator) Add(token types.Token, peers []types.ServerID, waiter chan<- types.Response) {
	if len(peers) == 0 {
		releaseNow(waiter, types.Ok)
		return
	}
	a.inbox <- command{kind: cmdAdd, token: token, peers: peers, waiter: waiter}
}

func (a *aggregator) Ack(token types.Token, peer types.ServerID) {
	a.inbox <- command{kind: cmdAck, token: token, peer: peer}
}

func (a *aggregator) RemoteDown(peer types.ServerID) {
	a.inbox <- command{kind: cmdRemoteDown, peer: peer}
}

func (a *aggregator) Stop(reason error) {
	a.inbox <- command{kind: cmdStop, stopReason: reason}
}

// run is the actor's single-threaded event loop: every field of
// aggregator is touched only from here, so no locking is needed.
func (a *aggregator) run() {
	for c := range a.inbox {
		switch c.kind {
		case cmdAdd:
			a.handleAdd(c.token, c.peers, c.waiter)
		case cmdAck:
			a.handleAck(c.token, c.peer)
		case cmdRemoteDown:
			a.handleRemoteDown(c.peer)
		case cmdStop:
			a.handleStop(c.stopReason)
			return
		default:
			a.log.Warnf("ack: unknown command kind %d, ignoring", c.kind)
		}
	}
}

func (a *aggregator) handleAdd(token types.Token, peers []types.ServerID, waiter chan<- types.Response) {
	remaining := make(map[types.ServerID]struct{}, len(peers))
	for _, p := range peers {
		remaining[p] = struct{}{}
	}
	a.pending[token] = &pendingWrite{remaining: remaining, waiter: waiter}
}

func (a *aggregator) handleAck(token types.Token, peer types.ServerID) {
	pw, ok := a.pending[token]
	if !ok {
		// Unknown token: stale or duplicate ack, drop silently per
		// spec.md §4.2.
		return
	}
	delete(pw.remaining, peer)
	if len(pw.remaining) == 0 {
		releaseNow(pw.waiter, types.Ok)
		delete(a.pending, token)
	}
}

func (a *aggregator) handleRemoteDown(peer types.ServerID) {
	for token := range a.pending {
		a.handleAck(token, peer)
	}
}

func (a *aggregator) handleStop(reason error) {
	var resp types.Response
	if reason != nil {
		resp = types.Failed(&types.CrashError{Reason: reason})
	} else {
		resp = types.Failed(&types.CrashError{Reason: errStoppedNormally})
	}
	for token, pw := range a.pending {
		releaseNow(pw.waiter, resp)
		delete(a.pending, token)
	}
}

var errStoppedNormally = normalStopReason{}

type normalStopReason struct{}

func (normalStopReason) Error() string { return "normal" }

// releaseNow delivers resp to waiter without blocking forever: the
// table server always provides a buffered channel of size 1 (see
// pkg/crit's WriteOp plumbing), so this send never actually blocks,
// but we guard it anyway in case a caller already gave up.
func releaseNow(waiter chan<- types.Response, resp types.Response) {
	if waiter == nil {
		return
	}
	select {
	case waiter <- resp:
	default:
	}
}
