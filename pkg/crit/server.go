// Package crit implements the per-node table server described in
// spec.md §4.3: the central actor that owns a local keyed table,
// serves reads, applies writes, replicates them to peers, monitors
// peers, supports pause/resume, and cooperates with joins.
//
// Structurally this follows the teacher's top-level Unity
// (pkg/mcast/protocol.go): one struct holding all actor state, a
// single-goroutine run loop reading off a private inbox, exported
// methods that are thin synchronous wrappers sending a command and
// waiting on a reply channel — except reads, which bypass the actor
// entirely the way the teacher's Peer.FastRead reads storage directly
// (pkg/mcast/core/peer.go).
package crit

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/critdb/crit/pkg/crit/ack"
	"github.com/critdb/crit/pkg/crit/bitset"
	"github.com/critdb/crit/pkg/crit/transport"
	"github.com/critdb/crit/pkg/crit/types"
)

// pauseToken identifies one outstanding pause(), spec.md's "pause
// token". Multiple concurrent pauses are allowed; the server is
// PAUSED while any token is outstanding.
type pauseToken string

func newPauseToken() pauseToken {
	return pauseToken(types.NewToken())
}

type stagedDump struct {
	dump    []types.Record
	peers   []types.ServerID
	joinRef types.JoinRef
}

type queuedJob struct {
	isRemote bool
	// local
	op     types.WriteOp
	token  types.Token
	waiter chan<- types.Response
	// remote
	remote transport.RemoteOp
	from   types.ServerID
}

// Info is the snapshot returned by Server.Info(): options, size, peer
// list, pause state and pause-token count, current join reference,
// per-peer outgoing aliases and pending aliases. It does not include
// the ack aggregator's identity.
type Info struct {
	Name           string
	ID             types.ServerID
	Opts           types.Options
	Size           int
	Peers          []types.ServerID
	Paused         bool
	PauseTokens    int
	JoinRef        types.JoinRef
	OutgoingAlias  map[types.ServerID]types.Alias
	PendingAliases map[types.ServerID]types.Alias
}

// Server is one per-node table server actor.
type Server struct {
	id   types.ServerID
	name string
	log  types.Logger
	opts types.Options

	transport  transport.Transport
	aggregator ack.Aggregator

	inbox chan command

	contentsMu sync.RWMutex
	contents   localTable

	// Actor-exclusive state below: touched only from run().
	peers       []types.ServerID
	joinRef     types.JoinRef
	pauseOwners map[pauseToken]struct{}
	pending     []queuedJob
	dumpStaging map[types.Token]stagedDump

	outgoingAlias     map[types.ServerID]types.Alias
	aliasOwner        map[types.Alias]types.ServerID
	disabledAlias     map[types.Alias]struct{}
	peerInboxAlias    map[types.ServerID]types.Alias
	pendingInboxAlias map[types.ServerID]types.Alias

	// aliasIndex/aliasFlags/nextAliasIdx track which minted aliases are
	// currently active vs. disabled as a bitset.big.Int mask (spec.md
	// §4.1), keyed by a per-server monotonic index assigned the first
	// time an alias goes live in handleApplyDump. aliasOwner remains the
	// source of truth for who owns a live alias; aliasFlags is what
	// handleCheckServer actually answers the probe against.
	aliasIndex   map[types.Alias]int
	aliasFlags   *big.Int
	nextAliasIdx int

	waitersMu sync.Mutex
	waiters   map[types.Token]chan types.Response

	stopOnce sync.Once
	stopped  chan struct{}
}

// Start constructs and runs a new table server named name, identified
// by id, backed by trans for peer communication. Mirrors the
// teacher's NewUnity / DefaultConfiguration pairing
// (pkg/mcast/protocol.go). The identity is a caller-supplied parameter
// rather than minted internally so a caller can register trans under
// id (e.g. in a transport.Registry) before the server exists — see
// StartNamed for the common case where that ordering doesn't matter.
func Start(name string, id types.ServerID, trans transport.Transport, log types.Logger, opts types.Options) (*Server, error) {
	normalized, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	s := &Server{
		id:                id,
		name:              name,
		log:               log,
		opts:              normalized,
		transport:         trans,
		aggregator:        ack.New(log),
		inbox:             make(chan command, 256),
		contents:          newLocalTable(normalized),
		pauseOwners:       make(map[pauseToken]struct{}),
		dumpStaging:       make(map[types.Token]stagedDump),
		outgoingAlias:     make(map[types.ServerID]types.Alias),
		aliasOwner:        make(map[types.Alias]types.ServerID),
		disabledAlias:     make(map[types.Alias]struct{}),
		peerInboxAlias:    make(map[types.ServerID]types.Alias),
		pendingInboxAlias: make(map[types.ServerID]types.Alias),
		aliasIndex:        make(map[types.Alias]int),
		aliasFlags:        bitset.Zero(),
		waiters:           make(map[types.Token]chan types.Response),
		stopped:           make(chan struct{}),
	}

	go s.pumpTransport()
	go s.run()
	return s, nil
}

// StartNamed mints a fresh identity from name and starts the server,
// for the common case where no other component needs to know the
// identity before the server exists.
func StartNamed(name string, trans transport.Transport, log types.Logger, opts types.Options) (*Server, error) {
	return Start(name, types.NewServerID(name), trans, log, opts)
}

// ID returns this server's identity.
func (s *Server) ID() types.ServerID { return s.id }

// TableName returns the logical name this server was started with.
// Direct, synchronous, no actor round trip (spec.md §4.3 reads).
func (s *Server) TableName() string { return s.name }

// Dump returns the full, ordered (for OrderedSet) contents of the
// local table. Direct read, bypassing the actor inbox, the way the
// teacher's Peer.FastRead reads d.logAbstraction directly.
func (s *Server) Dump() []types.Record {
	s.contentsMu.RLock()
	defer s.contentsMu.RUnlock()
	return s.contents.dump()
}

// Lookup returns every record stored under key (0 or 1 for
// OrderedSet, any count for Bag).
func (s *Server) Lookup(key interface{}) []types.Record {
	s.contentsMu.RLock()
	defer s.contentsMu.RUnlock()
	return s.contents.lookup(key)
}

// Size returns the number of records currently stored.
func (s *Server) Size() int {
	s.contentsMu.RLock()
	defer s.contentsMu.RUnlock()
	return s.contents.size()
}

// pumpTransport forwards inbound envelopes into the actor's inbox,
// preserving per-sender order; it exits when the transport's Inbox
// channel closes.
func (s *Server) pumpTransport() {
	for env := range s.transport.Inbox() {
		select {
		case s.inbox <- command{kind: cmdRemoteEnvelope, env: env}:
		case <-s.stopped:
			return
		}
	}
}

// run is the single goroutine that owns every actor-exclusive field.
func (s *Server) run() {
	for c := range s.inbox {
		if c.kind == cmdStop {
			s.handleStop(c.doneOut)
			return
		}
		s.dispatch(c)
	}
}

func (s *Server) dispatch(c command) {
	if s.paused() && c.isQueueableWrite() {
		s.enqueue(c)
		return
	}

	switch c.kind {
	case cmdSubmitWrite:
		s.doLocalWrite(c.op, c.token, c.waiter)
	case cmdRemoteEnvelope:
		s.handleEnvelope(c.env)
	case cmdPause:
		s.handlePause(c.monitor, c.pauseOut)
	case cmdUnpause:
		s.handleUnpause(c.unpauseTok, c.errOut)
	case cmdInfo:
		c.infoOut <- s.snapshotInfo()
	case cmdOtherPids:
		c.pidsOut <- append([]types.ServerID(nil), s.peers...)
	case cmdSendDump:
		s.handleSendDump(c.dumpPeers, c.dumpJoin, c.dumpData, c.dumpOut)
	case cmdApplyDump:
		s.errOutOrNil(c.errOut, s.handleApplyDump(c.dumpRef))
	case cmdMakeAliasesFor:
		c.aliasOut <- s.handleMakeAliasesFor(c.callers)
	case cmdSetPeerAlias:
		s.outgoingAlias[c.aliasPeer] = c.aliasValue
		close(c.doneOut)
	case cmdPing:
		close(c.doneOut)
	case cmdPeerDown:
		s.handlePeerDown(c.downPeer, c.downReason)
	default:
		s.log.Warnf("%s: unknown command kind %d, ignoring", s.name, c.kind)
	}
}

func (s *Server) errOutOrNil(out chan<- error, err error) {
	out <- err
}

func (s *Server) enqueue(c command) {
	switch c.kind {
	case cmdSubmitWrite:
		s.pending = append(s.pending, queuedJob{op: c.op, token: c.token, waiter: c.waiter})
	case cmdRemoteEnvelope:
		if body, ok := c.env.Body.(transport.RemoteOp); ok {
			s.pending = append(s.pending, queuedJob{isRemote: true, remote: body, from: c.env.From})
		}
	}
}

func (s *Server) paused() bool {
	return len(s.pauseOwners) > 0
}

func (s *Server) snapshotInfo() Info {
	outgoing := make(map[types.ServerID]types.Alias, len(s.outgoingAlias))
	for k, v := range s.outgoingAlias {
		outgoing[k] = v
	}
	pending := make(map[types.ServerID]types.Alias, len(s.pendingInboxAlias))
	for k, v := range s.pendingInboxAlias {
		pending[k] = v
	}
	return Info{
		Name:           s.name,
		ID:             s.id,
		Opts:           s.opts,
		Size:           s.Size(),
		Peers:          append([]types.ServerID(nil), s.peers...),
		Paused:         s.paused(),
		PauseTokens:    len(s.pauseOwners),
		JoinRef:        s.joinRef,
		OutgoingAlias:  outgoing,
		PendingAliases: pending,
	}
}

// Info returns a snapshot of this server's state, spec.md §4.3 info().
func (s *Server) Info() Info {
	out := make(chan Info, 1)
	s.inbox <- command{kind: cmdInfo, infoOut: out}
	return <-out
}

// OtherPids returns the current peer set, spec.md §4.3 other_pids().
func (s *Server) OtherPids() []types.ServerID {
	out := make(chan []types.ServerID, 1)
	s.inbox <- command{kind: cmdOtherPids, pidsOut: out}
	return <-out
}

// OtherNodes exists for parity with spec.md §6; since this module
// doesn't model a node abstraction distinct from a server, it is
// simply OtherPids.
func (s *Server) OtherNodes() []types.ServerID { return s.OtherPids() }

// RemoteDump is the accessor a peer uses to fetch another server's
// dump directly when co-resident (spec.md §4.4 step 7: "prefer the
// local-optimized path when the server is co-resident"). In this
// module every server is co-resident (single process), so RemoteDump
// and Dump coincide; it exists as its own method so callers that think
// in terms of "ask a remote" read naturally.
func (s *Server) RemoteDump() []types.Record { return s.Dump() }

func (s *Server) String() string {
	return fmt.Sprintf("Server(%s/%s)", s.name, s.id)
}
