package crit

import (
	"github.com/critdb/crit/pkg/crit/transport"
	"github.com/critdb/crit/pkg/crit/types"
)

// cmdKind enumerates every message the server actor's single inbox
// accepts. Only cmdSubmitWrite and cmdRemoteEnvelope carrying a
// transport.KindRemoteOp body are subject to the pause queue (spec.md
// §4.3.2); every other message, including the ack/check_server/down
// envelope kinds that also travel as cmdRemoteEnvelope, is a
// control-plane message and is handled immediately even while paused
// (spec.md §5). See command.isQueueableWrite.
type cmdKind int

const (
	cmdSubmitWrite cmdKind = iota
	cmdRemoteEnvelope
	cmdPause
	cmdUnpause
	cmdInfo
	cmdOtherPids
	cmdSendDump
	cmdApplyDump
	cmdMakeAliasesFor
	cmdSetPeerAlias
	cmdPing
	cmdPeerDown
	cmdStop
)

// isQueueableWrite reports whether c must be deferred while the
// server is paused rather than handled immediately. cmdRemoteEnvelope
// is not uniformly a write: it also carries acks, check_server probes,
// and down notices, none of which spec.md §5 allows pause to delay, so
// the decision has to look at the wrapped envelope's Kind rather than
// the outer command kind alone.
func (c command) isQueueableWrite() bool {
	switch c.kind {
	case cmdSubmitWrite:
		return true
	case cmdRemoteEnvelope:
		return c.env.Kind == transport.KindRemoteOp
	default:
		return false
	}
}

// command is the single message type flowing through a server's inbox.
// Only the fields relevant to .kind are populated; this mirrors the
// teacher's single RPC envelope style (pkg/mcast/protocol.go's
// RPC/RPCHeader) collapsed into one Go struct since we don't need a
// wire encoding for in-process calls.
type command struct {
	kind cmdKind

	// cmdSubmitWrite
	op     types.WriteOp
	token  types.Token
	waiter chan<- types.Response

	// cmdRemoteEnvelope
	env transport.Envelope

	// cmdPause
	monitor  <-chan struct{}
	pauseOut chan<- pauseToken

	// cmdUnpause
	unpauseTok pauseToken
	errOut     chan<- error

	// cmdInfo
	infoOut chan<- Info

	// cmdOtherPids
	pidsOut chan<- []types.ServerID

	// cmdSendDump
	dumpPeers []types.ServerID
	dumpJoin  types.JoinRef
	dumpData  []types.Record
	dumpOut   chan<- sendDumpResult

	// cmdApplyDump
	dumpRef types.Token

	// cmdMakeAliasesFor
	callers   []types.ServerID
	aliasOut  chan<- map[types.ServerID]types.Alias

	// cmdSetPeerAlias
	aliasPeer  types.ServerID
	aliasValue types.Alias

	// cmdPing / cmdStop
	doneOut chan<- struct{}

	// cmdPeerDown
	downPeer   types.ServerID
	downReason error
}

type sendDumpResult struct {
	Ref types.Token
	Err error
}
