package crit

import (
	"github.com/critdb/crit/pkg/crit/bitset"
	"github.com/critdb/crit/pkg/crit/transport"
	"github.com/critdb/crit/pkg/crit/types"
)

// handleCheckServer answers an alias liveness probe, spec.md §4.3.3:
// "check_server{source, dest} — reply check_server_failed if dest
// names an alias this server does not currently own; otherwise no
// reply is sent, silence is the positive confirmation."
func (s *Server) handleCheckServer(body transport.CheckServer, from types.ServerID) {
	if idx, ok := s.aliasIndex[body.Dest]; ok && bitset.IsSet(s.aliasFlags, idx) {
		return
	}
	reply := transport.Envelope{
		Kind: transport.KindCheckServerFailed,
		From: s.id,
		To:   from,
		Body: transport.CheckServerFailed{Dest: body.Dest},
	}
	if err := s.transport.Send(reply); err != nil {
		s.log.Errorf("%s: failed sending check_server_failed to %s: %v", s.name, from, err)
	}
}

// handleCheckServerFailed processes the reply to a check_server probe
// this server sent from handlePeerDown: from no longer owns the alias
// we use to reach it, corroborating that it's unreachable too. Routed
// back through the inbox as cmdPeerDown instead of calling
// handlePeerDown directly, so a peer learned about this way is handled
// identically to one whose DOWN arrived first-hand.
func (s *Server) handleCheckServerFailed(body transport.CheckServerFailed, from types.ServerID) {
	s.inbox <- command{kind: cmdPeerDown, downPeer: from, downReason: types.ErrCheckServerFailed}
}

// handlePeerDown removes a peer from this server's view on notice that
// it terminated, spec.md §5 "DOWN of a peer": outstanding acks expected
// from it are released, its HandleDown callback fires, its inbound
// alias is retired, and it's dropped from the replication set. It does
// NOT consume pause tokens held by other entities (only pause-owner
// monitor DOWN does that, see watchPauseMonitor). Per spec.md §4.3.1 it
// also notifies every remaining peer via a check_server exchange
// (§4.3.3), corroborating that the channels to the rest of the segment
// are still healthy.
func (s *Server) handlePeerDown(peer types.ServerID, reason error) {
	kept := s.peers[:0:0]
	found := false
	for _, p := range s.peers {
		if p == peer {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return
	}
	s.peers = kept

	if alias, ok := s.peerInboxAlias[peer]; ok {
		s.disableAlias(alias)
		delete(s.peerInboxAlias, peer)
	}
	delete(s.outgoingAlias, peer)
	delete(s.pendingInboxAlias, peer)

	s.aggregator.RemoteDown(peer)

	if s.opts.HandleDown != nil {
		s.opts.HandleDown(types.DownInfo{RemotePid: peer, Table: s.name})
	}
	s.notifyRemainingPeers(kept)
	s.log.Infof("%s: peer %s is down (%v), %d peer(s) remain", s.name, peer, reason, len(s.peers))
}

// notifyRemainingPeers sends each peer in peers a check_server probe
// against the alias it minted for this server, spec.md §4.3.1's "on
// peer down, notify all remaining peers via a check_server exchange".
// A check_server_failed reply means that peer no longer recognizes us
// either, and is handled by handleCheckServerFailed the same way a
// first-hand DOWN is.
func (s *Server) notifyRemainingPeers(peers []types.ServerID) {
	for _, p := range peers {
		alias, ok := s.outgoingAlias[p]
		if !ok {
			continue
		}
		env := transport.Envelope{
			Kind: transport.KindCheckServer,
			From: s.id,
			To:   p,
			Body: transport.CheckServer{Source: s.id, Dest: alias},
		}
		if err := s.transport.Send(env); err != nil {
			s.log.Errorf("%s: failed sending check_server to %s: %v", s.name, p, err)
		}
	}
}

// Ping is a no-op control round trip used to confirm the actor
// goroutine is alive and has drained everything queued ahead of it,
// the way the teacher uses a synchronous call to flush pending work
// before asserting on state in tests.
func (s *Server) Ping() {
	done := make(chan struct{})
	s.inbox <- command{kind: cmdPing, doneOut: done}
	<-done
}

// Sync blocks until every command enqueued on this server before the
// call returns has been processed; it's Ping under a name that reads
// naturally at call sites outside tests.
func (s *Server) Sync() { s.Ping() }

// Stop terminates the actor goroutine and releases the transport.
// Every peer learns of this server's departure via a KindDown
// envelope, spec.md §5's node-departure notification.
func (s *Server) Stop(reason error) {
	s.stopOnce.Do(func() {
		done := make(chan struct{})
		s.inbox <- command{kind: cmdStop, downReason: reason, doneOut: done}
		<-done
	})
}

func (s *Server) handleStop(done chan<- struct{}) {
	close(s.stopped)

	for _, p := range append([]types.ServerID(nil), s.peers...) {
		env := transport.Envelope{
			Kind: transport.KindDown,
			From: s.id,
			To:   p,
			Body: transport.Down{Reason: nil},
		}
		_ = s.transport.Send(env)
	}

	s.aggregator.Stop(nil)
	s.transport.Close()

	for _, j := range s.pending {
		if !j.isRemote {
			deliver(j.waiter, types.Failed(&types.CrashError{Reason: types.ErrStopped}))
		}
	}
	s.pending = nil

	close(done)
}
