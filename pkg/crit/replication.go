package crit

import (
	"github.com/critdb/crit/pkg/crit/transport"
	"github.com/critdb/crit/pkg/crit/types"
)

// doLocalWrite applies op to the local table and fans it out to every
// current peer, spec.md §4.3.1 "On local mutation". Called both for
// fresh submissions and for local writes drained from the pending
// queue after unpause.
func (s *Server) doLocalWrite(op types.WriteOp, token types.Token, waiter chan<- types.Response) {
	s.contentsMu.Lock()
	err := s.contents.apply(op)
	s.contentsMu.Unlock()
	if err != nil {
		deliver(waiter, types.Failed(err))
		return
	}

	peers := append([]types.ServerID(nil), s.peers...)
	if len(peers) == 0 {
		deliver(waiter, types.Ok)
		return
	}

	s.aggregator.Add(token, peers, waiter)
	for _, p := range peers {
		env := transport.Envelope{
			Kind: transport.KindRemoteOp,
			From: s.id,
			To:   p,
			Body: transport.RemoteOp{
				Alias:   s.outgoingAlias[p],
				Ref:     token,
				ReplyTo: s.id,
				Op:      op,
			},
		}
		if sendErr := s.transport.Send(env); sendErr != nil {
			s.log.Errorf("%s: failed sending remote_op to %s: %v", s.name, p, sendErr)
		}
	}
}

// handleEnvelope dispatches one inbound transport envelope. remote_op
// envelopes are queued by dispatch before reaching here while paused
// (command.isQueueableWrite); ack, check_server, check_server_failed,
// and down envelopes always reach here immediately regardless of pause
// state.
func (s *Server) handleEnvelope(env transport.Envelope) {
	switch env.Kind {
	case transport.KindRemoteOp:
		body, ok := env.Body.(transport.RemoteOp)
		if !ok {
			s.log.Warnf("%s: malformed remote_op from %s, ignoring", s.name, env.From)
			return
		}
		s.processRemoteOp(body, env.From)
	case transport.KindAck:
		body, ok := env.Body.(transport.AckMsg)
		if !ok {
			s.log.Warnf("%s: malformed ack from %s, ignoring", s.name, env.From)
			return
		}
		s.aggregator.Ack(body.Ref, body.From)
	case transport.KindCheckServer:
		body, ok := env.Body.(transport.CheckServer)
		if !ok {
			s.log.Warnf("%s: malformed check_server from %s, ignoring", s.name, env.From)
			return
		}
		s.handleCheckServer(body, env.From)
	case transport.KindCheckServerFailed:
		body, ok := env.Body.(transport.CheckServerFailed)
		if !ok {
			s.log.Warnf("%s: malformed check_server_failed from %s, ignoring", s.name, env.From)
			return
		}
		s.handleCheckServerFailed(body, env.From)
	case transport.KindDown:
		body, _ := env.Body.(transport.Down)
		s.handlePeerDown(env.From, body.Reason)
	default:
		s.log.Warnf("%s: unexpected envelope kind %d from %s, ignoring", s.name, env.Kind, env.From)
	}
}

// processRemoteOp is spec.md §4.3.1 "On receipt of remote_op": filter
// by alias, apply, ack back.
func (s *Server) processRemoteOp(body transport.RemoteOp, from types.ServerID) {
	if _, ok := s.aliasOwner[body.Alias]; !ok {
		s.log.Warnf("%s: discarding remote_op from %s on unknown/disabled alias %s", s.name, from, body.Alias)
		return
	}

	s.contentsMu.Lock()
	err := s.contents.apply(body.Op)
	s.contentsMu.Unlock()
	if err != nil {
		s.log.Errorf("%s: failed applying remote_op from %s: %v", s.name, from, err)
		return
	}

	ackEnv := transport.Envelope{
		Kind: transport.KindAck,
		From: s.id,
		To:   body.ReplyTo,
		Body: transport.AckMsg{Ref: body.Ref, From: s.id},
	}
	if err := s.transport.Send(ackEnv); err != nil {
		s.log.Errorf("%s: failed acking %s to %s: %v", s.name, body.Ref, body.ReplyTo, err)
	}
}

// deliver pushes resp to waiter without ever blocking the actor
// goroutine; every waiter channel handed to the actor is buffered
// with capacity 1.
func deliver(waiter chan<- types.Response, resp types.Response) {
	if waiter == nil {
		return
	}
	select {
	case waiter <- resp:
	default:
	}
}
