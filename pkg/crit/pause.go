package crit

import (
	"github.com/critdb/crit/pkg/crit/types"
)

// PauseToken is the public handle returned by Pause, spec.md §4.3
// "pause() ... Returns a pause token monitoring the caller."
type PauseToken struct {
	token pauseToken
}

// Pause suspends acceptance of write effects (local application,
// replication emission, remote_op application) until every issued
// token has been Unpause'd. Multiple concurrent pauses are allowed
// (spec.md §4.3.2). If monitor is non-nil, it is treated as a liveness
// channel for the caller: when it closes, the token is released
// automatically exactly as if Unpause had been called — spec.md's
// "DOWN of a pause owner consumes its token(s) automatically".
func (s *Server) Pause(monitor <-chan struct{}) PauseToken {
	out := make(chan pauseToken, 1)
	s.inbox <- command{kind: cmdPause, monitor: monitor, pauseOut: out}
	tok := <-out
	if monitor != nil {
		go s.watchPauseMonitor(tok, monitor)
	}
	return PauseToken{token: tok}
}

func (s *Server) watchPauseMonitor(tok pauseToken, monitor <-chan struct{}) {
	select {
	case <-monitor:
		_ = s.unpauseInternal(tok)
	case <-s.stopped:
	}
}

func (s *Server) handlePause(_ <-chan struct{}, out chan<- pauseToken) {
	tok := newPauseToken()
	s.pauseOwners[tok] = struct{}{}
	out <- tok
}

// Unpause releases one pause token. Spec.md §6: fails with
// ErrUnknownPauseMonitor if the token was never issued or was already
// consumed (I4: unpause-unpause on the same token fails the same way).
func (s *Server) Unpause(tok PauseToken) error {
	return s.unpauseInternal(tok.token)
}

func (s *Server) unpauseInternal(tok pauseToken) error {
	out := make(chan error, 1)
	s.inbox <- command{kind: cmdUnpause, unpauseTok: tok, errOut: out}
	return <-out
}

func (s *Server) handleUnpause(tok pauseToken, out chan<- error) {
	if _, ok := s.pauseOwners[tok]; !ok {
		out <- types.ErrUnknownPauseMonitor
		return
	}
	delete(s.pauseOwners, tok)

	if !s.paused() {
		s.drainPending()
		s.gcPendingAliases()
	}
	out <- nil
}

// drainPending replays every queued local write and remote op in
// arrival order, spec.md §4.3.2 "the pending queue is drained in
// arrival order". Local writes replicate against the current
// (possibly just-changed) peer set; remote ops are re-filtered against
// the current alias set.
func (s *Server) drainPending() {
	jobs := s.pending
	s.pending = nil
	for _, j := range jobs {
		if j.isRemote {
			s.processRemoteOp(j.remote, j.from)
		} else {
			s.doLocalWrite(j.op, j.token, j.waiter)
		}
	}
}

// gcPendingAliases drops pending (not-yet-promoted) inbox aliases
// whose intended peer is no longer part of the current peer set,
// spec.md §4.3.2: "pending aliases that are not referenced by the new
// peer set are dropped".
func (s *Server) gcPendingAliases() {
	current := make(map[types.ServerID]struct{}, len(s.peers))
	for _, p := range s.peers {
		current[p] = struct{}{}
	}
	for peer := range s.pendingInboxAlias {
		if _, ok := current[peer]; !ok {
			delete(s.pendingInboxAlias, peer)
		}
	}
}

