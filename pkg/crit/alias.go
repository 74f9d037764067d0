package crit

import (
	"github.com/critdb/crit/pkg/crit/bitset"
	"github.com/critdb/crit/pkg/crit/types"
)

// MakeAliasesFor mints one fresh destination alias per caller and
// stages them as pending, spec.md §4.4 step "mint pending aliases for
// every server about to join". A pending alias only becomes live
// (accepted by processRemoteOp) once ApplyDump promotes it; this keeps
// a half-joined peer from being able to write into this table before
// the join completes.
func (s *Server) MakeAliasesFor(callers []types.ServerID) map[types.ServerID]types.Alias {
	out := make(chan map[types.ServerID]types.Alias, 1)
	s.inbox <- command{kind: cmdMakeAliasesFor, callers: callers, aliasOut: out}
	return <-out
}

func (s *Server) handleMakeAliasesFor(callers []types.ServerID) map[types.ServerID]types.Alias {
	result := make(map[types.ServerID]types.Alias, len(callers))
	for _, c := range callers {
		alias := types.NewAlias()
		s.pendingInboxAlias[c] = alias
		result[c] = alias
	}
	return result
}

// SetPeerAlias tells this server which alias to present when it sends
// remote_op to peer, spec.md §4.4's "exchange destination aliases"
// step. In a real cross-process deployment this would travel over the
// wire as part of the join handshake; here the join coordinator calls
// it directly on both sides since every server is co-resident.
func (s *Server) SetPeerAlias(peer types.ServerID, alias types.Alias) {
	done := make(chan struct{})
	s.inbox <- command{kind: cmdSetPeerAlias, aliasPeer: peer, aliasValue: alias, doneOut: done}
	<-done
}

// disableAlias revokes one of this server's own inbound aliases
// without removing the owning peer, spec.md §4.3.3's "an alias can be
// disabled independently of its owner being removed" (used when a
// join is aborted after aliases were minted but before the dump
// completed).
func (s *Server) disableAlias(alias types.Alias) {
	delete(s.aliasOwner, alias)
	s.disabledAlias[alias] = struct{}{}
	if idx, ok := s.aliasIndex[alias]; ok {
		s.aliasFlags = bitset.ApplyMask(bitset.UnsetFlagMask(idx), s.aliasFlags)
	}
}

// activateAlias records alias as owned by a peer and marks its bit
// live in aliasFlags, minting a fresh index the first time this alias
// goes active. Called from handleApplyDump when a pending inbox alias
// is promoted.
func (s *Server) activateAlias(alias types.Alias, owner types.ServerID) {
	s.aliasOwner[alias] = owner
	idx, ok := s.aliasIndex[alias]
	if !ok {
		idx = s.nextAliasIdx
		s.nextAliasIdx++
		s.aliasIndex[alias] = idx
	}
	s.aliasFlags = bitset.SetFlags([]int{idx}, s.aliasFlags)
}
