package crit

import (
	"github.com/critdb/crit/pkg/crit/types"
)

// StageDump hands this server a merged dump to install, recording the
// peer set and join reference it belongs to, spec.md §4.4 step 7
// "send_dump": the coordinator computes the merged, conflict-resolved
// dataset once and stages it on every joining server before any of
// them apply it. Returns a token later passed to ApplyDump.
func (s *Server) StageDump(peers []types.ServerID, joinRef types.JoinRef, dump []types.Record) types.Token {
	out := make(chan sendDumpResult, 1)
	s.inbox <- command{kind: cmdSendDump, dumpPeers: peers, dumpJoin: joinRef, dumpData: dump, dumpOut: out}
	res := <-out
	return res.Ref
}

func (s *Server) handleSendDump(peers []types.ServerID, joinRef types.JoinRef, dump []types.Record, out chan<- sendDumpResult) {
	token := types.NewToken()
	s.dumpStaging[token] = stagedDump{dump: dump, peers: peers, joinRef: joinRef}
	out <- sendDumpResult{Ref: token}
}

// ApplyDump installs a previously staged dump, spec.md §4.4 step 8
// "apply_dump": replaces local contents wholesale, adopts the new peer
// set and join reference, and promotes every pending inbox alias whose
// peer is in the new peer set into a live alias. A server must be
// PAUSED (by the coordinator) when this is called; applying while
// unpaused would race with concurrent writes touching contents.
func (s *Server) ApplyDump(ref types.Token) error {
	out := make(chan error, 1)
	s.inbox <- command{kind: cmdApplyDump, dumpRef: ref, errOut: out}
	return <-out
}

func (s *Server) handleApplyDump(ref types.Token) error {
	staged, ok := s.dumpStaging[ref]
	if !ok {
		return types.ErrUnknownDumpRef
	}
	delete(s.dumpStaging, ref)

	s.contentsMu.Lock()
	fresh := newLocalTable(s.opts)
	for _, r := range staged.dump {
		// Install as a plain insert; conflict resolution already
		// happened upstream in the join coordinator (spec.md §4.4.2).
		_ = fresh.apply(types.WriteOp{Kind: types.OpInsert, Records: []types.Record{r}})
	}
	s.contents = fresh
	s.contentsMu.Unlock()

	s.peers = append([]types.ServerID(nil), staged.peers...)
	s.joinRef = staged.joinRef

	current := make(map[types.ServerID]struct{}, len(s.peers))
	for _, p := range s.peers {
		current[p] = struct{}{}
	}
	for peer, alias := range s.pendingInboxAlias {
		if _, ok := current[peer]; !ok {
			continue
		}
		if old, ok := s.peerInboxAlias[peer]; ok && old != alias {
			s.disableAlias(old)
		}
		s.activateAlias(alias, peer)
		s.peerInboxAlias[peer] = alias
		delete(s.pendingInboxAlias, peer)
	}
	return nil
}
