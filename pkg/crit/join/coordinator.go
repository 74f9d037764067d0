package join

import (
	"context"

	"github.com/critdb/crit/pkg/crit"
	"github.com/critdb/crit/pkg/crit/types"
)

// Options carries the optional, test-only checkpoint hook mentioned by
// spec.md §4.4's "opts may include a checkpoint handler used only for
// tests": called after each numbered step completes, letting a test
// assert on partial state mid-protocol or force an abort.
type Options struct {
	Checkpoint func(step string)
}

// Join runs the full join protocol of spec.md §4.4, merging the
// segment local belongs to with the segment remote belongs to under
// the cluster-wide lock named lockKey. dir resolves every member of
// both segments (not just local and remote themselves) to their live
// *crit.Server.
func Join(ctx context.Context, log types.Logger, locker Locker, dir Directory, lockKey string, local, remote types.ServerID, opts Options) error {
	checkpoint := opts.Checkpoint
	if checkpoint == nil {
		checkpoint = func(string) {}
	}

	localSrv, ok := dir.Lookup(local)
	if !ok {
		return &types.JoinStepError{Step: "sanity", Err: types.ErrUnknownServer}
	}
	remoteSrv, ok := dir.Lookup(remote)
	if !ok {
		return &types.JoinStepError{Step: "sanity", Err: types.ErrUnknownServer}
	}

	// Step 1: sanity.
	if local == remote {
		return &types.JoinStepError{Step: "sanity", Err: types.ErrSamePid}
	}
	for _, p := range localSrv.OtherPids() {
		if p == remote {
			return &types.JoinStepError{Step: "sanity", Err: types.ErrAlreadyJoined}
		}
	}
	checkpoint("sanity")

	// Step 2: acquire the cluster-wide lock; single retry on abort,
	// unbounded retry beyond that (spec.md §4.4 step 2, open question
	// (b) notes the single-retry policy is a tuning knob, not an
	// invariant).
	release, err := acquireWithRetry(ctx, log, locker, lockKey)
	if err != nil {
		return &types.JoinStepError{Step: "acquire_lock", Err: err}
	}
	defer release()
	checkpoint("acquire_lock")

	// Step 3: gather peer lists, check disjointness.
	locPids := append([]types.ServerID{local}, localSrv.OtherPids()...)
	remPids := append([]types.ServerID{remote}, remoteSrv.OtherPids()...)
	if overlaps(locPids, remPids) {
		return &types.JoinStepError{Step: "gather_peers", Err: types.ErrSegmentOverlap}
	}
	checkpoint("gather_peers")

	// Step 4: fully-connected check on each side, and a shared join
	// reference within each side.
	if _, err := checkFullyConnected(dir, locPids); err != nil {
		return &types.JoinStepError{Step: "fully_connected", Err: err}
	}
	if _, err := checkFullyConnected(dir, remPids); err != nil {
		return &types.JoinStepError{Step: "fully_connected", Err: err}
	}
	checkpoint("fully_connected")

	// Step 5: pause every member of both segments.
	all := append(append([]types.ServerID{}, locPids...), remPids...)
	tokens, err := pauseAll(dir, all)
	defer unpauseAll(dir, tokens)
	if err != nil {
		return &types.JoinStepError{Step: "pause_all", Err: err}
	}
	checkpoint("pause_all")

	// Step 6: synchronize.
	localSrv.Sync()
	remoteSrv.Sync()
	checkpoint("synchronize")

	// Step 7: dumps (co-resident servers, so RemoteDump == Dump).
	localDump := localSrv.RemoteDump()
	remoteDump := remoteSrv.RemoteDump()
	checkpoint("dumps")

	// Step 8: re-check fully connected using current membership; a
	// concurrent failure mid-pause would show up here.
	if _, err := checkFullyConnected(dir, locPids); err != nil {
		return &types.JoinStepError{Step: "recheck_fully_connected", Err: err}
	}
	if _, err := checkFullyConnected(dir, remPids); err != nil {
		return &types.JoinStepError{Step: "recheck_fully_connected", Err: err}
	}
	checkpoint("recheck_fully_connected")

	// Step 9: resolve conflicts (ordered_set with a handler), or union
	// (bag), or swap (ordered_set without a handler).
	localOpts := localSrv.Info().Opts
	var forLocPids, forRemPids []types.Record
	switch localOpts.Type {
	case types.Bag:
		merged := mergeBagDumps(localDump, remoteDump)
		forLocPids, forRemPids = merged, merged
	default:
		forLocPids, forRemPids = ResolveSorted(localDump, remoteDump, localOpts.KeyPos, localOpts.HandleConflict)
	}
	checkpoint("resolve_conflicts")

	// Step 10: mint a new join reference shared by the merged segment.
	newRef := types.NewJoinRef()
	checkpoint("mint_join_ref")

	// Step 11: install on every reachable member. A member that goes
	// unreachable between pause and install (dir.Lookup failing for it)
	// is excluded from the merged peer set given to everyone else, not
	// just skipped locally: otherwise a server that did apply the dump
	// would list an unreachable member as a peer under newRef while
	// that member itself never adopted newRef, breaking invariant I3
	// ("no server ends up with a peer whose join ref differs", spec.md
	// §4.4.3). A member that IS reachable but whose own ApplyDump call
	// still fails is handled by installSide's original, narrower
	// contract: logged and left on its prior peers/join ref (Open
	// Question (a)).
	allMembers := mergePeerSets(locPids, remPids)
	mergedPeers := reachableMembers(dir, allMembers)
	installSide(dir, log, locPids, mergedPeers, newRef, forLocPids)
	installSide(dir, log, remPids, mergedPeers, newRef, forRemPids)
	checkpoint("install")

	// Step 12 (unpause) happens via the deferred unpauseAll above,
	// regardless of how this function returns.
	if len(mergedPeers) != len(allMembers) {
		return &types.JoinStepError{Step: "install", Err: types.ErrNotFullyConnected}
	}
	return nil
}

// reachableMembers filters ids down to those dir can currently resolve,
// preserving order.
func reachableMembers(dir Directory, ids []types.ServerID) []types.ServerID {
	out := make([]types.ServerID, 0, len(ids))
	for _, id := range ids {
		if _, ok := dir.Lookup(id); ok {
			out = append(out, id)
		}
	}
	return out
}

func overlaps(a, b []types.ServerID) bool {
	set := make(map[types.ServerID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// checkFullyConnected verifies every member of pids agrees that its
// own peer set (plus itself) equals pids, and that all members share
// one join reference, spec.md §4.4 step 4. Returns the shared
// reference.
func checkFullyConnected(dir Directory, pids []types.ServerID) (types.JoinRef, error) {
	want := make(map[types.ServerID]struct{}, len(pids))
	for _, id := range pids {
		want[id] = struct{}{}
	}

	var sharedRef types.JoinRef
	haveRef := false
	for _, id := range pids {
		srv, ok := dir.Lookup(id)
		if !ok {
			return "", types.ErrNotFullyConnected
		}
		got := map[types.ServerID]struct{}{id: {}}
		for _, p := range srv.OtherPids() {
			got[p] = struct{}{}
		}
		if !sameSet(want, got) {
			return "", types.ErrNotFullyConnected
		}
		ref := srv.Info().JoinRef
		if !haveRef {
			sharedRef, haveRef = ref, true
		} else if sharedRef != ref {
			return "", types.ErrNotFullyConnected
		}
	}
	return sharedRef, nil
}

func sameSet(a, b map[types.ServerID]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

func pauseAll(dir Directory, ids []types.ServerID) (map[types.ServerID]crit.PauseToken, error) {
	tokens := make(map[types.ServerID]crit.PauseToken, len(ids))
	for _, id := range ids {
		srv, ok := dir.Lookup(id)
		if !ok {
			return tokens, types.ErrNotFullyConnected
		}
		tokens[id] = srv.Pause(nil)
	}
	return tokens, nil
}

// unpauseAll is spec.md §4.4 step 12: unconditional on every exit
// path, errors logged by the server rather than surfaced here.
func unpauseAll(dir Directory, tokens map[types.ServerID]crit.PauseToken) {
	for id, tok := range tokens {
		if srv, ok := dir.Lookup(id); ok {
			_ = srv.Unpause(tok)
		}
	}
}

func mergePeerSets(locPids, remPids []types.ServerID) []types.ServerID {
	seen := make(map[types.ServerID]struct{}, len(locPids)+len(remPids))
	merged := make([]types.ServerID, 0, len(locPids)+len(remPids))
	for _, id := range append(append([]types.ServerID{}, locPids...), remPids...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	return merged
}

// installSide stages and applies the merged dump + full peer list on
// every member of side, excluding the member itself from its own peer
// list, spec.md §4.4.1. Before staging, each member mints a fresh
// inbound alias per peer, and every reachable peer is told (via
// SetPeerAlias) to present that alias when replicating to the member.
func installSide(dir Directory, log types.Logger, side, mergedPeers []types.ServerID, ref types.JoinRef, dump []types.Record) {
	for _, id := range side {
		srv, ok := dir.Lookup(id)
		if !ok {
			continue
		}
		peers := make([]types.ServerID, 0, len(mergedPeers)-1)
		for _, p := range mergedPeers {
			if p != id {
				peers = append(peers, p)
			}
		}
		for p, alias := range srv.MakeAliasesFor(peers) {
			if peerSrv, ok := dir.Lookup(p); ok {
				peerSrv.SetPeerAlias(id, alias)
			}
		}
		dumpRef := srv.StageDump(peers, ref, dump)
		if err := srv.ApplyDump(dumpRef); err != nil {
			log.Errorf("join: %s failed to apply staged dump: %v", id, err)
		}
	}
}
