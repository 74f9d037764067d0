package crit

import (
	"testing"

	"github.com/critdb/crit/pkg/crit/transport"
	"github.com/critdb/crit/pkg/crit/types"
)

func TestStageThenApplyDumpInstallsContentsAndPeers(t *testing.T) {
	registry := transport.NewRegistry()
	local := startTestServer(t, registry, "dump-local", types.DefaultOptions())
	peer := startTestServer(t, registry, "dump-peer", types.DefaultOptions())
	defer func() {
		local.Stop(nil)
		peer.Stop(nil)
	}()

	aliases := local.MakeAliasesFor([]types.ServerID{peer.ID()})
	alias, ok := aliases[peer.ID()]
	if !ok {
		t.Fatalf("MakeAliasesFor did not mint an alias for %s", peer.ID())
	}

	ref := types.NewJoinRef()
	dump := []types.Record{{"a", 1}, {"b", 2}}
	token := local.StageDump([]types.ServerID{peer.ID()}, ref, dump)

	if err := local.ApplyDump(token); err != nil {
		t.Fatalf("ApplyDump failed: %v", err)
	}

	got := local.Dump()
	if !dumpRecordsEqual(got, dump) {
		t.Fatalf("Dump() after ApplyDump = %v, want %v", got, dump)
	}

	pids := local.OtherPids()
	if len(pids) != 1 || pids[0] != peer.ID() {
		t.Fatalf("OtherPids() after ApplyDump = %v, want [%s]", pids, peer.ID())
	}

	info := local.Info()
	if info.JoinRef != ref {
		t.Fatalf("Info().JoinRef = %v, want %v", info.JoinRef, ref)
	}
	if _, stillPending := info.PendingAliases[peer.ID()]; stillPending {
		t.Fatal("alias for peer still pending after ApplyDump, want promoted")
	}

	// ApplyDump already returned, so the actor's write to aliasOwner
	// happens-before this read (synchronized through the errOut
	// channel); safe to check directly in the same package's test.
	if owner, ok := local.aliasOwner[alias]; !ok || owner != peer.ID() {
		t.Fatalf("aliasOwner[%s] = (%s, %v), want (%s, true)", alias, owner, ok, peer.ID())
	}
}

func TestApplyDumpUnknownRefFails(t *testing.T) {
	registry := transport.NewRegistry()
	srv := startTestServer(t, registry, "dump-unknown", types.DefaultOptions())
	defer srv.Stop(nil)

	if err := srv.ApplyDump(types.Token("bogus")); err != types.ErrUnknownDumpRef {
		t.Fatalf("ApplyDump(bogus) = %v, want ErrUnknownDumpRef", err)
	}
}

func dumpRecordsEqual(a, b []types.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
