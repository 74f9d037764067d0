package crit

import (
	"testing"

	"github.com/critdb/crit/pkg/crit/transport"
	"github.com/critdb/crit/pkg/crit/types"
)

func TestMakeAliasesForMintsDistinctAliases(t *testing.T) {
	registry := transport.NewRegistry()
	srv := startTestServer(t, registry, "alias-mint", types.DefaultOptions())
	defer srv.Stop(nil)

	p1, p2 := types.ServerID("p1"), types.ServerID("p2")
	aliases := srv.MakeAliasesFor([]types.ServerID{p1, p2})

	if len(aliases) != 2 {
		t.Fatalf("MakeAliasesFor returned %d aliases, want 2", len(aliases))
	}
	if aliases[p1] == aliases[p2] {
		t.Fatalf("aliases for distinct callers collided: %v", aliases[p1])
	}

	info := srv.Info()
	if _, ok := info.PendingAliases[p1]; !ok {
		t.Fatalf("PendingAliases missing %s after MakeAliasesFor", p1)
	}
	if _, ok := info.PendingAliases[p2]; !ok {
		t.Fatalf("PendingAliases missing %s after MakeAliasesFor", p2)
	}
}

func TestSetPeerAliasRecordedInOutgoingAlias(t *testing.T) {
	registry := transport.NewRegistry()
	srv := startTestServer(t, registry, "alias-outgoing", types.DefaultOptions())
	defer srv.Stop(nil)

	peer := types.ServerID("peer-1")
	alias := types.NewAlias()
	srv.SetPeerAlias(peer, alias)

	info := srv.Info()
	if info.OutgoingAlias[peer] != alias {
		t.Fatalf("OutgoingAlias[%s] = %v, want %v", peer, info.OutgoingAlias[peer], alias)
	}
}

func TestDisableAliasMovesOwnershipToDisabled(t *testing.T) {
	registry := transport.NewRegistry()
	srv := startTestServer(t, registry, "alias-disable", types.DefaultOptions())
	defer srv.Stop(nil)

	alias := types.NewAlias()
	srv.aliasOwner[alias] = types.ServerID("owner")
	srv.disableAlias(alias)

	if _, ok := srv.aliasOwner[alias]; ok {
		t.Fatal("disableAlias left the alias in aliasOwner")
	}
	if _, ok := srv.disabledAlias[alias]; !ok {
		t.Fatal("disableAlias did not record the alias as disabled")
	}
}
