package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/critdb/crit/pkg/crit"
	"github.com/critdb/crit/pkg/crit/definition"
	"github.com/critdb/crit/pkg/crit/join"
	"github.com/critdb/crit/pkg/crit/transport"
	"github.com/critdb/crit/pkg/crit/types"
)

func startLoopServer(t *testing.T, registry *transport.Registry, dir *join.MapDirectory, name string) *crit.Server {
	t.Helper()
	id := types.NewServerID(name)
	log := definition.NewDefaultLogger(name)
	trans := registry.Register(id)
	srv, err := crit.Start(name, id, trans, log, types.DefaultOptions())
	if err != nil {
		t.Fatalf("start %s: %v", name, err)
	}
	dir.Register(srv)
	return srv
}

func TestLoopTickJoinsUnconnectedKnownNode(t *testing.T) {
	registry := transport.NewRegistry()
	dir := join.NewMapDirectory()
	locker := join.NewInProcessLocker()
	log := definition.NewDefaultLogger("loop-test")

	a := startLoopServer(t, registry, dir, "loop-a")
	b := startLoopServer(t, registry, dir, "loop-b")
	defer func() {
		a.Stop(nil)
		b.Stop(nil)
	}()

	l := &Loop{
		Table:   "t",
		Local:   a.ID(),
		Backend: StaticBackend{Nodes: []Node{{Name: string(b.ID())}}},
		Dir:     dir,
		Locker:  locker,
		Log:     log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l.tick(ctx)

	pids := a.OtherPids()
	if len(pids) != 1 || pids[0] != b.ID() {
		t.Fatalf("a.OtherPids() after tick = %v, want [%s]", pids, b.ID())
	}
}

func TestLoopTickSkipsAlreadyConnectedNode(t *testing.T) {
	registry := transport.NewRegistry()
	dir := join.NewMapDirectory()
	locker := join.NewInProcessLocker()
	log := definition.NewDefaultLogger("loop-test")

	a := startLoopServer(t, registry, dir, "skip-a")
	b := startLoopServer(t, registry, dir, "skip-b")
	defer func() {
		a.Stop(nil)
		b.Stop(nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := join.Join(ctx, log, locker, dir, "skip-lock", a.ID(), b.ID(), join.Options{}); err != nil {
		t.Fatalf("setup join failed: %v", err)
	}

	l := &Loop{
		Table:   "t",
		Local:   a.ID(),
		Backend: StaticBackend{Nodes: []Node{{Name: string(b.ID())}}},
		Dir:     dir,
		Locker:  locker,
		Log:     log,
	}

	// A second tick against an already-connected peer must not attempt
	// another join (which would fail with ErrAlreadyJoined, surfaced
	// only as a log line by tick, never a panic or a hang).
	l.tick(ctx)
	pids := a.OtherPids()
	if len(pids) != 1 || pids[0] != b.ID() {
		t.Fatalf("a.OtherPids() after redundant tick = %v, want unchanged [%s]", pids, b.ID())
	}
}

func TestLoopTickIgnoresNodeNotYetInDirectory(t *testing.T) {
	registry := transport.NewRegistry()
	dir := join.NewMapDirectory()
	locker := join.NewInProcessLocker()
	log := definition.NewDefaultLogger("loop-test")

	a := startLoopServer(t, registry, dir, "lonely-a")
	defer a.Stop(nil)

	l := &Loop{
		Table:   "t",
		Local:   a.ID(),
		Backend: StaticBackend{Nodes: []Node{{Name: "ghost"}}},
		Dir:     dir,
		Locker:  locker,
		Log:     log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	l.tick(ctx)

	if len(a.OtherPids()) != 0 {
		t.Fatalf("a.OtherPids() = %v, want empty (ghost node never registered)", a.OtherPids())
	}
}
