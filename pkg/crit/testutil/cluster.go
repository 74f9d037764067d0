// Package testutil provides cluster-building helpers for tests,
// grounded on the teacher's test/testing.go (UnityCluster,
// CreateCluster, WaitThisOrTimeout): a small harness for standing up
// several table servers wired to one in-process transport registry and
// tearing them down cleanly.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/critdb/crit/pkg/crit"
	"github.com/critdb/crit/pkg/crit/definition"
	"github.com/critdb/crit/pkg/crit/join"
	"github.com/critdb/crit/pkg/crit/transport"
	"github.com/critdb/crit/pkg/crit/types"
)

// Cluster is a set of table servers sharing one name prefix, one
// transport registry, and one join directory — the harness a join
// test drives pause/dump/apply through, the way the teacher's
// UnityCluster drives several mcast.Unity instances.
type Cluster struct {
	T         *testing.T
	Servers   []*crit.Server
	Registry  *transport.Registry
	Directory *join.MapDirectory
	Locker    join.Locker
	Logs      []types.Logger
}

// New starts n independent, unjoined table servers named
// "<prefix>-0".."<prefix>-(n-1)", all sharing opts.
func New(t *testing.T, n int, prefix string, opts types.Options) *Cluster {
	t.Helper()

	c := &Cluster{
		T:         t,
		Registry:  transport.NewRegistry(),
		Directory: join.NewMapDirectory(),
		Locker:    join.NewInProcessLocker(),
	}

	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s-%d", prefix, i)
		id := types.NewServerID(name)
		log := definition.NewDefaultLogger(name)
		log.ToggleDebug(false)

		local := c.Registry.Register(id)
		srv, err := crit.Start(name, id, local, log, opts)
		if err != nil {
			t.Fatalf("failed starting server %s: %v", name, err)
		}

		c.Servers = append(c.Servers, srv)
		c.Logs = append(c.Logs, log)
		c.Directory.Register(srv)
	}
	return c
}

// Join merges the segments containing Servers[i] and Servers[j] under
// lockKey, failing the test on error.
func (c *Cluster) Join(i, j int, lockKey string) {
	c.T.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := join.Join(ctx, c.Logs[i], c.Locker, c.Directory, lockKey, c.Servers[i].ID(), c.Servers[j].ID(), join.Options{})
	if err != nil {
		c.T.Fatalf("join %d<->%d failed: %v", i, j, err)
	}
}

// Stop shuts down every server in the cluster.
func (c *Cluster) Stop() {
	for _, srv := range c.Servers {
		srv.Stop(nil)
	}
}

// WaitThisOrTimeout runs cb in a goroutine and reports whether it
// completed within duration, mirroring the teacher's helper of the
// same name.
func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan struct{})
	go func() {
		cb()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}

// AssertAllMatch fails t unless every server in c holds an identical
// dump, mirroring the teacher's UnityCluster.DoesAllClusterMatch.
func AssertAllMatch(t *testing.T, c *Cluster) {
	t.Helper()
	if len(c.Servers) == 0 {
		return
	}
	want := c.Servers[0].Dump()
	for i, srv := range c.Servers[1:] {
		got := srv.Dump()
		if !recordsEqual(want, got) {
			t.Errorf("server %d dump %v differs from server 0 dump %v", i+1, got, want)
		}
	}
}

func recordsEqual(a, b []types.Record) bool {
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
