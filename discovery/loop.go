package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/critdb/crit/pkg/crit/join"
	"github.com/critdb/crit/pkg/crit/longtask"
	"github.com/critdb/crit/pkg/crit/types"
)

// DefaultPollInterval is spec.md §6's "polls every 5s (configurable)".
const DefaultPollInterval = 5 * time.Second

// Loop drives joins for one local table server: on every tick it asks
// Backend for the desired node set and calls the join coordinator for
// every node not already a peer, spec.md §6 "a discovery loop polls
// ... and invokes the join coordinator for each (table, node) pair."
type Loop struct {
	Table    string
	Local    types.ServerID
	Backend  Backend
	Dir      join.Directory
	Locker   join.Locker
	Log      types.Logger
	Interval time.Duration
}

// Run blocks, polling until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	nodes, err := l.Backend.GetNodes(ctx)
	if err != nil {
		l.Log.Warnf("discovery(%s): get_nodes failed: %v", l.Table, err)
		return
	}

	localSrv, ok := l.Dir.Lookup(l.Local)
	if !ok {
		l.Log.Errorf("discovery(%s): local server %s not registered in directory", l.Table, l.Local)
		return
	}

	connected := make(map[types.ServerID]struct{}, len(nodes))
	for _, p := range localSrv.OtherPids() {
		connected[p] = struct{}{}
	}

	for _, n := range nodes {
		remote := types.ServerID(n.Name)
		if remote == l.Local {
			continue
		}
		if _, ok := connected[remote]; ok {
			continue
		}
		if _, ok := l.Dir.Lookup(remote); !ok {
			// Known to the backend but not yet reachable through this
			// process's directory; nothing to join against yet.
			continue
		}

		lockKey := fmt.Sprintf("crit/join/%s", l.Table)
		out := longtask.Run(ctx, l.Log, longtask.Options{Name: fmt.Sprintf("join(%s,%s)", l.Local, remote)}, func(ctx context.Context) (interface{}, error) {
			return nil, join.Join(ctx, l.Log, l.Locker, l.Dir, lockKey, l.Local, remote, join.Options{})
		})
		if out.Err != nil {
			l.Log.Warnf("discovery(%s): join %s<->%s failed: %v", l.Table, l.Local, remote, out.Err)
		}
	}
}
