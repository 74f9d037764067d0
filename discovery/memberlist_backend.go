package discovery

import (
	"context"

	"github.com/hashicorp/memberlist"
)

// MemberlistBackend drives node discovery off a gossip-based
// membership list, grounded on the same library and usage pattern as
// alertmanager's cluster.Peer (cluster/cluster.go) and moby's
// networkdb (networkdb.go): both keep a *memberlist.Memberlist alive
// in the background and read Members() for the current view.
type MemberlistBackend struct {
	ml *memberlist.Memberlist
}

// NewMemberlistBackend starts a memberlist agent bound to bindAddr,
// joining seeds if any are given.
func NewMemberlistBackend(name, bindAddr string, seeds []string) (*MemberlistBackend, error) {
	conf := memberlist.DefaultLANConfig()
	conf.Name = name
	if bindAddr != "" {
		host, port, err := splitHostPort(bindAddr)
		if err != nil {
			return nil, err
		}
		conf.BindAddr = host
		conf.BindPort = port
		conf.AdvertisePort = port
	}

	ml, err := memberlist.Create(conf)
	if err != nil {
		return nil, err
	}
	if len(seeds) > 0 {
		if _, err := ml.Join(seeds); err != nil {
			return nil, err
		}
	}
	return &MemberlistBackend{ml: ml}, nil
}

// GetNodes implements Backend by translating the current gossip
// membership view into discovery.Node values.
func (b *MemberlistBackend) GetNodes(_ context.Context) ([]Node, error) {
	members := b.ml.Members()
	nodes := make([]Node, 0, len(members))
	for _, m := range members {
		nodes = append(nodes, Node{Name: m.Name, Addr: m.Address()})
	}
	return nodes, nil
}

// Leave gracefully detaches from the gossip cluster, spec.md's
// discovery backend lifecycle ending when the owning process stops.
func (b *MemberlistBackend) Leave(timeoutMs int) error {
	return b.ml.Leave(msDuration(timeoutMs))
}
