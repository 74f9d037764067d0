package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jabolina/relt/pkg/relt"

	"github.com/critdb/crit/pkg/crit/types"
)

// ReltTransport is the real, cross-process Transport implementation,
// adapted line-for-line in spirit from the teacher's
// pkg/mcast/core/transport.go ReliableTransport: one relt.Relt per
// server, messages JSON-marshaled onto it, a background goroutine
// pumping relt.Consume() into this transport's Inbox channel.
//
// spec.md §1 explicitly puts "implementing that substrate" out of
// scope and only requires one to exist; Local (local.go) is what every
// test in this module actually drives. ReltTransport exists so a
// deployment that does span real processes has a concrete, grounded
// option rather than an invented one.
type ReltTransport struct {
	log types.Logger

	self types.ServerID
	r    *relt.Relt

	producer chan Envelope

	ctx    context.Context
	cancel context.CancelFunc
}

var _ Transport = (*ReltTransport)(nil)

// NewReltTransport starts a relt-backed transport for self, joining
// the exchange group named group (one group per segment, mirroring
// the teacher binding peer.Partition to relt.GroupAddress).
func NewReltTransport(self types.ServerID, group string, log types.Logger) (*ReltTransport, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = string(self)
	conf.Exchange = relt.GroupAddress(group)
	r, err := relt.NewRelt(*conf)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &ReltTransport{
		log:      log,
		self:     self,
		r:        r,
		producer: make(chan Envelope, 256),
		ctx:      ctx,
		cancel:   cancel,
	}
	go t.poll()
	return t, nil
}

func (t *ReltTransport) Send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		t.log.Errorf("relt transport: failed marshalling envelope %#v: %v", env, err)
		return err
	}
	return t.r.Broadcast(t.ctx, relt.Send{
		Address: relt.GroupAddress(env.To),
		Data:    data,
	})
}

func (t *ReltTransport) Inbox() <-chan Envelope {
	return t.producer
}

func (t *ReltTransport) Close() {
	t.cancel()
	if err := t.r.Close(); err != nil {
		t.log.Errorf("relt transport: failed closing %s: %v", t.self, err)
	}
}

// poll mirrors the teacher's ReliableTransport.poll: pump relt's
// consumer channel into our own typed Envelope channel until the
// transport is closed.
func (t *ReltTransport) poll() {
	listener, err := t.r.Consume()
	if err != nil {
		t.log.Errorf("relt transport: failed starting consumer for %s: %v", t.self, err)
		return
	}
	for {
		select {
		case <-t.ctx.Done():
			return
		case recv, ok := <-listener:
			if !ok {
				return
			}
			t.consume(recv.Origin, relt.Recv{Data: recv.Data, Error: recv.Error})
		}
	}
}

func (t *ReltTransport) consume(origin string, recv relt.Recv) {
	if recv.Error != nil {
		t.log.Errorf("relt transport: %s failed receiving from %s: %v", t.self, origin, recv.Error)
		return
	}
	if recv.Data == nil {
		t.log.Warnf("relt transport: %s received empty payload from %s", t.self, origin)
		return
	}

	var env Envelope
	if err := json.Unmarshal(recv.Data, &env); err != nil {
		t.log.Errorf("relt transport: %s failed unmarshalling payload from %s: %v", t.self, origin, err)
		return
	}

	timeout, cancel := context.WithTimeout(t.ctx, 250*time.Millisecond)
	defer cancel()
	select {
	case <-timeout.Done():
		t.log.Warnf("relt transport: %s dropped envelope from %s: inbox full", t.self, origin)
	case t.producer <- env:
	}
}
