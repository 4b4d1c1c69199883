// Package channel implements an in-memory transport. All parties of a
// Network live in the same process; it is used by tests and by the local
// simulation, and supports fault injection.
package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.dedis.ch/mpcstats/transport"
	"golang.org/x/xerrors"
)

const queueSize = 1024

// NewNetwork returns an empty in-memory network.
func NewNetwork() *Network {
	return &Network{
		nodes:   map[int]*node{},
		links:   map[[2]int]*link{},
		changed: make(chan struct{}),
	}
}

// Network is a hub connecting in-memory parties.
type Network struct {
	sync.Mutex
	nodes   map[int]*node
	links   map[[2]int]*link
	changed chan struct{}
}

type node struct {
	id    int
	muted atomic.Bool
	ins   packets
	outs  packets
}

// link is the undirected connection between two parties. queues[0] carries
// packets from the lower ID to the higher one.
type link struct {
	queues [2]chan transport.Packet
	done   chan struct{}
	once   sync.Once
}

func (l *link) close() {
	l.once.Do(func() { close(l.done) })
}

func pairKey(a, b int) [2]int {
	if a < b {
		return [2]int{a, b}
	}
	return [2]int{b, a}
}

// Transport returns a transport attached to this network.
func (n *Network) Transport() transport.Transport {
	return &Transport{network: n}
}

// Transport implements transport.Transport over a Network.
type Transport struct {
	network *Network
}

// Connect implements transport.Transport. It blocks until every peer has
// called Connect on the same network.
func (t *Transport) Connect(ctx context.Context, self transport.Endpoint,
	peers []transport.Endpoint) (map[int]transport.Channel, error) {

	n := t.network

	n.Lock()
	if _, ok := n.nodes[self.ID]; ok {
		n.Unlock()
		return nil, xerrors.Errorf("party %d already connected", self.ID)
	}
	me := &node{id: self.ID}
	n.nodes[self.ID] = me
	for _, p := range peers {
		key := pairKey(self.ID, p.ID)
		if _, ok := n.links[key]; !ok {
			n.links[key] = &link{
				queues: [2]chan transport.Packet{
					make(chan transport.Packet, queueSize),
					make(chan transport.Packet, queueSize),
				},
				done: make(chan struct{}),
			}
		}
	}
	close(n.changed)
	n.changed = make(chan struct{})
	n.Unlock()

	// rendezvous
	for {
		n.Lock()
		ready := true
		for _, p := range peers {
			if _, ok := n.nodes[p.ID]; !ok {
				ready = false
				break
			}
		}
		changed := n.changed
		n.Unlock()

		if ready {
			break
		}

		select {
		case <-ctx.Done():
			n.Lock()
			delete(n.nodes, self.ID)
			n.Unlock()
			return nil, xerrors.Errorf("waiting for peers: %w", ctx.Err())
		case <-changed:
		}
	}

	n.Lock()
	defer n.Unlock()

	channels := make(map[int]transport.Channel, len(peers))
	for _, p := range peers {
		l := n.links[pairKey(self.ID, p.ID)]
		out, in := 0, 1
		if self.ID > p.ID {
			out, in = 1, 0
		}
		channels[p.ID] = &Channel{
			self: me,
			peer: p.ID,
			out:  l.queues[out],
			in:   l.queues[in],
			link: l,
		}
	}
	return channels, nil
}

// Disconnect closes every channel of the party, as if its process died.
func (n *Network) Disconnect(party int) {
	n.Lock()
	defer n.Unlock()

	for key, l := range n.links {
		if key[0] == party || key[1] == party {
			l.close()
		}
	}
}

// Mute drops every packet the party sends from now on, as if it hung.
func (n *Network) Mute(party int) {
	n.Lock()
	defer n.Unlock()

	if nd, ok := n.nodes[party]; ok {
		nd.muted.Store(true)
	}
}

// GetOuts returns the packets sent by the party.
func (n *Network) GetOuts(party int) []transport.Packet {
	n.Lock()
	nd, ok := n.nodes[party]
	n.Unlock()
	if !ok {
		return nil
	}
	return nd.outs.getAll()
}

// GetIns returns the packets received by the party.
func (n *Network) GetIns(party int) []transport.Packet {
	n.Lock()
	nd, ok := n.nodes[party]
	n.Unlock()
	if !ok {
		return nil
	}
	return nd.ins.getAll()
}

// Channel is one side of an in-memory link.
//
// - implements transport.Channel
type Channel struct {
	self *node
	peer int
	out  chan transport.Packet
	in   chan transport.Packet
	link *link
}

// Peer implements transport.Channel
func (c *Channel) Peer() int {
	return c.peer
}

// Send implements transport.Channel
func (c *Channel) Send(pkt transport.Packet, timeout time.Duration) error {
	select {
	case <-c.link.done:
		return xerrors.Errorf("send to %d: %w", c.peer, transport.ErrConnectionLost)
	default:
	}

	c.self.outs.add(pkt)
	if c.self.muted.Load() {
		return nil
	}

	var expired <-chan time.Time
	if timeout != 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case c.out <- pkt.Copy():
		return nil
	case <-c.link.done:
		return xerrors.Errorf("send to %d: %w", c.peer, transport.ErrConnectionLost)
	case <-expired:
		return transport.TimeoutError(timeout)
	}
}

// Recv implements transport.Channel
func (c *Channel) Recv(timeout time.Duration) (transport.Packet, error) {
	var expired <-chan time.Time
	if timeout != 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case pkt := <-c.in:
		c.self.ins.add(pkt)
		return pkt, nil
	case <-c.link.done:
		// deliver what the peer sent before leaving
		select {
		case pkt := <-c.in:
			c.self.ins.add(pkt)
			return pkt, nil
		default:
		}
		return transport.Packet{}, xerrors.Errorf("recv from %d: %w", c.peer, transport.ErrConnectionLost)
	case <-expired:
		return transport.Packet{}, transport.TimeoutError(timeout)
	}
}

// Close implements transport.Channel
func (c *Channel) Close() error {
	select {
	case <-c.link.done:
		return xerrors.Errorf("channel to %d already closed", c.peer)
	default:
	}
	c.link.close()
	return nil
}

type packets struct {
	sync.Mutex
	data []transport.Packet
}

func (p *packets) add(pkt transport.Packet) {
	p.Lock()
	defer p.Unlock()

	p.data = append(p.data, pkt.Copy())
}

func (p *packets) getAll() []transport.Packet {
	p.Lock()
	defer p.Unlock()

	res := make([]transport.Packet, len(p.data))

	for i, pkt := range p.data {
		res[i] = pkt.Copy()
	}

	return res
}
