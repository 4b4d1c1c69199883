package impl

import (
	"context"

	"go.dedis.ch/mpcstats/peer"
	"go.dedis.ch/mpcstats/sharing"
	"go.dedis.ch/mpcstats/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// roundComm runs the rounds of one request over the session channels.
//
// - implements circuits.Comm
type roundComm struct {
	session *Session
	request uint64
	columns int
	round   int
}

// broadcast sends msg, with per-peer values, to every peer concurrently.
func (c *roundComm) broadcast(ctx context.Context, msg types.RoundMessage,
	out [sharing.Parties][]uint64) error {

	s := c.session

	g := errgroup.Group{}
	for p := range s.channels {
		p := p
		m := msg
		m.Values = out[p]
		if m.Values == nil {
			m.Values = []uint64{}
		}
		g.Go(func() error {
			return s.send(ctx, p, m)
		})
	}
	return g.Wait()
}

// agree exchanges the request header, operation and column count, before
// any share is sent. Every party receives the same headers, so a
// disagreement fails the request at all of them with ErrColumnMismatch or
// ErrInvalidInput and leaves the session usable. Other errors are
// transport failures.
func (c *roundComm) agree(ctx context.Context, op peer.Op) error {
	s := c.session

	header := types.RoundMessage{
		Request: c.request,
		Round:   types.HeaderRound,
		Columns: c.columns,
		Op:      string(op),
	}
	err := c.broadcast(ctx, header, [sharing.Parties][]uint64{})
	if err != nil {
		return xerrors.Errorf("header: %w", err)
	}

	var mismatch error
	for p := 0; p < sharing.Parties; p++ {
		if p == s.party {
			continue
		}
		msg, err := s.mailbox.wait(ctx, c.request, types.HeaderRound, p, s.conf.ReceiveTimeout)
		if err != nil {
			return xerrors.Errorf("header: %w", err)
		}
		if mismatch != nil {
			continue
		}
		if msg.Columns != c.columns {
			mismatch = xerrors.Errorf("party %d has %d columns, expected %d: %w",
				p, msg.Columns, c.columns, peer.ErrColumnMismatch)
		} else if msg.Op != string(op) {
			mismatch = xerrors.Errorf("party %d runs %q, expected %q: %w",
				p, msg.Op, op, peer.ErrInvalidInput)
		}
	}
	return mismatch
}

// Exchange implements circuits.Comm. The sends to the peers run
// concurrently; the round completes once a message of the same round came
// from every peer.
func (c *roundComm) Exchange(ctx context.Context,
	out [sharing.Parties][]uint64) ([sharing.Parties][]uint64, error) {

	var in [sharing.Parties][]uint64
	s := c.session
	round := c.round
	c.round++

	msg := types.RoundMessage{
		Request: c.request,
		Round:   round,
		Columns: c.columns,
	}
	err := c.broadcast(ctx, msg, out)
	if err != nil {
		return in, xerrors.Errorf("round %d: %w", round, err)
	}

	for p := range s.channels {
		msg, err := s.mailbox.wait(ctx, c.request, round, p, s.conf.ReceiveTimeout)
		if err != nil {
			return in, xerrors.Errorf("round %d: %w", round, err)
		}
		if msg.Columns != c.columns {
			return in, xerrors.Errorf("party %d has %d columns, expected %d: %w",
				p, msg.Columns, c.columns, peer.ErrColumnMismatch)
		}
		in[p] = msg.Values
	}
	return in, nil
}

// current returns the index of the last round started.
func (c *roundComm) current() int {
	if c.round == 0 {
		return 0
	}
	return c.round - 1
}
