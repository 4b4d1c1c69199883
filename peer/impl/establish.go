package impl

import (
	"context"

	"github.com/rs/xid"
	"go.dedis.ch/mpcstats/peer"
	"go.dedis.ch/mpcstats/sharing"
	"go.dedis.ch/mpcstats/transport"
	"go.dedis.ch/mpcstats/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// establish runs the hello exchange. Party 0 issues the session ID, every
// party sends the fingerprint of its parameters to both peers and its
// zero-sharing key to the next party. It reads the first packet of each
// channel directly, before the receive daemons start.
func (s *Session) establish(ctx context.Context) error {
	fingerprint := s.conf.Fingerprint()

	ownKey, err := sharing.NewZeroKey()
	if err != nil {
		return err
	}

	if s.party == 0 {
		s.id = xid.New().String()
	}

	g, _ := errgroup.WithContext(ctx)
	for p := range s.channels {
		p := p
		hello := types.HelloMessage{
			SessionID:   s.id,
			Fingerprint: fingerprint,
		}
		if p == sharing.Next(s.party) {
			hello.ZeroKey = ownKey
		}
		g.Go(func() error {
			return s.send(ctx, p, hello)
		})
	}
	err = g.Wait()
	if err != nil {
		return xerrors.Errorf("failed to send hello: %w", err)
	}

	hellos := map[int]*types.HelloMessage{}
	for p, ch := range s.channels {
		hello, err := s.readHello(ctx, ch)
		if err != nil {
			return err
		}
		hellos[p] = hello
	}

	for p, hello := range hellos {
		if hello.Fingerprint != fingerprint {
			return xerrors.Errorf("party %d has parameters %s, expected %s: %w",
				p, hello.Fingerprint, fingerprint, peer.ErrConfig)
		}
	}

	if s.party != 0 {
		s.id = hellos[0].SessionID
		if s.id == "" {
			return xerrors.Errorf("party 0 issued no session ID: %w", transport.ErrHandshake)
		}
	}

	prevKey := hellos[sharing.Prev(s.party)].ZeroKey
	s.zero, err = sharing.NewZeroSharer(ownKey, prevKey)
	if err != nil {
		return xerrors.Errorf("zero-sharing key of party %d: %v: %w",
			sharing.Prev(s.party), err, transport.ErrHandshake)
	}

	s.log = s.log.With().Str("session", s.id).Logger()
	s.setState(SessionEstablished)
	return nil
}

func (s *Session) readHello(ctx context.Context, ch transport.Channel) (*types.HelloMessage, error) {
	type result struct {
		pkt transport.Packet
		err error
	}
	done := make(chan result, 1)
	go func() {
		pkt, err := ch.Recv(s.conf.ReceiveTimeout)
		done <- result{pkt, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, xerrors.Errorf("waiting for hello of %d: %w", ch.Peer(), ctx.Err())
	}
	if res.err != nil {
		return nil, xerrors.Errorf("hello of %d: %w", ch.Peer(), res.err)
	}

	msg, err := types.FromTransport(res.pkt.Msg, types.HelloMessage{})
	if err != nil {
		return nil, xerrors.Errorf("hello of %d: %v: %w", ch.Peer(), err, transport.ErrHandshake)
	}
	return msg.(*types.HelloMessage), nil
}
