package impl

import (
	"context"
	"time"

	"go.dedis.ch/mpcstats/transport"
	"go.dedis.ch/mpcstats/types"
	"golang.org/x/xerrors"
)

// ProcessPkt routes a packet received from a peer once the session is
// established.
func (s *Session) ProcessPkt(from int, pkt transport.Packet) error {
	if pkt.Header == nil || pkt.Msg == nil {
		return xerrors.Errorf("malformed packet")
	}
	if pkt.Header.Session != s.id {
		return xerrors.Errorf("packet of session %q in session %q", pkt.Header.Session, s.id)
	}
	if pkt.Header.Source != from {
		return xerrors.Errorf("packet from %d claims to come from %d", from, pkt.Header.Source)
	}

	switch pkt.Msg.Type {
	case types.RoundMessage{}.Name():
		return s.ProcessRoundMsg(from, pkt.Msg)
	default:
		return xerrors.Errorf("unexpected message type %q", pkt.Msg.Type)
	}
}

// ProcessRoundMsg stores a round message in the mailbox.
func (s *Session) ProcessRoundMsg(from int, msg *transport.Message) error {
	decoded, err := types.FromTransport(msg, types.RoundMessage{})
	if err != nil {
		return err
	}
	roundMsg := decoded.(*types.RoundMessage)

	s.log.Debug().Int("from", from).Msgf("received %s", roundMsg)
	s.mailbox.deliver(from, *roundMsg)
	return nil
}

// send wraps msg in a packet and sends it to the peer. The send gives up
// once ctx is done, and its timeout never exceeds the context deadline.
func (s *Session) send(ctx context.Context, to int, msg types.Message) error {
	ch, ok := s.channels[to]
	if !ok {
		return xerrors.Errorf("no channel to %d", to)
	}

	timeout := s.conf.ReceiveTimeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return xerrors.Errorf("send to %d: %w", to, context.DeadlineExceeded)
		}
		if timeout == 0 || left < timeout {
			timeout = left
		}
	}
	if ctx.Err() != nil {
		return xerrors.Errorf("send to %d: %w", to, ctx.Err())
	}

	transpMsg, err := types.ToTransport(msg)
	if err != nil {
		return xerrors.Errorf("failed to marshal %s: %v", msg.Name(), err)
	}
	header := transport.NewHeader(s.party, to, s.id)
	pkt := transport.Packet{Header: &header, Msg: &transpMsg}

	// the channel is closed on abort, which releases a send left behind
	done := make(chan error, 1)
	go func() {
		done <- ch.Send(pkt, timeout)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return xerrors.Errorf("send to %d: %w", to, ctx.Err())
	}
}
