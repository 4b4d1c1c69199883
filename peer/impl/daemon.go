package impl

import (
	"context"

	"go.dedis.ch/mpcstats/transport"
	"golang.org/x/xerrors"
)

// ReceiveDaemon starts a loop that reads the packets of a peer channel and
// hands them to the packet handler. Any channel error fails the mailbox,
// unless the session is shutting down.
func (s *Session) ReceiveDaemon(ctx context.Context, ch transport.Channel) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		for {
			pkt, err := ch.Recv(0)
			if err != nil {
				select {
				case <-ctx.Done():
				default:
					s.mailbox.fail(xerrors.Errorf("channel to %d: %w", ch.Peer(), err))
				}
				return
			}

			err = s.ProcessPkt(ch.Peer(), pkt)
			if err != nil {
				s.log.Warn().Err(err).Int("from", ch.Peer()).Msg("dropping packet")
			}
		}
	}()
}
