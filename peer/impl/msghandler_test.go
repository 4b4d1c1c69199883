package impl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mpcstats/peer"
	"go.dedis.ch/mpcstats/transport"
	"go.dedis.ch/mpcstats/types"
)

// stuckChannel never completes a send until it is closed.
type stuckChannel struct {
	closed   chan struct{}
	timeouts chan time.Duration
}

func newStuckChannel() *stuckChannel {
	return &stuckChannel{
		closed:   make(chan struct{}),
		timeouts: make(chan time.Duration, 8),
	}
}

func (c *stuckChannel) Peer() int { return 1 }

func (c *stuckChannel) Send(pkt transport.Packet, timeout time.Duration) error {
	c.timeouts <- timeout
	<-c.closed
	return transport.ErrConnectionLost
}

func (c *stuckChannel) Recv(timeout time.Duration) (transport.Packet, error) {
	<-c.closed
	return transport.Packet{}, transport.ErrConnectionLost
}

func (c *stuckChannel) Close() error {
	close(c.closed)
	return nil
}

func stuckSession(ch transport.Channel) *Session {
	return &Session{
		party:    0,
		id:       "session",
		conf:     peer.Configuration{ReceiveTimeout: time.Minute},
		channels: map[int]transport.Channel{1: ch},
	}
}

func Test_Send_Context_Deadline(t *testing.T) {
	ch := newStuckChannel()
	defer ch.Close()
	s := stuckSession(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.send(ctx, 1, types.RoundMessage{Request: 1})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)

	// the transport timeout is bounded by the deadline
	timeout := <-ch.timeouts
	require.LessOrEqual(t, timeout, 100*time.Millisecond)
}

func Test_Send_Context_Canceled(t *testing.T) {
	ch := newStuckChannel()
	defer ch.Close()
	s := stuckSession(ch)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.send(ctx, 1, types.RoundMessage{Request: 1})
	}()

	<-ch.timeouts
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("send must return once the context is canceled")
	}

	// an already canceled context sends nothing
	err := s.send(ctx, 1, types.RoundMessage{Request: 2})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, ch.timeouts)
}

func Test_Send_Unknown_Peer(t *testing.T) {
	s := stuckSession(newStuckChannel())

	err := s.send(context.Background(), 2, types.RoundMessage{})
	require.Error(t, err)
}
