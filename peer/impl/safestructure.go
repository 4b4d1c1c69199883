package impl

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.dedis.ch/mpcstats/transport"
	"go.dedis.ch/mpcstats/types"
	"golang.org/x/xerrors"
)

// slotKey addresses the message a peer sends in one round of one request.
type slotKey struct {
	request uint64
	round   int
	from    int
}

// Mailbox routes round messages to the round waiting for them. Messages of
// rounds not reached yet are buffered, those of finished requests dropped.
type Mailbox struct {
	*sync.Mutex
	slots   map[slotKey]chan types.RoundMessage
	current uint64

	failOnce sync.Once
	failed   chan struct{}
	err      error
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		Mutex:  &sync.Mutex{},
		slots:  map[slotKey]chan types.RoundMessage{},
		failed: make(chan struct{}),
	}
}

func (m *Mailbox) slot(key slotKey) chan types.RoundMessage {
	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan types.RoundMessage, 1)
		m.slots[key] = ch
	}
	return ch
}

// deliver stores a message received from a peer.
func (m *Mailbox) deliver(from int, msg types.RoundMessage) {
	m.Lock()
	defer m.Unlock()

	if msg.Request < m.current {
		log.Debug().Msgf("dropping stale message from %d: %s", from, msg)
		return
	}

	select {
	case m.slot(slotKey{msg.Request, msg.Round, from}) <- msg:
	default:
		log.Warn().Msgf("dropping duplicate message from %d: %s", from, msg)
	}
}

// advance starts a new request and discards what is left of older ones.
func (m *Mailbox) advance(request uint64) {
	m.Lock()
	defer m.Unlock()

	m.current = request
	for key := range m.slots {
		if key.request < request {
			delete(m.slots, key)
		}
	}
}

// fail makes every current and future wait return err.
func (m *Mailbox) fail(err error) {
	m.failOnce.Do(func() {
		m.Lock()
		m.err = err
		m.Unlock()
		close(m.failed)
	})
}

// wait blocks until the message of the slot arrives, the mailbox fails, the
// context is done or the timeout is reached. A zero timeout waits forever.
func (m *Mailbox) wait(ctx context.Context, request uint64, round, from int,
	timeout time.Duration) (types.RoundMessage, error) {

	key := slotKey{request, round, from}

	m.Lock()
	ch := m.slot(key)
	m.Unlock()

	defer func() {
		m.Lock()
		delete(m.slots, key)
		m.Unlock()
	}()

	var expired <-chan time.Time
	if timeout != 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case msg := <-ch:
		return msg, nil
	case <-m.failed:
		// a message already there still counts
		select {
		case msg := <-ch:
			return msg, nil
		default:
		}
		m.Lock()
		defer m.Unlock()
		return types.RoundMessage{}, m.err
	case <-ctx.Done():
		return types.RoundMessage{}, xerrors.Errorf("waiting for %d: %w", from, ctx.Err())
	case <-expired:
		return types.RoundMessage{}, xerrors.Errorf("waiting for round %d from %d: %w",
			round, from, transport.TimeoutError(timeout))
	}
}
