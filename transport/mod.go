package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
)

// ErrHandshake is returned when a secure channel cannot be authenticated:
// certificate mismatch, unknown authority or an unexpected peer identity.
// Handshake failures are never retried.
var ErrHandshake = errors.New("handshake failed")

// ErrConnectionLost is returned when a channel drops in the middle of a
// session, or when it is used after being closed.
var ErrConnectionLost = errors.New("connection lost")

// Endpoint identifies a party on the network.
type Endpoint struct {
	ID      int
	Address string
	// ServerName is the name expected in the peer's certificate. Defaults to
	// the host part of Address.
	ServerName string
}

// Transport establishes point-to-point channels between parties.
type Transport interface {
	// Connect opens one channel per peer. It blocks until every peer is
	// connected, the context is done, or a fatal error occurs.
	Connect(ctx context.Context, self Endpoint, peers []Endpoint) (map[int]Channel, error)
}

// Channel is an established, ordered, point-to-point link to one peer.
type Channel interface {
	// Peer returns the ID of the remote party.
	Peer() int

	// Send sends a packet to the peer. A zero timeout means no timeout.
	Send(pkt Packet, timeout time.Duration) error

	// Recv blocks until a packet is received, the timeout is reached or the
	// channel is closed. A zero timeout blocks until one of the latter two.
	// In the case the timeout is reached, it returns a TimeoutError.
	Recv(timeout time.Duration) (Packet, error)

	// Close closes the channel. It returns an error if already closed.
	Close() error
}

// TimeoutError is returned when a timeout is reached.
type TimeoutError time.Duration

// Error implements error.
func (err TimeoutError) Error() string {
	return fmt.Sprintf("timeout reached after %s", time.Duration(err))
}

// Is makes every TimeoutError match, whatever its duration.
func (err TimeoutError) Is(target error) bool {
	_, ok := target.(TimeoutError)
	return ok
}

// Packet is the unit exchanged over a channel.
type Packet struct {
	Header *Header
	Msg    *Message
}

// NewHeader returns a header stamped with a fresh packet ID and the current
// time.
func NewHeader(source, destination int, session string) Header {
	return Header{
		PacketID:    xid.New().String(),
		Timestamp:   time.Now().UnixNano(),
		Source:      source,
		Destination: destination,
		Session:     session,
	}
}

// Header contains the metadata of a packet.
type Header struct {
	PacketID    string
	Timestamp   int64
	Source      int
	Destination int

	// Session scopes the packet to one session. Packets of other sessions
	// are dropped by the receiver.
	Session string
}

// Message is a typed payload. Type is the name of a types.Message.
type Message struct {
	Type    string
	Payload json.RawMessage
}

// Marshal encodes the packet.
func (p Packet) Marshal() ([]byte, error) {
	return json.Marshal(&p)
}

// Unmarshal decodes buf into the packet.
func (p *Packet) Unmarshal(buf []byte) error {
	return json.Unmarshal(buf, p)
}

// Copy returns a deep copy of the packet.
func (p Packet) Copy() Packet {
	res := Packet{}
	if p.Header != nil {
		h := *p.Header
		res.Header = &h
	}
	if p.Msg != nil {
		payload := make(json.RawMessage, len(p.Msg.Payload))
		copy(payload, p.Msg.Payload)
		res.Msg = &Message{Type: p.Msg.Type, Payload: payload}
	}
	return res
}

// Size returns the payload size in bytes.
func (p Packet) Size() int {
	if p.Msg == nil {
		return 0
	}
	return len(p.Msg.Payload)
}
