package types

import (
	"encoding/json"

	"go.dedis.ch/mpcstats/transport"
	"golang.org/x/xerrors"
)

// Message defines the type of message that can be marshalled/unmarshalled
// over the network.
type Message interface {
	NewEmpty() Message
	Name() string
	String() string
}

// ToTransport wraps a message into a transport message.
func ToTransport(msg Message) (transport.Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Type: msg.Name(), Payload: data}, nil
}

// FromTransport decodes the transport message into a fresh instance of the
// expected message type.
func FromTransport(msg *transport.Message, expected Message) (Message, error) {
	if msg == nil {
		return nil, xerrors.Errorf("empty message, expected %s", expected.Name())
	}
	if msg.Type != expected.Name() {
		return nil, xerrors.Errorf("wrong message type %q, expected %q", msg.Type, expected.Name())
	}
	res := expected.NewEmpty()
	err := json.Unmarshal(msg.Payload, res)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode %s: %v", msg.Type, err)
	}
	return res, nil
}
