package types

import "fmt"

// -----------------------------------------------------------------------------
// HelloMessage

// NewEmpty implements types.Message.
func (m HelloMessage) NewEmpty() Message {
	return &HelloMessage{}
}

// Name implements types.Message.
func (HelloMessage) Name() string {
	return "mpchello"
}

// String implements types.Message.
func (m HelloMessage) String() string {
	return fmt.Sprintf("{mpc hello session=%q fingerprint=%s key=%t}",
		m.SessionID, m.Fingerprint, len(m.ZeroKey) > 0)
}

// -----------------------------------------------------------------------------
// RoundMessage

// NewEmpty implements types.Message.
func (m RoundMessage) NewEmpty() Message {
	return &RoundMessage{}
}

// Name implements types.Message.
func (RoundMessage) Name() string {
	return "mpcround"
}

// String implements types.Message.
func (m RoundMessage) String() string {
	if m.Round == HeaderRound {
		return fmt.Sprintf("{mpc header of request %d: %s over %d columns}",
			m.Request, m.Op, m.Columns)
	}
	return fmt.Sprintf("{mpc round %d of request %d: %d values for %d columns}",
		m.Round, m.Request, len(m.Values), m.Columns)
}
