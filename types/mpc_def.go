package types

// HelloMessage is exchanged once, right after the channels are connected,
// to agree on the session parameters.
//
// - implements types.Message
type HelloMessage struct {
	// SessionID is set by party 0 only. The other parties adopt it.
	SessionID string

	// Fingerprint is the digest of the parameters every party must share:
	// protocol, party set, precision, avg policy and column schema.
	Fingerprint string

	// ZeroKey is the PRNG key of the sender. It is only sent to the next
	// party in the ring and is empty otherwise.
	ZeroKey []byte
}

// RoundMessage carries the vector a party sends to a peer in one round.
// The header of a request is a RoundMessage of round HeaderRound with no
// values.
//
// - implements types.Message
type RoundMessage struct {
	Request uint64
	Round   int
	// Columns is the sender's column count for the request.
	Columns int
	// Op is the sender's operation. Only set in the header.
	Op     string `json:",omitempty"`
	Values []uint64
}

// HeaderRound is the round index of the request header, exchanged before
// the first round of shares.
const HeaderRound = -1
