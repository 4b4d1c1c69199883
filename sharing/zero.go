package sharing

import (
	"github.com/tuneinsight/lattigo/v5/utils/sampling"
	"github.com/zeebo/blake3"
	"golang.org/x/xerrors"
)

// KeySize is the size in bytes of a zero-sharing key.
const KeySize = 32

// NewZeroKey draws a fresh zero-sharing key from a secure source.
func NewZeroKey() ([]byte, error) {
	prng, err := sampling.NewPRNG()
	if err != nil {
		return nil, xerrors.Errorf("failed to create prng: %v", err)
	}

	key := make([]byte, KeySize)
	_, err = prng.Read(key)
	if err != nil {
		return nil, xerrors.Errorf("failed to draw key: %v", err)
	}
	return key, nil
}

// ZeroSharer produces this party's part of fresh sharings of zero without
// communication. Party i holds its own key k_i and the key k_i-1 of the
// previous party; its mask is F(k_i) - F(k_i-1), so the masks of the three
// parties cancel out.
//
// All parties must draw the same number of words in the same order after
// each Rekey. A ZeroSharer is not safe for concurrent use.
type ZeroSharer struct {
	own  []byte
	prev []byte

	ownStream  sampling.PRNG
	prevStream sampling.PRNG
}

// NewZeroSharer returns a zero sharer from the party's own key and the key
// received from the previous party.
func NewZeroSharer(own, prev []byte) (*ZeroSharer, error) {
	if len(own) != KeySize || len(prev) != KeySize {
		return nil, xerrors.Errorf("zero-sharing keys must be %d bytes, got %d and %d",
			KeySize, len(own), len(prev))
	}

	z := &ZeroSharer{
		own:  append([]byte(nil), own...),
		prev: append([]byte(nil), prev...),
	}

	err := z.Rekey(nil)
	if err != nil {
		return nil, err
	}
	return z, nil
}

// Rekey restarts both streams from keys derived from the base keys and the
// namespace. Parties rekey with the same namespace before each request.
func (z *ZeroSharer) Rekey(namespace []byte) error {
	own, err := sampling.NewKeyedPRNG(deriveKey(z.own, namespace))
	if err != nil {
		return xerrors.Errorf("failed to key own stream: %v", err)
	}
	prev, err := sampling.NewKeyedPRNG(deriveKey(z.prev, namespace))
	if err != nil {
		return xerrors.Errorf("failed to key previous stream: %v", err)
	}

	z.ownStream = own
	z.prevStream = prev
	return nil
}

// Arithmetic returns n words of this party's part of an arithmetic sharing
// of zero.
func (z *ZeroSharer) Arithmetic(n int) ([]uint64, error) {
	a, b, err := z.draw(n)
	if err != nil {
		return nil, err
	}
	for i := range a {
		a[i] -= b[i]
	}
	return a, nil
}

// Binary returns n words of this party's part of a binary sharing of zero.
func (z *ZeroSharer) Binary(n int) ([]uint64, error) {
	a, b, err := z.draw(n)
	if err != nil {
		return nil, err
	}
	for i := range a {
		a[i] ^= b[i]
	}
	return a, nil
}

func (z *ZeroSharer) draw(n int) ([]uint64, []uint64, error) {
	a, err := RandomVector(z.ownStream, n)
	if err != nil {
		return nil, nil, err
	}
	b, err := RandomVector(z.prevStream, n)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func deriveKey(key, namespace []byte) []byte {
	hasher := blake3.New()
	hasher.Write([]byte("mpcstats zero sharing"))
	hasher.Write(key)
	hasher.Write(namespace)

	sum := hasher.Sum(nil)
	return sum[:KeySize]
}
