// Package sharing implements three-party replicated secret sharing over the
// ring Z_2^64.
//
// A secret vector x is split into three components x0, x1, x2 with
// x = x0 + x1 + x2 mod 2^64 (Arithmetic) or x = x0 ^ x1 ^ x2 (Binary). Party i
// holds the pair (x_i, x_i+1), so any two parties together see every
// component and a single party learns nothing about x.
//
// All arithmetic wraps modulo 2^64: sums that exceed the ring silently
// overflow, exactly as uint64 arithmetic does.
package sharing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v5/utils/sampling"
	"golang.org/x/xerrors"
)

const (
	// Parties is the number of parties of the replicated scheme.
	Parties = 3
	// Threshold is the number of shares needed to reconstruct a secret.
	Threshold = 2
)

// ErrInsufficientShares is returned when the shares given to a
// reconstruction do not reach the threshold.
var ErrInsufficientShares = errors.New("insufficient shares")

// ErrInconsistentShares is returned when shares cannot belong to the same
// secret, for instance when two copies of a replicated component disagree.
var ErrInconsistentShares = errors.New("inconsistent shares")

// Scheme tells how the components of a secret combine.
type Scheme int

const (
	// Arithmetic shares combine by addition modulo 2^64.
	Arithmetic Scheme = iota
	// Binary shares combine by XOR.
	Binary
)

func (s Scheme) String() string {
	switch s {
	case Arithmetic:
		return "arithmetic"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// Share is the view a party has of a secret vector.
type Share struct {
	Party  int
	Scheme Scheme
	// First is component Party of the secret.
	First []uint64
	// Second is component Party+1 (mod 3) of the secret.
	Second []uint64
}

// Len returns the length of the shared vector.
func (s Share) Len() int {
	return len(s.First)
}

// Next returns the index of the party after p in the ring.
func Next(p int) int {
	return (p + 1) % Parties
}

// Prev returns the index of the party before p in the ring.
func Prev(p int) int {
	return (p + Parties - 1) % Parties
}

// FromComponents returns the share of party p given all three components.
func FromComponents(p int, scheme Scheme, comps [Parties][]uint64) Share {
	return Share{
		Party:  p,
		Scheme: scheme,
		First:  clone(comps[p]),
		Second: clone(comps[Next(p)]),
	}
}

// ShareArithmetic splits values into the three arithmetic shares. The
// randomness is read from prng, which must be a secure source.
func ShareArithmetic(values []uint64, prng sampling.PRNG) ([Parties]Share, error) {
	return share(values, Arithmetic, prng)
}

// ShareBinary splits values into the three binary shares.
func ShareBinary(values []uint64, prng sampling.PRNG) ([Parties]Share, error) {
	return share(values, Binary, prng)
}

func share(values []uint64, scheme Scheme, prng sampling.PRNG) ([Parties]Share, error) {
	var shares [Parties]Share

	parts, err := SplitAdditive(values, Parties, scheme, prng)
	if err != nil {
		return shares, err
	}

	comps := [Parties][]uint64{parts[0], parts[1], parts[2]}
	for p := 0; p < Parties; p++ {
		shares[p] = FromComponents(p, scheme, comps)
	}
	return shares, nil
}

// Reconstruct recombines the secret from the given shares. Every component
// that is present twice is checked for consistency.
func Reconstruct(shares []Share) ([]uint64, error) {
	if len(shares) == 0 {
		return nil, xerrors.Errorf("no share given: %w", ErrInsufficientShares)
	}

	scheme := shares[0].Scheme
	size := shares[0].Len()

	var comps [Parties][]uint64
	place := func(idx int, comp []uint64, owner int) error {
		if comps[idx] == nil {
			comps[idx] = comp
			return nil
		}
		for i := range comp {
			if comps[idx][i] != comp[i] {
				return xerrors.Errorf("component %d from party %d differs at %d: %w",
					idx, owner, i, ErrInconsistentShares)
			}
		}
		return nil
	}

	for _, s := range shares {
		if s.Party < 0 || s.Party >= Parties {
			return nil, xerrors.Errorf("invalid party %d: %w", s.Party, ErrInconsistentShares)
		}
		if s.Scheme != scheme {
			return nil, xerrors.Errorf("mixed %s and %s shares: %w", scheme, s.Scheme, ErrInconsistentShares)
		}
		if len(s.First) != size || len(s.Second) != size {
			return nil, xerrors.Errorf("share of party %d has length %d, expected %d: %w",
				s.Party, len(s.First), size, ErrInconsistentShares)
		}
		err := place(s.Party, s.First, s.Party)
		if err != nil {
			return nil, err
		}
		err = place(Next(s.Party), s.Second, s.Party)
		if err != nil {
			return nil, err
		}
	}

	for idx, comp := range comps {
		if comp == nil {
			return nil, xerrors.Errorf("component %d missing, need %d of %d shares: %w",
				idx, Threshold, Parties, ErrInsufficientShares)
		}
	}

	return CombineAdditive(comps[:], Parties, scheme)
}

// RandomVector reads n uniformly random ring elements from prng.
func RandomVector(prng io.Reader, n int) ([]uint64, error) {
	buf := make([]byte, 8*n)
	_, err := io.ReadFull(prng, buf)
	if err != nil {
		return nil, xerrors.Errorf("failed to read randomness: %v", err)
	}
	res := make([]uint64, n)
	for i := range res {
		res[i] = binary.LittleEndian.Uint64(buf[8*i:])
	}
	return res, nil
}

func clone(v []uint64) []uint64 {
	res := make([]uint64, len(v))
	copy(res, v)
	return res
}
