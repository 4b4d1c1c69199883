package circuits

import (
	"context"

	"go.dedis.ch/mpcstats/sharing"
)

const wordSize = 64

// Add returns a binary share of a + b mod 2^64. Seven rounds.
func (e *Engine) Add(ctx context.Context, a, b sharing.Share) (sharing.Share, error) {
	return e.add(ctx, a, b, false)
}

// Sub returns a binary share of a - b mod 2^64, computed as a + ^b + 1.
// Seven rounds.
func (e *Engine) Sub(ctx context.Context, a, b sharing.Share) (sharing.Share, error) {
	return e.add(ctx, a, sharing.Not(b), true)
}

// add is a Kogge-Stone adder. Generate and propagate signals of a bit are
// never both set, so the prefix combination uses XOR instead of OR.
func (e *Engine) add(ctx context.Context, a, b sharing.Share, carryIn bool) (sharing.Share, error) {
	p := sharing.Xor(a, b)
	g, err := e.And(ctx, a, b)
	if err != nil {
		return sharing.Share{}, err
	}
	if carryIn {
		g = sharing.Xor(g, sharing.AndPublic(p, 1))
	}

	n := a.Len()
	G, P := g, p
	for k := uint(1); k < wordSize; k <<= 1 {
		// the last level does not need the propagate signals
		if 2*k >= wordSize {
			t, err := e.And(ctx, P, sharing.Shl(G, k))
			if err != nil {
				return sharing.Share{}, err
			}
			G = sharing.Xor(G, t)
			break
		}

		t, err := e.And(ctx, sharing.Concat(P, P), sharing.Concat(sharing.Shl(G, k), sharing.Shl(P, k)))
		if err != nil {
			return sharing.Share{}, err
		}
		parts := t.Split(n, n)
		G = sharing.Xor(G, parts[0])
		P = parts[1]
	}

	sum := sharing.Xor(p, sharing.Shl(G, 1))
	if carryIn {
		sum = sharing.XorPublic(sum, ones(n, 1))
	}
	return sum, nil
}

// MuxBinary returns a share of b where mask is all ones and of a where it
// is zero. One round.
func (e *Engine) MuxBinary(ctx context.Context, a, b, mask sharing.Share) (sharing.Share, error) {
	d, err := e.And(ctx, mask, sharing.Xor(a, b))
	if err != nil {
		return sharing.Share{}, err
	}
	return sharing.Xor(a, d), nil
}

// IsZero returns a binary share of 1 in the lowest bit where the binary
// share is zero, 0 elsewhere. It ANDs the complemented bits in a tree. Six
// rounds.
func (e *Engine) IsZero(ctx context.Context, a sharing.Share) (sharing.Share, error) {
	z := sharing.Not(a)
	for k := uint(wordSize / 2); k >= 1; k >>= 1 {
		var err error
		z, err = e.And(ctx, z, sharing.Shr(z, k))
		if err != nil {
			return sharing.Share{}, err
		}
	}
	return sharing.Bit(z, 0), nil
}

// Div returns a binary share of floor(num / den) by restoring division.
// Both operands must be non-negative; den must be below 2^62 and not zero.
// Only the lowest bits of num are considered. Eight rounds per bit.
func (e *Engine) Div(ctx context.Context, num, den sharing.Share, bits uint) (sharing.Share, error) {
	n := num.Len()
	rem := sharing.Zero(e.party, sharing.Binary, n)
	quo := sharing.Zero(e.party, sharing.Binary, n)

	for i := int(bits) - 1; i >= 0; i-- {
		rem = sharing.Xor(sharing.Shl(rem, 1), sharing.Bit(num, uint(i)))

		t, err := e.Sub(ctx, rem, den)
		if err != nil {
			return sharing.Share{}, err
		}

		// all ones where rem >= den
		ge := sharing.Not(sharing.SignMask(t))
		quo = sharing.Xor(quo, sharing.Shl(sharing.AndPublic(ge, 1), uint(i)))

		rem, err = e.MuxBinary(ctx, rem, t, ge)
		if err != nil {
			return sharing.Share{}, err
		}
	}
	return quo, nil
}

// Abs returns binary shares of |a| and of the sign mask of a. Seven rounds.
func (e *Engine) Abs(ctx context.Context, a sharing.Share) (sharing.Share, sharing.Share, error) {
	m := sharing.SignMask(a)
	abs, err := e.Negate(ctx, a, m)
	if err != nil {
		return sharing.Share{}, sharing.Share{}, err
	}
	return abs, m, nil
}

// Negate returns a binary share of -a where mask is all ones and of a where
// it is zero. Seven rounds.
func (e *Engine) Negate(ctx context.Context, a, mask sharing.Share) (sharing.Share, error) {
	return e.Add(ctx, sharing.Xor(a, mask), sharing.AndPublic(mask, 1))
}

func ones(n int, v uint64) []uint64 {
	res := make([]uint64, n)
	for i := range res {
		res[i] = v
	}
	return res
}
