package circuits

import (
	"context"

	"go.dedis.ch/mpcstats/sharing"
)

// A2B converts an arithmetic share into a binary share of the same value.
// The three components are first reduced to two words by a carry-save
// adder, then added with the parallel-prefix adder. Eight rounds.
func (e *Engine) A2B(ctx context.Context, a sharing.Share) (sharing.Share, error) {
	x0 := sharing.Isolate(a, 0, sharing.Binary)
	x1 := sharing.Isolate(a, 1, sharing.Binary)
	x2 := sharing.Isolate(a, 2, sharing.Binary)

	sum := sharing.Xor(sharing.Xor(x0, x1), x2)

	// majority(x0, x1, x2) = ((x0 ^ x2) & (x1 ^ x2)) ^ x2
	maj, err := e.And(ctx, sharing.Xor(x0, x2), sharing.Xor(x1, x2))
	if err != nil {
		return sharing.Share{}, err
	}
	carry := sharing.Shl(sharing.Xor(maj, x2), 1)

	return e.Add(ctx, sum, carry)
}

// BitToArith converts a binary share of a bit, held in the lowest bit of
// each word, into an arithmetic share of 0 or 1. Two rounds.
func (e *Engine) BitToArith(ctx context.Context, bit sharing.Share) (sharing.Share, error) {
	bit = sharing.AndPublic(bit, 1)

	b0 := sharing.Isolate(bit, 0, sharing.Arithmetic)
	b1 := sharing.Isolate(bit, 1, sharing.Arithmetic)
	b2 := sharing.Isolate(bit, 2, sharing.Arithmetic)

	r, err := e.xorArith(ctx, b0, b1)
	if err != nil {
		return sharing.Share{}, err
	}
	return e.xorArith(ctx, r, b2)
}

// xorArith returns a share of x ^ y = x + y - 2xy for arithmetic bits.
func (e *Engine) xorArith(ctx context.Context, x, y sharing.Share) (sharing.Share, error) {
	xy, err := e.Mul(ctx, x, y)
	if err != nil {
		return sharing.Share{}, err
	}
	return sharing.Sub(sharing.Add(x, y), sharing.MulPublic(xy, 2)), nil
}

// LessThanZero returns a binary share of 1 where the arithmetic share is
// negative as a two's-complement number, 0 elsewhere. Eight rounds.
func (e *Engine) LessThanZero(ctx context.Context, a sharing.Share) (sharing.Share, error) {
	b, err := e.A2B(ctx, a)
	if err != nil {
		return sharing.Share{}, err
	}
	return sharing.Bit(b, 63), nil
}

// Mux returns a share of b where the arithmetic bit c is 1 and of a where
// it is 0. One round.
func (e *Engine) Mux(ctx context.Context, a, b, c sharing.Share) (sharing.Share, error) {
	d, err := e.Mul(ctx, c, sharing.Sub(b, a))
	if err != nil {
		return sharing.Share{}, err
	}
	return sharing.Add(a, d), nil
}
