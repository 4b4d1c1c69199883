package circuits

import (
	"context"

	"go.dedis.ch/mpcstats/peer"
	"go.dedis.ch/mpcstats/sharing"
	"golang.org/x/xerrors"
)

// divisionBits is the number of quotient bits computed by SecretAvg. It
// covers every non-negative value of the ring.
const divisionBits = 63

// Sum returns the column-wise sum of the parties' vectors. The sum is local
// on the shares, so only the input and the opening need a round.
func (e *Engine) Sum(ctx context.Context, local []uint64) ([]uint64, error) {
	in, err := e.Input(ctx, local, sharing.Arithmetic)
	if err != nil {
		return nil, err
	}
	return e.Open(ctx, total(in))
}

// Max returns the column-wise maximum of the parties' vectors, read as
// two's-complement numbers below 2^62 in magnitude.
func (e *Engine) Max(ctx context.Context, local []uint64) ([]uint64, error) {
	return e.tournament(ctx, local, true)
}

// Min returns the column-wise minimum of the parties' vectors.
func (e *Engine) Min(ctx context.Context, local []uint64) ([]uint64, error) {
	return e.tournament(ctx, local, false)
}

// tournament compares the parties' inputs in party order. A later party
// replaces the current winner only if it is strictly better, so ties keep
// the earlier party's value.
func (e *Engine) tournament(ctx context.Context, local []uint64, greatest bool) ([]uint64, error) {
	in, err := e.Input(ctx, local, sharing.Arithmetic)
	if err != nil {
		return nil, err
	}

	winner := in[0]
	for p := 1; p < sharing.Parties; p++ {
		var d sharing.Share
		if greatest {
			d = sharing.Sub(winner, in[p])
		} else {
			d = sharing.Sub(in[p], winner)
		}

		lt, err := e.LessThanZero(ctx, d)
		if err != nil {
			return nil, err
		}
		c, err := e.BitToArith(ctx, lt)
		if err != nil {
			return nil, err
		}
		winner, err = e.Mux(ctx, winner, in[p], c)
		if err != nil {
			return nil, err
		}
	}

	return e.Open(ctx, winner)
}

// RevealedAvg returns the total sums and the total row counts of every
// column. Counts are opened first: if one of them is zero, the sums are not
// opened and ErrDivisionByZero is returned.
func (e *Engine) RevealedAvg(ctx context.Context, sums, counts []uint64) ([]uint64, []uint64, error) {
	n := len(sums)

	in, err := e.Input(ctx, append(append([]uint64{}, sums...), counts...), sharing.Arithmetic)
	if err != nil {
		return nil, nil, err
	}
	parts := total(in).Split(n, n)

	rows, err := e.Open(ctx, parts[1])
	if err != nil {
		return nil, nil, err
	}
	for col, r := range rows {
		if r == 0 {
			return nil, nil, xerrors.Errorf("column %d has no row: %w", col, peer.ErrDivisionByZero)
		}
	}

	values, err := e.Open(ctx, parts[0])
	if err != nil {
		return nil, nil, err
	}
	return values, rows, nil
}

// SecretAvg returns the fixed-point quotient of the total sum by the total
// row count of every column, truncated towards zero. Counts stay secret;
// only whether a count is zero is revealed.
func (e *Engine) SecretAvg(ctx context.Context, sums, counts []uint64) ([]uint64, error) {
	n := len(sums)

	in, err := e.Input(ctx, append(append([]uint64{}, sums...), counts...), sharing.Arithmetic)
	if err != nil {
		return nil, err
	}

	bin, err := e.A2B(ctx, total(in))
	if err != nil {
		return nil, err
	}
	parts := bin.Split(n, n)
	num, den := parts[0], parts[1]

	isZero, err := e.IsZero(ctx, den)
	if err != nil {
		return nil, err
	}
	flags, err := e.Open(ctx, isZero)
	if err != nil {
		return nil, err
	}
	for col, f := range flags {
		if f != 0 {
			return nil, xerrors.Errorf("column %d has no row: %w", col, peer.ErrDivisionByZero)
		}
	}

	abs, sign, err := e.Abs(ctx, num)
	if err != nil {
		return nil, err
	}
	quo, err := e.Div(ctx, abs, den, divisionBits)
	if err != nil {
		return nil, err
	}
	res, err := e.Negate(ctx, quo, sign)
	if err != nil {
		return nil, err
	}

	return e.Open(ctx, res)
}

func total(in [sharing.Parties]sharing.Share) sharing.Share {
	res := in[0]
	for _, s := range in[1:] {
		res = sharing.Add(res, s)
	}
	return res
}
