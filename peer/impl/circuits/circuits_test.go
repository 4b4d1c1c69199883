package circuits

import (
	"context"
	"math"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/mpcstats/peer"
	"go.dedis.ch/mpcstats/sharing"
)

func neg(v uint64) uint64 {
	return -v
}

func Test_a2b(t *testing.T) {
	engines := newEngines(t)
	values := []uint64{0, 1, 35, neg(1), neg(35), 1 << 62, math.MaxUint64 >> 1}
	a := share(t, values, sharing.Arithmetic)

	res, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		b, err := e.A2B(ctx, a[e.Party()])
		if err != nil {
			return nil, err
		}
		return e.Open(ctx, b)
	})
	require.NoError(t, err)

	for p := range res {
		require.Equal(t, values, res[p])
		require.Equal(t, 8+1, engines[p].Rounds())
	}
}

func Test_binary_add_sub(t *testing.T) {
	engines := newEngines(t)
	xs := []uint64{0, 5, math.MaxUint64, 1 << 63, 123456789}
	ys := []uint64{0, 7, 1, 1 << 63, 987654321}
	x := share(t, xs, sharing.Binary)
	y := share(t, ys, sharing.Binary)

	res, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		p := e.Party()
		sum, err := e.Add(ctx, x[p], y[p])
		if err != nil {
			return nil, err
		}
		diff, err := e.Sub(ctx, x[p], y[p])
		if err != nil {
			return nil, err
		}
		return e.Open(ctx, sharing.Concat(sum, diff))
	})
	require.NoError(t, err)

	expected := make([]uint64, 0, 2*len(xs))
	for i := range xs {
		expected = append(expected, xs[i]+ys[i])
	}
	for i := range xs {
		expected = append(expected, xs[i]-ys[i])
	}
	for p := range res {
		require.Equal(t, expected, res[p])
	}
}

func Test_compare_and_mux(t *testing.T) {
	engines := newEngines(t)
	a := share(t, []uint64{1, 9, 4, neg(3)}, sharing.Arithmetic)
	b := share(t, []uint64{2, 8, 4, 5}, sharing.Arithmetic)

	res, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		p := e.Party()
		lt, err := e.LessThanZero(ctx, sharing.Sub(a[p], b[p]))
		if err != nil {
			return nil, err
		}
		c, err := e.BitToArith(ctx, lt)
		if err != nil {
			return nil, err
		}
		// larger of a and b
		m, err := e.Mux(ctx, a[p], b[p], c)
		if err != nil {
			return nil, err
		}
		return e.Open(ctx, sharing.Concat(c, m))
	})
	require.NoError(t, err)

	for p := range res {
		require.Equal(t, []uint64{1, 0, 0, 1, 2, 9, 4, 5}, res[p])
	}
}

func Test_is_zero(t *testing.T) {
	engines := newEngines(t)
	a := share(t, []uint64{0, 1, 1 << 63, math.MaxUint64, 300}, sharing.Binary)

	res, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		z, err := e.IsZero(ctx, a[e.Party()])
		if err != nil {
			return nil, err
		}
		return e.Open(ctx, z)
	})
	require.NoError(t, err)

	for p := range res {
		require.Equal(t, []uint64{1, 0, 0, 0, 0}, res[p])
		require.Equal(t, 6+1, engines[p].Rounds())
	}
}

func Test_div(t *testing.T) {
	engines := newEngines(t)
	nums := []uint64{35 << 16, 100, 7, 0, 1 << 61}
	dens := []uint64{300, 10, 9, 4, 3}
	num := share(t, nums, sharing.Binary)
	den := share(t, dens, sharing.Binary)

	res, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		q, err := e.Div(ctx, num[e.Party()], den[e.Party()], divisionBits)
		if err != nil {
			return nil, err
		}
		return e.Open(ctx, q)
	})
	require.NoError(t, err)

	for p := range res {
		for i := range nums {
			require.Equal(t, nums[i]/dens[i], res[p][i])
		}
	}
}

func Test_sum_max_min(t *testing.T) {
	enc := sharing.Encoder{FracBits: sharing.DefaultFracBits}
	inputs := [sharing.Parties][]float64{
		{10, -4, 7.5, 0},
		{20, -9, 7.5, -1},
		{5, -2, 3, -0.5},
	}

	var local [sharing.Parties][]uint64
	for p := range inputs {
		x, err := enc.EncodeAll(inputs[p])
		require.NoError(t, err)
		local[p] = x
	}

	expectedSum := make([]float64, 4)
	expectedMax := make([]float64, 4)
	expectedMin := make([]float64, 4)
	for c := range expectedSum {
		column := stats.Float64Data{inputs[0][c], inputs[1][c], inputs[2][c]}
		expectedSum[c], _ = column.Sum()
		expectedMax[c], _ = column.Max()
		expectedMin[c], _ = column.Min()
	}

	engines := newEngines(t)
	res, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		return e.Sum(ctx, local[e.Party()])
	})
	require.NoError(t, err)
	for p := range res {
		require.Equal(t, expectedSum, enc.DecodeAll(res[p]))
	}

	engines = newEngines(t)
	res, err = run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		return e.Max(ctx, local[e.Party()])
	})
	require.NoError(t, err)
	for p := range res {
		require.Equal(t, expectedMax, enc.DecodeAll(res[p]))
	}

	engines = newEngines(t)
	res, err = run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		return e.Min(ctx, local[e.Party()])
	})
	require.NoError(t, err)
	for p := range res {
		require.Equal(t, expectedMin, enc.DecodeAll(res[p]))
	}
}

// identical inputs give identical outputs across runs, ties included
func Test_max_ties_deterministic(t *testing.T) {
	local := [sharing.Parties][]uint64{{4, 4, 1}, {4, 2, 3}, {4, 4, 3}}

	var first []uint64
	for i := 0; i < 3; i++ {
		engines := newEngines(t)
		res, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
			return e.Max(ctx, local[e.Party()])
		})
		require.NoError(t, err)
		require.Equal(t, []uint64{4, 4, 3}, res[0])
		require.Equal(t, res[0], res[1])
		require.Equal(t, res[0], res[2])
		if first != nil {
			require.Equal(t, first, res[0])
		}
		first = res[0]
	}
}

func Test_sum_wraps(t *testing.T) {
	engines := newEngines(t)
	local := [sharing.Parties][]uint64{{math.MaxUint64}, {2}, {0}}

	res, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		return e.Sum(ctx, local[e.Party()])
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, res[0])
}

func Test_revealed_avg(t *testing.T) {
	enc := sharing.Encoder{FracBits: sharing.DefaultFracBits}
	sums := [sharing.Parties][]float64{{10}, {20}, {5}}

	engines := newEngines(t)
	type out struct{ values, rows []uint64 }
	var outs [sharing.Parties]out

	_, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		s, err := enc.EncodeAll(sums[e.Party()])
		if err != nil {
			return nil, err
		}
		values, rows, err := e.RevealedAvg(ctx, s, []uint64{100})
		outs[e.Party()] = out{values, rows}
		return nil, err
	})
	require.NoError(t, err)

	for p := range outs {
		require.Equal(t, []float64{35}, enc.DecodeAll(outs[p].values))
		require.Equal(t, []uint64{300}, outs[p].rows)
		require.Equal(t, 3, engines[p].Rounds())
	}
}

func Test_secret_avg(t *testing.T) {
	enc := sharing.Encoder{FracBits: sharing.DefaultFracBits}
	sums := [sharing.Parties][]float64{{10, -10}, {20, -20}, {5, -5}}

	engines := newEngines(t)
	res, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		s, err := enc.EncodeAll(sums[e.Party()])
		if err != nil {
			return nil, err
		}
		return e.SecretAvg(ctx, s, []uint64{100, 100})
	})
	require.NoError(t, err)

	for p := range res {
		avg := enc.DecodeAll(res[p])
		require.InDelta(t, 35.0/300, avg[0], 1e-4)
		require.InDelta(t, -35.0/300, avg[1], 1e-4)
	}
}

func Test_avg_division_by_zero(t *testing.T) {
	engines := newEngines(t)
	_, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		_, _, err := e.RevealedAvg(ctx, []uint64{1, 2}, []uint64{1, 0})
		return nil, err
	})
	require.ErrorIs(t, err, peer.ErrDivisionByZero)

	engines = newEngines(t)
	_, err = run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		return e.SecretAvg(ctx, []uint64{1}, []uint64{0})
	})
	require.ErrorIs(t, err, peer.ErrDivisionByZero)
}

func Test_input_column_mismatch(t *testing.T) {
	engines := newEngines(t)
	local := [sharing.Parties][]uint64{{1, 2}, {1, 2}, {1}}

	_, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		return e.Sum(ctx, local[e.Party()])
	})
	require.ErrorIs(t, err, peer.ErrColumnMismatch)
}
