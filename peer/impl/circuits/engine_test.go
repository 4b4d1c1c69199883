package circuits

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v5/utils/sampling"
	"go.dedis.ch/mpcstats/sharing"
	"golang.org/x/sync/errgroup"
)

// localComm connects three engines of the same process with buffered
// channels, one per ordered pair of parties.
type localComm struct {
	self  int
	links *[sharing.Parties][sharing.Parties]chan []uint64
}

func (c localComm) Exchange(ctx context.Context, out [sharing.Parties][]uint64) ([sharing.Parties][]uint64, error) {
	var in [sharing.Parties][]uint64

	for p := range out {
		if p == c.self {
			continue
		}
		c.links[c.self][p] <- append([]uint64{}, out[p]...)
	}
	for p := range in {
		if p == c.self {
			continue
		}
		select {
		case v := <-c.links[p][c.self]:
			in[p] = v
		case <-ctx.Done():
			return in, ctx.Err()
		}
	}
	return in, nil
}

func newEngines(t *testing.T) [sharing.Parties]*Engine {
	links := &[sharing.Parties][sharing.Parties]chan []uint64{}
	for i := range links {
		for j := range links[i] {
			links[i][j] = make(chan []uint64, 16)
		}
	}

	var keys [sharing.Parties][]byte
	for p := range keys {
		key, err := sharing.NewZeroKey()
		require.NoError(t, err)
		keys[p] = key
	}

	var engines [sharing.Parties]*Engine
	for p := range engines {
		zero, err := sharing.NewZeroSharer(keys[p], keys[sharing.Prev(p)])
		require.NoError(t, err)
		e, err := NewEngine(p, localComm{self: p, links: links}, zero)
		require.NoError(t, err)
		engines[p] = e
	}
	return engines
}

// run executes f on the three engines concurrently and returns their
// outputs.
func run(t *testing.T, engines [sharing.Parties]*Engine,
	f func(ctx context.Context, e *Engine) ([]uint64, error)) ([sharing.Parties][]uint64, error) {

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var res [sharing.Parties][]uint64
	g, gctx := errgroup.WithContext(ctx)
	for p := range engines {
		p := p
		g.Go(func() error {
			out, err := f(gctx, engines[p])
			res[p] = out
			return err
		})
	}
	err := g.Wait()
	return res, err
}

// share deals the three shares of values, as a trusted dealer would.
func share(t *testing.T, values []uint64, scheme sharing.Scheme) [sharing.Parties]sharing.Share {
	prng, err := sampling.NewPRNG()
	require.NoError(t, err)

	var shares [sharing.Parties]sharing.Share
	if scheme == sharing.Binary {
		shares, err = sharing.ShareBinary(values, prng)
	} else {
		shares, err = sharing.ShareArithmetic(values, prng)
	}
	require.NoError(t, err)
	return shares
}

func Test_input_open(t *testing.T) {
	engines := newEngines(t)
	inputs := [sharing.Parties][]uint64{{1, 2}, {10, 20}, {100, 200}}

	res, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		in, err := e.Input(ctx, inputs[e.Party()], sharing.Arithmetic)
		if err != nil {
			return nil, err
		}
		return e.Open(ctx, in[2])
	})
	require.NoError(t, err)

	for p := range res {
		require.Equal(t, []uint64{100, 200}, res[p])
		require.Equal(t, 2, engines[p].Rounds())
	}
}

func Test_mul_and(t *testing.T) {
	engines := newEngines(t)

	a := share(t, []uint64{3, 1 << 40, ^uint64(0)}, sharing.Arithmetic)
	b := share(t, []uint64{5, 1 << 30, 2}, sharing.Arithmetic)
	x := share(t, []uint64{0b1100, ^uint64(0)}, sharing.Binary)
	y := share(t, []uint64{0b1010, 1 << 63}, sharing.Binary)

	res, err := run(t, engines, func(ctx context.Context, e *Engine) ([]uint64, error) {
		p := e.Party()
		prod, err := e.Mul(ctx, a[p], b[p])
		if err != nil {
			return nil, err
		}
		and, err := e.And(ctx, x[p], y[p])
		if err != nil {
			return nil, err
		}
		r1, err := e.Open(ctx, prod)
		if err != nil {
			return nil, err
		}
		r2, err := e.Open(ctx, and)
		if err != nil {
			return nil, err
		}
		return append(r1, r2...), nil
	})
	require.NoError(t, err)

	// 2^40 * 2^30 and -1 * 2 wrap around
	for p := range res {
		require.Equal(t, []uint64{15, 0, ^uint64(1), 0b1000, 1 << 63}, res[p])
	}
}
