package stats

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	z "go.dedis.ch/mpcstats/internal/testing"
	"go.dedis.ch/mpcstats/peer"
	"go.dedis.ch/mpcstats/sharing"
	"go.dedis.ch/mpcstats/transport/channel"
)

// fakeExecutor records the requests and answers with a fixed result.
//
// - implements peer.Executor
type fakeExecutor struct {
	requests []peer.Request
	result   peer.Result
	err      error
}

func (f *fakeExecutor) Execute(ctx context.Context, req peer.Request) (peer.Result, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func Test_Stats_Local_Aggregation(t *testing.T) {
	fake := &fakeExecutor{result: peer.Result{Values: []float64{42, 43}}}
	js := New(fake)
	ctx := context.Background()

	columns := [][]float64{{3, 9, -1}, {2.5}}

	res, err := js.Max(ctx, columns)
	require.NoError(t, err)
	require.Equal(t, []float64{42, 43}, res)

	_, err = js.Min(ctx, columns)
	require.NoError(t, err)

	_, err = js.Sum(ctx, [][]float64{{1, 2, 3}, {}})
	require.NoError(t, err)

	_, err = js.Avg(ctx, [][]float64{{10, 5}, {1}}, [][]int64{{50, 50}, {3}})
	require.NoError(t, err)

	expected := []peer.Request{
		{Op: peer.OpMax, Values: []float64{9, 2.5}},
		{Op: peer.OpMin, Values: []float64{-1, 2.5}},
		{Op: peer.OpSum, Values: []float64{6, 0}},
		{Op: peer.OpAvg, Values: []float64{15, 1}, RowCounts: []int64{100, 3}},
	}
	require.Empty(t, cmp.Diff(expected, fake.requests))
}

func Test_Stats_Invalid(t *testing.T) {
	fake := &fakeExecutor{}
	js := New(fake)
	ctx := context.Background()

	_, err := js.Max(ctx, [][]float64{{}})
	require.ErrorIs(t, err, peer.ErrInvalidInput)

	_, err = js.Avg(ctx, [][]float64{{1}}, nil)
	require.ErrorIs(t, err, peer.ErrColumnMismatch)

	_, err = js.Avg(ctx, [][]float64{{1}}, [][]int64{{-2}})
	require.ErrorIs(t, err, peer.ErrInvalidInput)

	require.Empty(t, fake.requests)

	fake.err = peer.ErrDivisionByZero
	_, err = js.Sum(ctx, [][]float64{{1}})
	require.ErrorIs(t, err, peer.ErrDivisionByZero)

	require.NoError(t, js.Close())
}

// runAll calls f on the three parties' statistics concurrently.
func runAll(t *testing.T, parties [sharing.Parties]*JointStatistics,
	f func(p int, js *JointStatistics) ([]float64, error)) [sharing.Parties][]float64 {

	var res [sharing.Parties][]float64
	var errs [sharing.Parties]error

	wg := sync.WaitGroup{}
	for p := range parties {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			res[p], errs[p] = f(p, parties[p])
		}(p)
	}
	wg.Wait()

	for p, err := range errs {
		require.NoError(t, err, "party %d", p)
	}
	return res
}

func Test_Stats_Cluster(t *testing.T) {
	c := z.NewCluster(t)
	ctx := context.Background()

	var parties [sharing.Parties]*JointStatistics
	for p := range parties {
		parties[p] = New(c.Sessions[p])
	}

	rows := [sharing.Parties][][]float64{
		{{4, 6}, {1, 1}},
		{{20}, {-3}},
		{{1, 2, 2}, {0.5}},
	}

	res := runAll(t, parties, func(p int, js *JointStatistics) ([]float64, error) {
		return js.Sum(ctx, rows[p])
	})
	for p := range res {
		require.Equal(t, []float64{35, -0.5}, res[p])
	}

	res = runAll(t, parties, func(p int, js *JointStatistics) ([]float64, error) {
		return js.Max(ctx, rows[p])
	})
	for p := range res {
		require.Equal(t, []float64{20, 1}, res[p])
	}

	res = runAll(t, parties, func(p int, js *JointStatistics) ([]float64, error) {
		return js.Min(ctx, rows[p])
	})
	for p := range res {
		require.Equal(t, []float64{1, -3}, res[p])
	}

	sums := [sharing.Parties][][]float64{{{10}}, {{20}}, {{5}}}
	counts := [sharing.Parties][][]int64{{{100}}, {{100}}, {{100}}}
	res = runAll(t, parties, func(p int, js *JointStatistics) ([]float64, error) {
		return js.Avg(ctx, sums[p], counts[p])
	})
	for p := range res {
		require.InDelta(t, 35.0/300, res[p][0], 1e-4)
	}
}

func Test_Stats_Open(t *testing.T) {
	confs := z.Configs(z.WithColumns("value"))
	network := channel.NewNetwork()

	var parties [sharing.Parties]*JointStatistics
	var errs [sharing.Parties]error

	wg := sync.WaitGroup{}
	for p := range confs {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			parties[p], errs[p] = Open(context.Background(), confs[p], network.Transport())
		}(p)
	}
	wg.Wait()
	for p := range errs {
		require.NoError(t, errs[p])
	}

	res := runAll(t, parties, func(p int, js *JointStatistics) ([]float64, error) {
		return js.Sum(context.Background(), [][]float64{{float64(p)}})
	})
	require.Equal(t, []float64{3}, res[0])

	for _, js := range parties {
		require.NoError(t, js.Close())
	}

	_, err := parties[0].Sum(context.Background(), [][]float64{{1}})
	require.ErrorIs(t, err, peer.ErrSessionAborted)
}
