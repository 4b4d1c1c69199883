// Package stats computes joint statistics over the columns of three
// parties without revealing their rows to each other.
//
// Each party calls the same method with its own rows; every party gets the
// same result.
package stats

import (
	"context"

	mstats "github.com/montanaflynn/stats"
	"go.dedis.ch/mpcstats/peer"
	"go.dedis.ch/mpcstats/peer/impl"
	"go.dedis.ch/mpcstats/transport"
	"golang.org/x/xerrors"
)

// JointStatistics is the statistics API of one party.
type JointStatistics struct {
	executor peer.Executor
	closer   func() error
}

// New returns the statistics API over an executor.
func New(executor peer.Executor) *JointStatistics {
	return &JointStatistics{executor: executor}
}

// Open establishes a session with the other parties and returns the
// statistics API over it.
func Open(ctx context.Context, conf peer.Configuration, tr transport.Transport) (*JointStatistics, error) {
	session, err := impl.NewSession(ctx, conf, tr)
	if err != nil {
		return nil, err
	}

	return &JointStatistics{executor: session, closer: session.Close}, nil
}

// Close releases the session opened by Open.
func (j *JointStatistics) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer()
}

// Max returns the maximum of every column over the rows of all parties.
// columns[c] holds this party's rows of column c.
func (j *JointStatistics) Max(ctx context.Context, columns [][]float64) ([]float64, error) {
	return j.extremum(ctx, peer.OpMax, columns)
}

// Min returns the minimum of every column over the rows of all parties.
func (j *JointStatistics) Min(ctx context.Context, columns [][]float64) ([]float64, error) {
	return j.extremum(ctx, peer.OpMin, columns)
}

// Sum returns the sum of every column over the rows of all parties.
func (j *JointStatistics) Sum(ctx context.Context, columns [][]float64) ([]float64, error) {
	local := make([]float64, len(columns))
	for c, rows := range columns {
		local[c] = sum(rows)
	}

	return j.execute(ctx, peer.Request{Op: peer.OpSum, Values: local})
}

// Avg returns the mean of every column over the rows of all parties. For
// column c, sums[c] holds partial sums of this party and rowCounts[c] the
// number of rows behind each of them.
func (j *JointStatistics) Avg(ctx context.Context, sums [][]float64, rowCounts [][]int64) ([]float64, error) {
	if len(sums) != len(rowCounts) {
		return nil, xerrors.Errorf("%d sum columns and %d count columns: %w",
			len(sums), len(rowCounts), peer.ErrColumnMismatch)
	}

	local := make([]float64, len(sums))
	counts := make([]int64, len(sums))
	for c := range sums {
		local[c] = sum(sums[c])
		for _, n := range rowCounts[c] {
			if n < 0 {
				return nil, xerrors.Errorf("negative row count in column %d: %w", c, peer.ErrInvalidInput)
			}
			counts[c] += n
		}
	}

	return j.execute(ctx, peer.Request{Op: peer.OpAvg, Values: local, RowCounts: counts})
}

// extremum reduces every column locally before the joint comparison.
func (j *JointStatistics) extremum(ctx context.Context, op peer.Op, columns [][]float64) ([]float64, error) {
	local := make([]float64, len(columns))
	for c, rows := range columns {
		data := mstats.Float64Data(rows)

		var v float64
		var err error
		if op == peer.OpMax {
			v, err = data.Max()
		} else {
			v, err = data.Min()
		}
		if err != nil {
			return nil, xerrors.Errorf("column %d: %v: %w", c, err, peer.ErrInvalidInput)
		}
		local[c] = v
	}

	return j.execute(ctx, peer.Request{Op: op, Values: local})
}

func (j *JointStatistics) execute(ctx context.Context, req peer.Request) ([]float64, error) {
	res, err := j.executor.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Values, nil
}

// sum returns the sum of the rows, zero for no row.
func sum(rows []float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	s, _ := mstats.Sum(rows)
	return s
}
