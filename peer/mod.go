package peer

import (
	"context"
	"strings"

	"golang.org/x/xerrors"
)

// Executor runs aggregation requests jointly with the other parties. Every
// party calls Execute with the same operation and column layout; each gets
// the same result.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Op is an aggregation operation.
type Op string

const (
	OpMax Op = "max"
	OpMin Op = "min"
	OpSum Op = "sum"
	OpAvg Op = "avg"
)

// ParseOp returns the operation with the given case-insensitive name.
func ParseOp(name string) (Op, error) {
	op := Op(strings.ToLower(strings.TrimSpace(name)))
	switch op {
	case OpMax, OpMin, OpSum, OpAvg:
		return op, nil
	default:
		return "", xerrors.Errorf("unknown operation %q: %w", name, ErrInvalidInput)
	}
}

// Request is one party's input to an aggregation.
type Request struct {
	Op Op
	// Values holds the local value of each column: the local max, min or sum
	// of the party's rows.
	Values []float64
	// RowCounts holds the local number of rows of each column. Only used by
	// OpAvg.
	RowCounts []int64
}

// Result is the outcome of an aggregation, identical at every party.
type Result struct {
	Values []float64
	// Rounds is the number of communication rounds used.
	Rounds int
}
