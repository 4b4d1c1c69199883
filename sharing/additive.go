package sharing

import (
	"github.com/tuneinsight/lattigo/v5/utils/sampling"
	"golang.org/x/xerrors"
)

// SplitAdditive splits values into n parts. The first n-1 parts are uniformly
// random and the last one completes the sum (Arithmetic) or the XOR (Binary).
// All n parts are needed to recover values.
func SplitAdditive(values []uint64, n int, scheme Scheme, prng sampling.PRNG) ([][]uint64, error) {
	if n < 1 {
		return nil, xerrors.Errorf("cannot split into %d parts", n)
	}

	parts := make([][]uint64, n)
	last := clone(values)
	for i := 0; i < n-1; i++ {
		r, err := RandomVector(prng, len(values))
		if err != nil {
			return nil, err
		}
		for j := range last {
			if scheme == Binary {
				last[j] ^= r[j]
			} else {
				last[j] -= r[j]
			}
		}
		parts[i] = r
	}
	parts[n-1] = last

	return parts, nil
}

// CombineAdditive recovers the values from the n parts produced by
// SplitAdditive.
func CombineAdditive(parts [][]uint64, n int, scheme Scheme) ([]uint64, error) {
	if len(parts) < n {
		return nil, xerrors.Errorf("got %d of %d parts: %w", len(parts), n, ErrInsufficientShares)
	}
	if len(parts) > n {
		return nil, xerrors.Errorf("got %d parts, expected %d: %w", len(parts), n, ErrInconsistentShares)
	}

	res := make([]uint64, len(parts[0]))
	for idx, part := range parts {
		if part == nil {
			return nil, xerrors.Errorf("part %d missing: %w", idx, ErrInsufficientShares)
		}
		if len(part) != len(res) {
			return nil, xerrors.Errorf("part %d has length %d, expected %d: %w",
				idx, len(part), len(res), ErrInconsistentShares)
		}
		for i, v := range part {
			if scheme == Binary {
				res[i] ^= v
			} else {
				res[i] += v
			}
		}
	}
	return res, nil
}
