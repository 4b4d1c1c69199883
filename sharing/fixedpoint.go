package sharing

import (
	"errors"
	"math"

	"golang.org/x/xerrors"
)

// DefaultFracBits is the default number of fractional bits of the
// fixed-point encoding.
const DefaultFracBits = 16

// ErrOutOfRange is returned when a value cannot be encoded.
var ErrOutOfRange = errors.New("value out of range")

// Encoder maps reals to ring elements as two's-complement fixed-point
// numbers with FracBits fractional bits. Encoded magnitudes stay at or
// below 2^61, so the sum of one value per party stays below 2^63 in
// magnitude and keeps its sign, and the difference of two values does too.
type Encoder struct {
	FracBits uint
}

// NewEncoder returns an encoder with the given precision.
func NewEncoder(fracBits uint) (Encoder, error) {
	if fracBits > 52 {
		return Encoder{}, xerrors.Errorf("fixed-point precision %d exceeds 52 bits", fracBits)
	}
	return Encoder{FracBits: fracBits}, nil
}

// Bound returns the bound on the magnitude of encodable values.
func (e Encoder) Bound() float64 {
	return math.Ldexp(1, 61-int(e.FracBits))
}

// Encode maps v to the ring. The value is rounded to the nearest multiple
// of 2^-FracBits.
func (e Encoder) Encode(v float64) (uint64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, xerrors.Errorf("cannot encode %v: %w", v, ErrOutOfRange)
	}
	if math.Abs(v) >= e.Bound() {
		return 0, xerrors.Errorf("%v exceeds ±%v: %w", v, e.Bound(), ErrOutOfRange)
	}
	return uint64(int64(math.Round(math.Ldexp(v, int(e.FracBits))))), nil
}

// EncodeAll encodes every value of vs.
func (e Encoder) EncodeAll(vs []float64) ([]uint64, error) {
	res := make([]uint64, len(vs))
	for i, v := range vs {
		x, err := e.Encode(v)
		if err != nil {
			return nil, xerrors.Errorf("value %d: %w", i, err)
		}
		res[i] = x
	}
	return res, nil
}

// Decode maps a ring element back to a real.
func (e Encoder) Decode(x uint64) float64 {
	return math.Ldexp(float64(int64(x)), -int(e.FracBits))
}

// DecodeAll decodes every element of xs.
func (e Encoder) DecodeAll(xs []uint64) []float64 {
	res := make([]float64, len(xs))
	for i, x := range xs {
		res[i] = e.Decode(x)
	}
	return res
}
