// Package circuits implements the secure computations of the three-party
// replicated scheme on top of a round-based communication layer.
//
// Every exported method is a collective operation: the three parties must
// call the same methods with vectors of the same length in the same order.
package circuits

import (
	"context"

	"github.com/tuneinsight/lattigo/v5/utils/sampling"
	"go.dedis.ch/mpcstats/peer"
	"go.dedis.ch/mpcstats/sharing"
	"golang.org/x/xerrors"
)

// Comm runs one communication round.
type Comm interface {
	// Exchange sends out[p] to every peer p, then returns the vectors every
	// peer sent in the same round. out[self] is ignored and so is the self
	// entry of the result. A round is a barrier: it returns only once every
	// peer's vector of that round arrived.
	Exchange(ctx context.Context, out [sharing.Parties][]uint64) ([sharing.Parties][]uint64, error)
}

// Engine evaluates circuits for one party.
type Engine struct {
	party  int
	comm   Comm
	zero   *sharing.ZeroSharer
	prng   sampling.PRNG
	rounds int

	observer func(opening bool)
}

// NewEngine returns a new engine for the party.
func NewEngine(party int, comm Comm, zero *sharing.ZeroSharer) (*Engine, error) {
	prng, err := sampling.NewPRNG()
	if err != nil {
		return nil, xerrors.Errorf("failed to create prng: %v", err)
	}

	return &Engine{
		party: party,
		comm:  comm,
		zero:  zero,
		prng:  prng,
	}, nil
}

// Party returns the index of the party.
func (e *Engine) Party() int {
	return e.party
}

// Rounds returns the number of rounds run so far.
func (e *Engine) Rounds() int {
	return e.rounds
}

// Observe registers a function called before every round. opening tells
// whether the round reconstructs a secret.
func (e *Engine) Observe(f func(opening bool)) {
	e.observer = f
}

func (e *Engine) exchange(ctx context.Context, out [sharing.Parties][]uint64) ([sharing.Parties][]uint64, error) {
	return e.round(ctx, out, false)
}

func (e *Engine) round(ctx context.Context, out [sharing.Parties][]uint64, opening bool) ([sharing.Parties][]uint64, error) {
	if e.observer != nil {
		e.observer(opening)
	}
	e.rounds++
	return e.comm.Exchange(ctx, out)
}

// Input shares the local vector of every party. It returns, for each party
// p, this party's share of p's vector. One round.
func (e *Engine) Input(ctx context.Context, local []uint64, scheme sharing.Scheme) ([sharing.Parties]sharing.Share, error) {
	var res [sharing.Parties]sharing.Share

	parts, err := sharing.SplitAdditive(local, sharing.Parties, scheme, e.prng)
	if err != nil {
		return res, xerrors.Errorf("failed to split input: %v", err)
	}
	comps := [sharing.Parties][]uint64{parts[0], parts[1], parts[2]}

	var out [sharing.Parties][]uint64
	for p := range out {
		if p == e.party {
			continue
		}
		out[p] = append(append([]uint64{}, comps[p]...), comps[sharing.Next(p)]...)
	}

	in, err := e.exchange(ctx, out)
	if err != nil {
		return res, err
	}

	n := len(local)
	for p := range res {
		if p == e.party {
			res[p] = sharing.FromComponents(e.party, scheme, comps)
			continue
		}
		if len(in[p]) != 2*n {
			return res, xerrors.Errorf("party %d input has %d columns, expected %d: %w",
				p, len(in[p])/2, n, peer.ErrColumnMismatch)
		}
		res[p] = sharing.Share{
			Party:  e.party,
			Scheme: scheme,
			First:  in[p][:n],
			Second: in[p][n:],
		}
	}
	return res, nil
}

// Mul returns a share of the element-wise product of two arithmetic
// shares. One round.
func (e *Engine) Mul(ctx context.Context, a, b sharing.Share) (sharing.Share, error) {
	alpha, err := e.zero.Arithmetic(a.Len())
	if err != nil {
		return sharing.Share{}, err
	}

	z := make([]uint64, a.Len())
	for i := range z {
		z[i] = a.First[i]*b.First[i] + a.First[i]*b.Second[i] + a.Second[i]*b.First[i] + alpha[i]
	}
	return e.reshare(ctx, z, sharing.Arithmetic)
}

// And returns a share of the bitwise AND of two binary shares. One round.
func (e *Engine) And(ctx context.Context, a, b sharing.Share) (sharing.Share, error) {
	alpha, err := e.zero.Binary(a.Len())
	if err != nil {
		return sharing.Share{}, err
	}

	z := make([]uint64, a.Len())
	for i := range z {
		z[i] = a.First[i]&b.First[i] ^ a.First[i]&b.Second[i] ^ a.Second[i]&b.First[i] ^ alpha[i]
	}
	return e.reshare(ctx, z, sharing.Binary)
}

// reshare turns the masked component z of this party back into a
// replicated share: z goes to the previous party and the next party's
// component comes back.
func (e *Engine) reshare(ctx context.Context, z []uint64, scheme sharing.Scheme) (sharing.Share, error) {
	var out [sharing.Parties][]uint64
	out[sharing.Prev(e.party)] = z
	out[sharing.Next(e.party)] = []uint64{}

	in, err := e.exchange(ctx, out)
	if err != nil {
		return sharing.Share{}, err
	}

	next := in[sharing.Next(e.party)]
	if len(next) != len(z) {
		return sharing.Share{}, xerrors.Errorf("party %d sent %d values, expected %d: %w",
			sharing.Next(e.party), len(next), len(z), sharing.ErrInconsistentShares)
	}

	return sharing.Share{
		Party:  e.party,
		Scheme: scheme,
		First:  z,
		Second: next,
	}, nil
}

// Open reveals the secret behind the share to every party. Each component
// is received twice and the copies are checked against each other. One
// round.
func (e *Engine) Open(ctx context.Context, a sharing.Share) ([]uint64, error) {
	mine := append(append([]uint64{}, a.First...), a.Second...)

	var out [sharing.Parties][]uint64
	for p := range out {
		if p != e.party {
			out[p] = mine
		}
	}

	in, err := e.round(ctx, out, true)
	if err != nil {
		return nil, err
	}

	n := a.Len()
	shares := []sharing.Share{a}
	for p := range in {
		if p == e.party {
			continue
		}
		if len(in[p]) != 2*n {
			return nil, xerrors.Errorf("party %d opened %d values, expected %d: %w",
				p, len(in[p]), 2*n, sharing.ErrInconsistentShares)
		}
		shares = append(shares, sharing.Share{
			Party:  p,
			Scheme: a.Scheme,
			First:  in[p][:n],
			Second: in[p][n:],
		})
	}

	return sharing.Reconstruct(shares)
}
