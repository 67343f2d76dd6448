package main

import (
	"context"
	"math/rand/v2"

	"github.com/ggoodman/gym-tcp-go/environment"
	"github.com/ggoodman/gym-tcp-go/space"
)

// unboundedLimit is how servers encode an infinite Box bound.
const unboundedLimit = 1e100

// randomPolicy picks uniformly random actions. Discrete actions are sampled
// by the server when serverSample is set.
type randomPolicy struct {
	rng          *rand.Rand
	serverSample bool
}

func newRandomPolicy(seed uint64, serverSample bool) *randomPolicy {
	return &randomPolicy{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), serverSample: serverSample}
}

func (p *randomPolicy) act(ctx context.Context, s *environment.Session) ([]float64, error) {
	as := s.ActionSpace()
	switch as.Kind() {
	case space.Discrete:
		if p.serverSample {
			n, err := s.Sample(ctx)
			if err != nil {
				return nil, err
			}
			return []float64{float64(n)}, nil
		}
		return []float64{float64(p.rng.IntN(max(as.N(), 1)))}, nil

	case space.MultiDiscrete:
		low, high := as.Low(), as.High()
		n := max(as.N(), len(high))
		out := make([]float64, n)
		for i := range out {
			lo, hi := bound(low, i, 0), bound(high, i, 1)
			if hi < lo {
				hi = lo
			}
			out[i] = lo + float64(p.rng.IntN(int(hi-lo)+1))
		}
		return out, nil

	case space.Box:
		low, high := as.Low(), as.High()
		out := make([]float64, max(as.Size(), 1))
		for i := range out {
			lo, hi := bound(low, i, -1), bound(high, i, 1)
			if lo <= -unboundedLimit {
				lo = -1
			}
			if hi >= unboundedLimit {
				hi = 1
			}
			out[i] = lo + p.rng.Float64()*(hi-lo)
		}
		return out, nil
	}
	return nil, as.Require(space.Discrete, space.MultiDiscrete, space.Box)
}

// bound returns the i'th flattened bound, broadcasting a single value.
func bound(b []float64, i int, fallback float64) float64 {
	switch {
	case i < len(b):
		return b[i]
	case len(b) == 1:
		return b[0]
	}
	return fallback
}
