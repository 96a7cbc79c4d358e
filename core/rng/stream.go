// Package rng provides the single pseudo-random stream shared by every agent of
// a run. All draws of a run go through one Stream in a fixed order, which is
// what makes a run replayable from its seed.
package rng

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Stream is a seedable pseudo-random source. It is not safe for concurrent
// use; independent runs must use independent streams.
type Stream struct {
	src  *rand.PCG
	rand *rand.Rand
}

// New returns a stream seeded with seed.
func New(seed uint64) *Stream {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Stream{src: src, rand: rand.New(src)}
}

// Source exposes the underlying source for gonum samplers.
func (s *Stream) Source() rand.Source { return s.src }

// Float64 returns a uniform draw in [0,1).
func (s *Stream) Float64() float64 { return s.rand.Float64() }

// Bernoulli returns true with probability p.
func (s *Stream) Bernoulli(p float64) bool { return s.rand.Float64() < p }

// Uniform returns a uniform draw between a and b. The bounds may be given in
// either order; equal bounds return a without consuming a draw.
func (s *Stream) Uniform(a, b float64) float64 {
	if a == b {
		return a
	}
	if a > b {
		a, b = b, a
	}
	return distuv.Uniform{Min: a, Max: b, Src: s.src}.Rand()
}

// Normal returns a normal draw.
func (s *Stream) Normal(mu, sigma float64) float64 {
	if sigma <= 0 {
		return mu
	}
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}.Rand()
}

// IntN returns a uniform integer in [0,n). n must be positive.
func (s *Stream) IntN(n int) int { return s.rand.IntN(n) }

// Shuffle randomises the order of n elements through swap.
func (s *Stream) Shuffle(n int, swap func(i, j int)) { s.rand.Shuffle(n, swap) }

// Order returns a freshly shuffled permutation of [0,n).
func (s *Stream) Order(n int) []int { return s.rand.Perm(n) }

// Sample returns k distinct indices drawn from [0,n) without replacement, in
// draw order. k is clamped to n.
func (s *Stream) Sample(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	return s.rand.Perm(n)[:k]
}

// Weighted draws an index with probability proportional to weights. When all
// weights are zero (or negative) it falls back to a uniform pick. It returns
// -1 for an empty slice.
func (s *Stream) Weighted(weights []float64) int {
	if len(weights) == 0 {
		return -1
	}
	w := make([]float64, len(weights))
	var sum float64
	for i, v := range weights {
		if v > 0 {
			w[i] = v
			sum += v
		}
	}
	if sum == 0 {
		return s.IntN(len(weights))
	}
	idx, ok := sampleuv.NewWeighted(w, s.src).Take()
	if !ok {
		return s.IntN(len(weights))
	}
	return idx
}
