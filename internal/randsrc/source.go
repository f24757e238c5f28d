// Package randsrc provides the randomness used by value generation.
package randsrc

import (
	"errors"
	"fmt"
	"math/rand"
)

// Source is the randomness the generators draw from.
type Source interface {
	// IntRange returns a uniform integer in [min, max].
	IntRange(min, max int64) int64
	// FloatRange returns a uniform real in [min, max).
	FloatRange(min, max float64) float64
	// Intn returns a uniform integer in [0, n).
	Intn(n int) int
	// Weighted returns an index chosen with probability proportional to its weight.
	Weighted(weights []float64) (int, error)
}

type rngSource struct {
	rng *rand.Rand
}

// New returns a Source that must not be shared between goroutines.
func New(seed int64) Source {
	return &rngSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *rngSource) IntRange(min, max int64) int64 {
	if max <= min {
		return min
	}
	span := uint64(max - min)
	if span == ^uint64(0) {
		return int64(s.rng.Uint64())
	}
	if span < 1<<62 {
		return min + s.rng.Int63n(int64(span)+1)
	}
	for {
		v := s.rng.Uint64()
		if v <= span {
			return min + int64(v)
		}
	}
}

func (s *rngSource) FloatRange(min, max float64) float64 {
	return min + s.rng.Float64()*(max-min)
}

func (s *rngSource) Intn(n int) int {
	return s.rng.Intn(n)
}

func (s *rngSource) Weighted(weights []float64) (int, error) {
	return pickWeighted(weights, s.rng.Float64())
}

func pickWeighted(weights []float64, u float64) (int, error) {
	if len(weights) == 0 {
		return 0, errors.New("no weights")
	}
	total := 0.0
	for _, w := range weights {
		if w < 0 {
			return 0, fmt.Errorf("negative weight: %v", w)
		}
		total += w
	}
	if total == 0 {
		return 0, errors.New("total weight is zero")
	}

	r := u * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if r < cum {
			return i, nil
		}
	}
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i, nil
		}
	}
	return len(weights) - 1, nil
}
