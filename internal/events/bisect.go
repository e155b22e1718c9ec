package events

import (
	"errors"
	"math"
)

// DefaultBisectIter bounds the interval halving when localizing a
// continuous crossing.
const DefaultBisectIter = 50

// Bisect localizes a zero of g on [a, b] to within tol. g(a) and g(b)
// must have opposite signs; evaluation errors abort the search with the
// best bracket midpoint found so far.
func Bisect(g func(s float64) (float64, error), a, b, tol float64, maxIter int) (float64, error) {
	if maxIter <= 0 {
		maxIter = DefaultBisectIter
	}
	ga, err := g(a)
	if err != nil {
		return a, err
	}
	gb, err := g(b)
	if err != nil {
		return b, err
	}
	if ga == 0 {
		return a, nil
	}
	if gb == 0 {
		return b, nil
	}
	if ga*gb > 0 {
		return (a + b) / 2, errors.New("bifurc: bisection endpoints do not bracket a zero")
	}

	for i := 0; i < maxIter && math.Abs(b-a) > tol; i++ {
		mid := (a + b) / 2
		gm, err := g(mid)
		if err != nil {
			return mid, err
		}
		if gm == 0 {
			return mid, nil
		}
		if ga*gm < 0 {
			b, gb = mid, gm
		} else {
			a, ga = mid, gm
		}
	}
	// Return the endpoint closer to the zero.
	if math.Abs(ga) <= math.Abs(gb) {
		return a, nil
	}
	return b, nil
}
