// Package numdiff provides finite-difference fallbacks for problems that
// supply only a residual: full Jacobians, parameter derivatives and
// directional second derivatives.
package numdiff

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bifurc/internal/bif"
)

// Method selects the finite-difference stencil.
type Method int

const (
	// Forward uses the first order accuracy forward difference.
	Forward Method = iota
	// Central uses the second order accuracy centered difference.
	Central
)

// DefaultEps is the probe step used throughout the engine when none is
// configured. Parameter derivatives are always centered.
const DefaultEps = 1e-8

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)

func step(eps, at float64) float64 {
	if eps > 0 {
		return eps
	}
	return sqrtEps * math.Max(1, math.Abs(at))
}

// Jacobian assembles a dense finite-difference Jacobian of the residual
// of prob at (x, p).
func Jacobian(prob bif.Problem, x bif.State, p float64, method Method, eps float64) *mat.Dense {
	n := prob.Dim()
	out := mat.NewDense(n, n, nil)
	xs := x.Clone()
	var f0 bif.State
	if method == Forward {
		f0 = prob.Residual(x, p)
	}
	for c := 0; c < n; c++ {
		h := step(eps, x[c])
		switch method {
		case Central:
			xs[c] = x[c] + h
			fp := prob.Residual(xs, p)
			xs[c] = x[c] - h
			fm := prob.Residual(xs, p)
			for r := 0; r < n; r++ {
				out.Set(r, c, (fp[r]-fm[r])/(2*h))
			}
		default:
			xs[c] = x[c] + h
			fp := prob.Residual(xs, p)
			for r := 0; r < n; r++ {
				out.Set(r, c, (fp[r]-f0[r])/h)
			}
		}
		xs[c] = x[c]
	}
	return out
}

// ParamDerivative estimates dF/dp at (x, p) with a centered difference.
func ParamDerivative(prob bif.Problem, x bif.State, p, eps float64) bif.State {
	h := step(eps, p)
	fp := prob.Residual(x, p+h)
	fm := prob.Residual(x, p-h)
	return fp.Sub(fm).Scale(1 / (2 * h))
}

// ParamJacApply estimates (dJ/dp)·v at (x, p) with a centered difference
// of two Jacobian applications.
func ParamJacApply(prob bif.Problem, x bif.State, p float64, v bif.State, eps float64) bif.State {
	h := step(eps, p)
	n := prob.Dim()
	jp := make([]float64, n)
	jm := make([]float64, n)
	prob.Jacobian(x, p+h).Apply(jp, v)
	prob.Jacobian(x, p-h).Apply(jm, v)
	return bif.State(jp).Sub(bif.State(jm)).Scale(1 / (2 * h))
}

// HessianBilinear estimates d²F(x,p)[dx1, dx2], preferring an exact
// bilinear form when prob provides one.
func HessianBilinear(prob bif.Problem, x bif.State, p float64, dx1, dx2 bif.State, eps float64) bif.State {
	if hp, ok := prob.(bif.HessianProvider); ok {
		return hp.HessianBilinear(x, p, dx1, dx2)
	}
	h := step(eps, 0)
	n := prob.Dim()
	shifted := x.AddScaled(h, dx1)
	jp := make([]float64, n)
	j0 := make([]float64, n)
	prob.Jacobian(shifted, p).Apply(jp, dx2)
	prob.Jacobian(x, p).Apply(j0, dx2)
	return bif.State(jp).Sub(bif.State(j0)).Scale(1 / h)
}

// FDProblem turns a residual-only map into a Problem with a
// finite-difference Jacobian.
type FDProblem struct {
	N      int
	R      func(x bif.State, p float64) bif.State
	Method Method
	Eps    float64
}

func (f *FDProblem) Dim() int { return f.N }

func (f *FDProblem) Residual(x bif.State, p float64) bif.State { return f.R(x, p) }

func (f *FDProblem) Jacobian(x bif.State, p float64) bif.Jacobian {
	return bif.NewDense(Jacobian(f, x, p, f.Method, f.Eps))
}
