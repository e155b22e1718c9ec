// Package problems collects small analytic test systems with known
// bifurcation diagrams. They double as documentation: each constructor
// comment states where the singularities sit.
package problems

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bifurc/internal/bif"
)

// Cubic is the scalar fold benchmark F(x, p) = p + x − x³, with folds at
// x = ±1/√3, p = ∓2/(3√3).
type Cubic struct{}

func NewCubic() *Cubic { return &Cubic{} }

func (*Cubic) Dim() int { return 1 }

func (*Cubic) Residual(x bif.State, p float64) bif.State {
	return bif.State{p + x[0] - x[0]*x[0]*x[0]}
}

func (*Cubic) Jacobian(x bif.State, p float64) bif.Jacobian {
	return bif.NewDense(mat.NewDense(1, 1, []float64{1 - 3*x[0]*x[0]}))
}

func (*Cubic) HessianBilinear(x bif.State, p float64, dx1, dx2 bif.State) bif.State {
	return bif.State{-6 * x[0] * dx1[0] * dx2[0]}
}

// Pitchfork is F(x, p) = p·x − x³: a symmetric branch point at the
// origin where the trivial branch x = 0 meets x = ±√p.
type Pitchfork struct{}

func NewPitchfork() *Pitchfork { return &Pitchfork{} }

func (*Pitchfork) Dim() int { return 1 }

func (*Pitchfork) Residual(x bif.State, p float64) bif.State {
	return bif.State{p*x[0] - x[0]*x[0]*x[0]}
}

func (*Pitchfork) Jacobian(x bif.State, p float64) bif.Jacobian {
	return bif.NewDense(mat.NewDense(1, 1, []float64{p - 3*x[0]*x[0]}))
}

func (*Pitchfork) HessianBilinear(x bif.State, p float64, dx1, dx2 bif.State) bif.State {
	return bif.State{-6 * x[0] * dx1[0] * dx2[0]}
}

// DoubleWell applies the cubic componentwise in n dimensions,
// F_i = p + x_i − x_i³, so for |p| < 2/(3√3) the system has 3ⁿ
// coexisting equilibria. The deflation demos use it to enumerate roots
// from a single initial guess.
type DoubleWell struct {
	N int
}

func NewDoubleWell(n int) *DoubleWell { return &DoubleWell{N: n} }

func (d *DoubleWell) Dim() int { return d.N }

func (d *DoubleWell) Residual(x bif.State, p float64) bif.State {
	out := make(bif.State, d.N)
	for i, v := range x {
		out[i] = p + v - v*v*v
	}
	return out
}

func (d *DoubleWell) Jacobian(x bif.State, p float64) bif.Jacobian {
	m := mat.NewDense(d.N, d.N, nil)
	for i, v := range x {
		m.Set(i, i, 1-3*v*v)
	}
	return bif.NewDense(m)
}

func (d *DoubleWell) HessianBilinear(x bif.State, p float64, dx1, dx2 bif.State) bif.State {
	out := make(bif.State, d.N)
	for i := range out {
		out[i] = -6 * x[i] * dx1[i] * dx2[i]
	}
	return out
}

// HopfNormal is the planar normal form
//
//	ẋ = p·x − ω·y − x·(x² + y²)
//	ẏ = ω·x + p·y − y·(x² + y²)
//
// whose origin loses stability in a supercritical Hopf bifurcation at
// p = 0 with frequency ω.
type HopfNormal struct {
	Omega float64
}

func NewHopfNormal() *HopfNormal { return &HopfNormal{Omega: 1} }

func (*HopfNormal) Dim() int { return 2 }

func (h *HopfNormal) Residual(z bif.State, p float64) bif.State {
	x, y := z[0], z[1]
	r2 := x*x + y*y
	return bif.State{
		p*x - h.Omega*y - x*r2,
		h.Omega*x + p*y - y*r2,
	}
}

func (h *HopfNormal) Jacobian(z bif.State, p float64) bif.Jacobian {
	x, y := z[0], z[1]
	r2 := x*x + y*y
	return bif.NewDense(mat.NewDense(2, 2, []float64{
		p - r2 - 2*x*x, -h.Omega - 2*x*y,
		h.Omega - 2*x*y, p - r2 - 2*y*y,
	}))
}

// Bratu is the centered-difference discretization of the Bratu-Gelfand
// boundary value problem u'' + p·exp(u) = 0 on (0, 1) with homogeneous
// Dirichlet conditions. Its branch folds back at p ≈ 3.51383.
type Bratu struct {
	N int // interior grid points
}

func NewBratu(n int) *Bratu { return &Bratu{N: n} }

func (b *Bratu) Dim() int { return b.N }

func (b *Bratu) h() float64 { return 1 / float64(b.N+1) }

func (b *Bratu) Residual(u bif.State, p float64) bif.State {
	h2 := b.h() * b.h()
	out := make(bif.State, b.N)
	for i := 0; i < b.N; i++ {
		left, right := 0.0, 0.0
		if i > 0 {
			left = u[i-1]
		}
		if i < b.N-1 {
			right = u[i+1]
		}
		out[i] = (left-2*u[i]+right)/h2 + p*math.Exp(u[i])
	}
	return out
}

func (b *Bratu) Jacobian(u bif.State, p float64) bif.Jacobian {
	h2 := b.h() * b.h()
	m := mat.NewDense(b.N, b.N, nil)
	for i := 0; i < b.N; i++ {
		m.Set(i, i, -2/h2+p*math.Exp(u[i]))
		if i > 0 {
			m.Set(i, i-1, 1/h2)
		}
		if i < b.N-1 {
			m.Set(i, i+1, 1/h2)
		}
	}
	return bif.NewDense(m)
}

func (b *Bratu) HessianBilinear(u bif.State, p float64, dx1, dx2 bif.State) bif.State {
	out := make(bif.State, b.N)
	for i := range out {
		out[i] = p * math.Exp(u[i]) * dx1[i] * dx2[i]
	}
	return out
}
