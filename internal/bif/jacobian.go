package bif

import (
	"gonum.org/v1/gonum/mat"
)

// Jacobian is a square linear operator, either materialized or matrix-free.
type Jacobian interface {
	Dim() int
	Apply(dst, src []float64)
}

// Transposable is implemented by Jacobians that can apply their transpose,
// needed for adjoint bordered solves.
type Transposable interface {
	ApplyTrans(dst, src []float64)
}

// Dense wraps a gonum dense matrix as a Jacobian.
type Dense struct {
	M *mat.Dense
}

func NewDense(m *mat.Dense) *Dense { return &Dense{M: m} }

func (d *Dense) Dim() int {
	r, _ := d.M.Dims()
	return r
}

func (d *Dense) Apply(dst, src []float64) {
	out := mat.NewVecDense(len(dst), dst)
	out.MulVec(d.M, mat.NewVecDense(len(src), src))
}

func (d *Dense) ApplyTrans(dst, src []float64) {
	out := mat.NewVecDense(len(dst), dst)
	out.MulVec(d.M.T(), mat.NewVecDense(len(src), src))
}

// MatFree is a matrix-free Jacobian exposing only linear application.
// MulTransVec may be nil when the adjoint action is unavailable.
type MatFree struct {
	N           int
	MulVec      func(dst, src []float64)
	MulTransVec func(dst, src []float64)
}

func (m *MatFree) Dim() int { return m.N }

func (m *MatFree) Apply(dst, src []float64) { m.MulVec(dst, src) }

func (m *MatFree) ApplyTrans(dst, src []float64) {
	if m.MulTransVec == nil {
		panic("bifurc: matrix-free jacobian has no transpose action")
	}
	m.MulTransVec(dst, src)
}

// Materialize assembles j as a dense matrix, probing columns with unit
// vectors when j is matrix-free. The returned matrix is always a copy.
func Materialize(j Jacobian) *mat.Dense {
	n := j.Dim()
	out := mat.NewDense(n, n, nil)
	if d, ok := j.(*Dense); ok {
		out.Copy(d.M)
		return out
	}
	e := make([]float64, n)
	col := make([]float64, n)
	for c := 0; c < n; c++ {
		e[c] = 1
		j.Apply(col, e)
		e[c] = 0
		for r := 0; r < n; r++ {
			out.Set(r, c, col[r])
		}
	}
	return out
}

// Adjoint returns a Jacobian applying the transpose of j. Matrix-free
// operators without a transpose action are materialized first.
func Adjoint(j Jacobian) Jacobian {
	if t, ok := j.(Transposable); ok {
		return &MatFree{
			N:           j.Dim(),
			MulVec:      t.ApplyTrans,
			MulTransVec: j.Apply,
		}
	}
	m := Materialize(j)
	d := &Dense{M: m}
	return &MatFree{N: j.Dim(), MulVec: d.ApplyTrans, MulTransVec: d.Apply}
}
