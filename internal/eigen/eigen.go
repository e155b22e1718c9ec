// Package eigen abstracts the eigensolver used for stability labeling
// and eigenvalue-based bifurcation tests. Values are always ordered by
// decreasing real part, ties broken by decreasing imaginary magnitude.
package eigen

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bifurc/internal/bif"
)

// Result carries an eigen decomposition. Vectors may be nil when the
// caller only asked for values.
type Result struct {
	Values    []complex128
	Vectors   *mat.CDense
	Converged bool
	NOps      int
}

// Solver computes the nev leading eigen-elements of a Jacobian.
// nev <= 0 requests all of them.
type Solver interface {
	Eigen(j bif.Jacobian, nev int) Result
}

// Dense materializes the Jacobian and uses gonum's QR-based solver.
type Dense struct {
	WithVectors bool
}

func (s Dense) Eigen(j bif.Jacobian, nev int) Result {
	m := bif.Materialize(j)
	kind := mat.EigenNone
	if s.WithVectors {
		kind = mat.EigenRight
	}
	var eig mat.Eigen
	if !eig.Factorize(m, kind) {
		return Result{Converged: false, NOps: 1}
	}

	vals := eig.Values(nil)
	perm := sortOrder(vals)
	sorted := make([]complex128, len(vals))
	for i, pi := range perm {
		sorted[i] = vals[pi]
	}

	res := Result{Values: sorted, Converged: true, NOps: 1}
	if s.WithVectors {
		n := j.Dim()
		var vecs mat.CDense
		eig.VectorsTo(&vecs)
		out := mat.NewCDense(n, n, nil)
		for c, pc := range perm {
			for r := 0; r < n; r++ {
				out.Set(r, c, vecs.At(r, pc))
			}
		}
		res.Vectors = out
	}
	if nev > 0 && nev < len(res.Values) {
		res.Values = res.Values[:nev]
	}
	return res
}

func sortOrder(vals []complex128) []int {
	perm := make([]int, len(vals))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		va, vb := vals[perm[a]], vals[perm[b]]
		if real(va) != real(vb) {
			return real(va) > real(vb)
		}
		return math.Abs(imag(va)) > math.Abs(imag(vb))
	})
	return perm
}

// NUnstable counts eigenvalues with positive real part.
func NUnstable(values []complex128) int {
	n := 0
	for _, v := range values {
		if real(v) > 0 {
			n++
		}
	}
	return n
}

// Rightmost returns the sorted-leading eigenvalue and its index, or
// false for an empty spectrum.
func Rightmost(values []complex128) (complex128, int, bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	return values[0], 0, true
}

// ClosestToAxis returns the index of the eigenvalue with the smallest
// absolute real part, used to pick the crossing pair during event
// classification.
func ClosestToAxis(values []complex128) int {
	best, idx := math.Inf(1), -1
	for i, v := range values {
		if d := math.Abs(real(v)); d < best {
			best, idx = d, i
		}
	}
	return idx
}

// IsComplexPair reports whether values[i] has a non-negligible imaginary
// part relative to its magnitude.
func IsComplexPair(values []complex128, i int) bool {
	if i < 0 || i >= len(values) {
		return false
	}
	v := values[i]
	return math.Abs(imag(v)) > 1e-10*math.Max(1, cmplx.Abs(v))
}
