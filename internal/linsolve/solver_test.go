package linsolve

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bifurc/internal/bif"
)

func testJac() bif.Jacobian {
	return bif.NewDense(mat.NewDense(3, 3, []float64{
		4, 1, 0,
		1, 3, -1,
		0, -1, 2,
	}))
}

func TestDenseLU(t *testing.T) {
	j := testJac()
	rhs := []float64{1, 2, 3}
	x, ok, _ := DenseLU{}.Solve(j, rhs)
	if !ok {
		t.Fatal("solve failed")
	}
	res := make([]float64, 3)
	j.Apply(res, x)
	for i := range res {
		if math.Abs(res[i]-rhs[i]) > 1e-12 {
			t.Errorf("residual[%d] = %g", i, res[i]-rhs[i])
		}
	}
}

func TestDenseLUDimensionMismatch(t *testing.T) {
	if _, ok, _ := (DenseLU{}).Solve(testJac(), []float64{1}); ok {
		t.Error("expected failure on mismatched rhs length")
	}
}

func TestBiCGStabMatchesDirect(t *testing.T) {
	j := testJac()
	rhs := []float64{1, -2, 0.5}
	direct, _, _ := DenseLU{}.Solve(j, rhs)
	// Hide the matrix behind a matrix-free wrapper.
	mf := &bif.MatFree{N: 3, MulVec: j.Apply}
	x, ok, _ := BiCGStab{}.Solve(mf, rhs)
	if !ok {
		t.Fatal("bicgstab did not converge")
	}
	for i := range x {
		if math.Abs(x[i]-direct[i]) > 1e-8 {
			t.Errorf("x[%d]: bicgstab %g vs direct %g", i, x[i], direct[i])
		}
	}
}

func TestBiCGStabZeroRHS(t *testing.T) {
	x, ok, iters := BiCGStab{}.Solve(testJac(), []float64{0, 0, 0})
	if !ok || iters != 0 {
		t.Fatalf("expected immediate convergence, ok=%v iters=%d", ok, iters)
	}
	if bif.State(x).Norm() != 0 {
		t.Errorf("expected zero solution, got %v", x)
	}
}

// checkBordered verifies the two block equations
// J v + sigma a = rhsU and b.v + c sigma = rhsP.
func checkBordered(t *testing.T, j bif.Jacobian, a, b bif.State, c float64, rhsU bif.State, rhsP float64, v bif.State, sigma float64) {
	t.Helper()
	res := make([]float64, j.Dim())
	j.Apply(res, v)
	for i := range res {
		res[i] += sigma*a[i] - rhsU[i]
		if math.Abs(res[i]) > 1e-10 {
			t.Errorf("block residual[%d] = %g", i, res[i])
		}
	}
	if r := b.Dot(v) + c*sigma - rhsP; math.Abs(r) > 1e-10 {
		t.Errorf("border residual = %g", r)
	}
}

func TestBorderedSolvers(t *testing.T) {
	j := testJac()
	a := bif.State{1, 0, 2}
	b := bif.State{0, 1, 1}
	c := 0.5
	rhsU := bif.State{1, 1, 1}
	rhsP := 2.0

	solvers := []struct {
		name string
		bls  BorderedSolver
	}{
		{"bordering", Bordering{Base: DenseLU{}}},
		{"bordering-checked", Bordering{Base: DenseLU{}, CheckResidual: true}},
		{"matrix", MatrixBordered{}},
	}

	var refV bif.State
	var refSigma float64
	for i, s := range solvers {
		v, sigma, ok, _ := s.bls.Solve(j, a, b, c, rhsU, rhsP)
		if !ok {
			t.Fatalf("%s: solve failed", s.name)
		}
		checkBordered(t, j, a, b, c, rhsU, rhsP, v, sigma)
		if i == 0 {
			refV, refSigma = v, sigma
			continue
		}
		if math.Abs(sigma-refSigma) > 1e-9 {
			t.Errorf("%s: sigma %g disagrees with bordering %g", s.name, sigma, refSigma)
		}
		for k := range v {
			if math.Abs(v[k]-refV[k]) > 1e-9 {
				t.Errorf("%s: v[%d] %g disagrees with bordering %g", s.name, k, v[k], refV[k])
			}
		}
	}
}

func TestBorderedSingularJacobian(t *testing.T) {
	// The whole point of bordering: J singular but the augmented system
	// regular. J = diag(0, 1) with borders along the null direction.
	j := bif.NewDense(mat.NewDense(2, 2, []float64{0, 0, 0, 1}))
	a := bif.State{1, 0}
	b := bif.State{1, 0}
	v, sigma, ok, _ := MatrixBordered{}.Solve(j, a, b, 0, bif.State{0, 0}, 1)
	if !ok {
		t.Fatal("augmented solve failed")
	}
	// Solution: v = (1, 0), sigma = 0.
	if math.Abs(v[0]-1) > 1e-12 || math.Abs(v[1]) > 1e-12 || math.Abs(sigma) > 1e-12 {
		t.Errorf("got v=%v sigma=%g", v, sigma)
	}
}

func TestSolveAdjointBordered(t *testing.T) {
	j := testJac()
	a := bif.State{1, 0, 2}
	b := bif.State{0, 1, 1}
	c := 0.5
	rhsU := bif.State{0, 0, 0}
	rhsP := 1.0

	w, tau, ok, _ := SolveAdjointBordered(Bordering{Base: DenseLU{}}, j, a, b, c, rhsU, rhsP)
	if !ok {
		t.Fatal("adjoint solve failed")
	}
	// Check Jt w + tau b = rhsU and a.w + c tau = rhsP.
	jm := bif.Materialize(j)
	res := make([]float64, 3)
	bif.NewDense(jm).ApplyTrans(res, w)
	for i := range res {
		res[i] += tau*b[i] - rhsU[i]
		if math.Abs(res[i]) > 1e-10 {
			t.Errorf("adjoint block residual[%d] = %g", i, res[i])
		}
	}
	if r := a.Dot(w) + c*tau - rhsP; math.Abs(r) > 1e-10 {
		t.Errorf("adjoint border residual = %g", r)
	}
}
