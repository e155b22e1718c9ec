package numdiff

import (
	"math"
	"testing"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/problems"
)

func TestJacobianMatchesAnalytic(t *testing.T) {
	prob := problems.NewHopfNormal()
	x := bif.State{0.3, -0.7}
	p := 0.2

	exact := bif.Materialize(prob.Jacobian(x, p))
	for _, method := range []Method{Forward, Central} {
		fd := Jacobian(prob, x, p, method, 0)
		for r := 0; r < 2; r++ {
			for c := 0; c < 2; c++ {
				if diff := math.Abs(fd.At(r, c) - exact.At(r, c)); diff > 1e-5 {
					t.Errorf("method %d entry (%d,%d): fd %g vs exact %g",
						method, r, c, fd.At(r, c), exact.At(r, c))
				}
			}
		}
	}
}

func TestParamDerivative(t *testing.T) {
	// F = p + x - x^3, dF/dp = 1.
	prob := problems.NewCubic()
	fp := ParamDerivative(prob, bif.State{0.4}, -0.1, 0)
	if math.Abs(fp[0]-1) > 1e-6 {
		t.Errorf("expected dF/dp = 1, got %g", fp[0])
	}

	// F = p*x - x^3, dF/dp = x.
	pf := problems.NewPitchfork()
	fp = ParamDerivative(pf, bif.State{0.4}, -0.1, 0)
	if math.Abs(fp[0]-0.4) > 1e-6 {
		t.Errorf("expected dF/dp = 0.4, got %g", fp[0])
	}
}

func TestHessianBilinearExact(t *testing.T) {
	// Cubic provides the exact form: d2F[u,v] = -6x*u*v.
	prob := problems.NewCubic()
	h := HessianBilinear(prob, bif.State{0.5}, 0, bif.State{2}, bif.State{3}, 0)
	want := -6.0 * 0.5 * 2 * 3
	if math.Abs(h[0]-want) > 1e-12 {
		t.Errorf("expected exact %g, got %g", want, h[0])
	}
}

func TestHessianBilinearFD(t *testing.T) {
	// HopfNormal has no HessianProvider, so this exercises the FD probe.
	// Cubic terms: second derivative of f1 = -x^3 - x*y^2 in direction
	// (u, v) is (-6x*u1*v1 - 2y*(u1*v2+u2*v1) - 2x*u2*v2, ...).
	prob := problems.NewHopfNormal()
	x := bif.State{0.2, -0.3}
	u := bif.State{1, 0}
	v := bif.State{0, 1}
	h := HessianBilinear(prob, x, 0, u, v, 0)
	want0 := -2 * x[1] // d2f1/dxdy = -2y
	want1 := -2 * x[0] // d2f2/dxdy = -2x
	if math.Abs(h[0]-want0) > 1e-5 || math.Abs(h[1]-want1) > 1e-5 {
		t.Errorf("expected (%g, %g), got (%g, %g)", want0, want1, h[0], h[1])
	}
}

func TestParamJacApply(t *testing.T) {
	// Pitchfork: J = p - 3x^2, dJ/dp = 1, so (dJ/dp)v = v.
	prob := problems.NewPitchfork()
	got := ParamJacApply(prob, bif.State{0.4}, 0.1, bif.State{2.5}, 0)
	if math.Abs(got[0]-2.5) > 1e-5 {
		t.Errorf("expected 2.5, got %g", got[0])
	}
}

func TestFDProblem(t *testing.T) {
	fd := &FDProblem{
		N: 1,
		R: func(x bif.State, p float64) bif.State {
			return bif.State{p + x[0] - x[0]*x[0]*x[0]}
		},
		Method: Central,
	}
	j := fd.Jacobian(bif.State{0.5}, 0)
	dst := make([]float64, 1)
	j.Apply(dst, []float64{1})
	want := 1 - 3*0.25
	if math.Abs(dst[0]-want) > 1e-6 {
		t.Errorf("expected J = %g, got %g", want, dst[0])
	}
}
