package eigen

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bifurc/internal/bif"
)

func TestDenseOrdering(t *testing.T) {
	// Eigenvalues 3, -1, 2 on the diagonal.
	j := bif.NewDense(mat.NewDense(3, 3, []float64{
		3, 0, 0,
		0, -1, 0,
		0, 0, 2,
	}))
	res := Dense{}.Eigen(j, 0)
	if !res.Converged {
		t.Fatal("eigen failed")
	}
	want := []float64{3, 2, -1}
	for i, w := range want {
		if math.Abs(real(res.Values[i])-w) > 1e-12 {
			t.Errorf("values[%d]: expected %g, got %v", i, w, res.Values[i])
		}
	}
}

func TestDenseTruncation(t *testing.T) {
	j := bif.NewDense(mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 2, 0,
		0, 0, 3,
	}))
	res := Dense{}.Eigen(j, 2)
	if len(res.Values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(res.Values))
	}
	if real(res.Values[0]) != 3 || real(res.Values[1]) != 2 {
		t.Errorf("leading pair wrong: %v", res.Values)
	}
}

func TestDenseVectors(t *testing.T) {
	// Rotation-like block with eigenvalues p +- i.
	p := 0.3
	j := bif.NewDense(mat.NewDense(2, 2, []float64{
		p, -1,
		1, p,
	}))
	res := Dense{WithVectors: true}.Eigen(j, 0)
	if !res.Converged || res.Vectors == nil {
		t.Fatal("expected vectors")
	}
	// Verify J v = lambda v for the leading pair.
	lam := res.Values[0]
	jm := bif.Materialize(j)
	for r := 0; r < 2; r++ {
		var got complex128
		for c := 0; c < 2; c++ {
			got += complex(jm.At(r, c), 0) * res.Vectors.At(c, 0)
		}
		want := lam * res.Vectors.At(r, 0)
		if math.Hypot(real(got-want), imag(got-want)) > 1e-10 {
			t.Errorf("eigenpair residual row %d: %v vs %v", r, got, want)
		}
	}
}

func TestNUnstable(t *testing.T) {
	tests := []struct {
		name string
		vals []complex128
		want int
	}{
		{"all stable", []complex128{-1, complex(-0.5, 2)}, 0},
		{"one unstable", []complex128{1, -1}, 1},
		{"pair unstable", []complex128{complex(0.1, 1), complex(0.1, -1), -2}, 2},
		{"marginal", []complex128{0, -1}, 0},
	}
	for _, tt := range tests {
		if got := NUnstable(tt.vals); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestClosestToAxis(t *testing.T) {
	vals := []complex128{complex(2, 0), complex(-0.01, 1), complex(-3, 0)}
	if got := ClosestToAxis(vals); got != 1 {
		t.Errorf("expected index 1, got %d", got)
	}
	if got := ClosestToAxis(nil); got != -1 {
		t.Errorf("expected -1 for empty spectrum, got %d", got)
	}
}

func TestIsComplexPair(t *testing.T) {
	vals := []complex128{complex(1, 0.5), complex(1, 0), complex(1, 1e-14)}
	if !IsComplexPair(vals, 0) {
		t.Error("expected complex pair at 0")
	}
	if IsComplexPair(vals, 1) || IsComplexPair(vals, 2) {
		t.Error("real eigenvalues flagged as complex")
	}
	if IsComplexPair(vals, 5) {
		t.Error("out of range index must be false")
	}
}
