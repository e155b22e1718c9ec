package problems

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bifurc/internal/bif"
)

// CuspSystem is the two-parameter cubic F(x) = b + a·x − x³ exposed
// through named parameters. Continued in "b" it shows two folds for
// a > 0; continuing a fold in "a" traces the cusp curve 4a³ = 27b².
type CuspSystem struct {
	A, B float64
}

func NewCuspSystem() *CuspSystem { return &CuspSystem{A: 1} }

func (*CuspSystem) Dim() int { return 1 }

func (c *CuspSystem) Residual(x bif.State) bif.State {
	return bif.State{c.B + c.A*x[0] - x[0]*x[0]*x[0]}
}

func (c *CuspSystem) Jacobian(x bif.State) bif.Jacobian {
	return bif.NewDense(mat.NewDense(1, 1, []float64{c.A - 3*x[0]*x[0]}))
}

func (c *CuspSystem) Clone() bif.System {
	cp := *c
	return &cp
}

func (c *CuspSystem) GetParams() map[string]float64 {
	return map[string]float64{"a": c.A, "b": c.B}
}

func (c *CuspSystem) SetParam(name string, value float64) error {
	switch name {
	case "a":
		c.A = value
	case "b":
		c.B = value
	default:
		return fmt.Errorf("unknown parameter: %s", name)
	}
	return nil
}
