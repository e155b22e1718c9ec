// Package continuation implements pseudo-arclength predictor-corrector
// continuation of solution branches of F(x, p) = 0, with adaptive step
// control, event detection and stability tracking.
//
// The central type is [Iterator]:
//
//	it := continuation.New(prob, opts)
//	branch, err := it.Run(ctx, x0, p0)
//
// Each accepted step appends a [Snapshot] to the returned [Branch];
// detected singularities are recorded as [SpecialPoint] entries.
//
// # Thread Safety
//
// An Iterator owns its state exclusively. For forward/backward tracing
// use [RunBothside], which runs two independent iterators concurrently
// and merges their branches.
package continuation

import (
	"fmt"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/eigen"
	"github.com/san-kum/bifurc/internal/events"
	"github.com/san-kum/bifurc/internal/linsolve"
	"github.com/san-kum/bifurc/internal/newton"
)

const (
	DefaultDs       = 0.01
	DefaultDsMin    = 1e-8
	DefaultDsMax    = 0.1
	DefaultMaxSteps = 1000
	DefaultTheta    = 0.5
	DefaultEventTol = 1e-6
	DefaultGrowth   = 1.2
)

// Options configures one continuation run.
type Options struct {
	Ds       float64 // initial arclength step; sign selects direction
	DsMin    float64
	DsMax    float64
	MaxSteps int
	PMin     float64 // parameter window; branch terminates outside it
	PMax     float64
	Theta    float64 // weight of the state block in the arclength metric

	Newton newton.Options
	// Bordered solves the arclength-augmented corrector system and any
	// MA test functions; defaults to Bordering over the Newton solver.
	Bordered linsolve.BorderedSolver

	// Events to monitor along the branch; nil disables detection.
	Events    *events.Set
	EventTol  float64
	MaxBisect int

	// TieBreak orders simultaneous crossings in the same step. Earlier
	// types win. Defaults to fold, hopf, branch point.
	TieBreak []bif.PointType

	// ComputeEigen requests NEig eigenvalues of the Jacobian at every
	// accepted step (all of them when NEig <= 0).
	ComputeEigen bool
	NEig         int
	EigenSolver  eigen.Solver

	// Record is a best-effort per-accepted-step callback; failures
	// (including panics) never abort continuation.
	Record func(x bif.State, p float64)
	// Finalizer runs once per completed step; returning false halts the
	// run. This is the sole cancellation interface besides the context.
	Finalizer func(s Snapshot, br *Branch) bool
}

func (o Options) withDefaults() Options {
	if o.Ds == 0 {
		o.Ds = DefaultDs
	}
	if o.DsMin == 0 {
		o.DsMin = DefaultDsMin
	}
	if o.DsMax == 0 {
		o.DsMax = DefaultDsMax
	}
	if o.MaxSteps == 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.Theta == 0 {
		o.Theta = DefaultTheta
	}
	if o.PMin == 0 && o.PMax == 0 {
		o.PMin, o.PMax = -1e30, 1e30
	}
	if o.EventTol == 0 {
		o.EventTol = DefaultEventTol
	}
	if o.MaxBisect == 0 {
		o.MaxBisect = events.DefaultBisectIter
	}
	if o.Newton.Solver == nil {
		o.Newton.Solver = linsolve.DenseLU{}
	}
	if o.Bordered == nil {
		o.Bordered = linsolve.Bordering{Base: o.Newton.Solver}
	}
	if o.EigenSolver == nil {
		o.EigenSolver = eigen.Dense{}
	}
	if len(o.TieBreak) == 0 {
		o.TieBreak = []bif.PointType{bif.Fold, bif.Hopf, bif.BranchPoint}
	}
	return o
}

func (o Options) validate() error {
	if o.DsMin <= 0 {
		return fmt.Errorf("ds_min must be positive, got %g", o.DsMin)
	}
	if o.DsMax < o.DsMin {
		return fmt.Errorf("ds_max %g below ds_min %g", o.DsMax, o.DsMin)
	}
	if o.PMax < o.PMin {
		return fmt.Errorf("p_max %g below p_min %g", o.PMax, o.PMin)
	}
	if o.Theta <= 0 || o.Theta >= 1 {
		return fmt.Errorf("theta must lie in (0,1), got %g", o.Theta)
	}
	return nil
}

// Status reports how a branch terminated. Every status still carries a
// valid (possibly short) branch.
type Status int

const (
	StatusParamBound Status = iota
	StatusMaxSteps
	StatusStuck
	StatusLinearFailure
	StatusHalted
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusParamBound:
		return "parameter bound reached"
	case StatusMaxSteps:
		return "max steps reached"
	case StatusStuck:
		return "stuck (step size underflow)"
	case StatusLinearFailure:
		return "linear solver failure"
	case StatusHalted:
		return "halted by finalizer"
	case StatusCanceled:
		return "canceled"
	}
	return "unknown"
}
