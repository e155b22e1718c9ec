package events

import (
	"math"
	"math/cmplx"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/eigen"
)

// FoldTangent detects folds as sign changes of the parameter component
// of the branch tangent. No eigen-elements needed.
func FoldTangent() Event {
	return Event{
		Kind:   Continuous,
		Labels: []string{"fold"},
		Type:   bif.Fold,
		Fn: func(ctx *EvalContext) []float64 {
			return []float64{ctx.TangentP}
		},
	}
}

// StabilityChange detects eigenvalues crossing the imaginary axis as a
// discrete change of the unstable count. The crossing is classified from
// the eigenvalue nearest the axis: a complex pair means Hopf, a simple
// real eigenvalue means a branch point candidate.
func StabilityChange() Event {
	return Event{
		Kind:          Discrete,
		Labels:        []string{"n-unstable"},
		RequiresEigen: true,
		Type:          bif.Undetermined,
		Fn: func(ctx *EvalContext) []float64 {
			return []float64{float64(ctx.NUnstable)}
		},
		Classify: func(prev, cur []float64, ctx *EvalContext) bif.PointType {
			diff := int(math.Round(cur[0] - prev[0]))
			if diff < 0 {
				diff = -diff
			}
			if ctx.Eigen == nil || len(ctx.Eigen.Values) == 0 {
				return bif.Undetermined
			}
			idx := eigen.ClosestToAxis(ctx.Eigen.Values)
			complexPair := eigen.IsComplexPair(ctx.Eigen.Values, idx)
			switch {
			case diff == 2 && complexPair:
				return bif.Hopf
			case diff%2 == 1 && !complexPair:
				return bif.BranchPoint
			case diff == 2 && !complexPair:
				return bif.ZeroHopf
			}
			return bif.Undetermined
		},
	}
}

// MapStabilityChange is the discrete-time analogue: Floquet multipliers
// crossing the unit circle. A real multiplier through -1 is a period
// doubling, a complex pair through |λ|=1 is Neimark-Sacker.
func MapStabilityChange() Event {
	count := func(vals []complex128) int {
		n := 0
		for _, v := range vals {
			if cmplx.Abs(v) > 1 {
				n++
			}
		}
		return n
	}
	return Event{
		Kind:          Discrete,
		Labels:        []string{"n-outside-unit"},
		RequiresEigen: true,
		Type:          bif.Undetermined,
		Fn: func(ctx *EvalContext) []float64 {
			if ctx.Eigen == nil {
				return []float64{0}
			}
			return []float64{float64(count(ctx.Eigen.Values))}
		},
		Classify: func(prev, cur []float64, ctx *EvalContext) bif.PointType {
			if ctx.Eigen == nil || len(ctx.Eigen.Values) == 0 {
				return bif.Undetermined
			}
			// Multiplier closest to the unit circle.
			best, idx := math.Inf(1), -1
			for i, v := range ctx.Eigen.Values {
				if d := math.Abs(cmplx.Abs(v) - 1); d < best {
					best, idx = d, i
				}
			}
			v := ctx.Eigen.Values[idx]
			switch {
			case eigen.IsComplexPair(ctx.Eigen.Values, idx):
				return bif.NeimarkSacker
			case real(v) < 0:
				return bif.PeriodDoubling
			default:
				return bif.Fold
			}
		},
	}
}

// Scalar wraps a plain scalar test function as a continuous event.
func Scalar(label string, typ bif.PointType, fn func(ctx *EvalContext) float64) Event {
	return Event{
		Kind:   Continuous,
		Labels: []string{label},
		Type:   typ,
		Fn: func(ctx *EvalContext) []float64 {
			return []float64{fn(ctx)}
		},
	}
}
