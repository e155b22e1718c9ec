package continuation

import (
	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/eigen"
	"github.com/san-kum/bifurc/internal/events"
)

// checkEvents compares the test values across the accepted step, picks
// the winning crossing under the configured tie-break order and, for
// continuous events, bisects the step interval to localize it.
// prev is the previously accepted point and ds the accepted step length;
// index is the branch index the new point will receive.
func (it *Iterator) checkEvents(prevVals, curVals []float64, evCtx *events.EvalContext, prev bif.Point, tan Tangent, ds float64, index int) (SpecialPoint, bool) {
	crossings := it.opts.Events.Crossings(prevVals, curVals, it.opts.EventTol, evCtx)
	if len(crossings) == 0 {
		return SpecialPoint{}, false
	}
	winner := crossings[0]
	best := it.rank(winner.Type)
	for _, c := range crossings[1:] {
		if r := it.rank(c.Type); r < best {
			winner, best = c, r
		}
	}

	sp := SpecialPoint{
		Type:       winner.Type,
		X:          evCtx.X.Clone(),
		P:          evCtx.P,
		Index:      index,
		EigenIndex: -1,
		Tangent:    tan.Clone(),
		Interval:   orderedInterval(prev.P, evCtx.P),
		Label:      winner.Label,
	}
	if evCtx.Eigen != nil {
		sp.EigenIndex = eigen.ClosestToAxis(evCtx.Eigen.Values)
	}
	if winner.Kind == events.Discrete {
		// No refinement: the step is the detection granularity.
		return sp, true
	}

	if pt, ok := it.bisectCrossing(prev, tan, ds, winner.Slot, prevVals[winner.Slot], curVals[winner.Slot]); ok {
		sp.X = pt.X
		sp.P = pt.P
	}
	return sp, true
}

func (it *Iterator) rank(t bif.PointType) int {
	for i, tb := range it.opts.TieBreak {
		if tb == t {
			return i
		}
	}
	return len(it.opts.TieBreak)
}

// bisectCrossing localizes a continuous sign change along the step by
// re-correcting at fractional arclengths from the previous point.
func (it *Iterator) bisectCrossing(prev bif.Point, tan Tangent, ds float64, slot int, gPrev, gCur float64) (bif.Point, bool) {
	tolS := it.opts.EventTol / ds
	if tolS >= 1 {
		return bif.Point{}, false
	}

	pointAt := func(s float64) (bif.Point, bool) {
		pt, res := correct(it.prob, prev, tan, s*ds, it.m, it.opts.Newton, it.opts.Bordered)
		return pt, res.Converged
	}
	g := func(s float64) (float64, error) {
		switch s {
		case 0:
			return gPrev, nil
		case 1:
			return gCur, nil
		}
		pt, ok := pointAt(s)
		if !ok {
			return 0, bif.ErrNewtonDiverged
		}
		ctx, eig := it.evalAt(pt, tan, -1)
		if it.opts.Events.RequiresEigen() && eig == nil {
			return 0, bif.ErrLinearSolveFailed
		}
		vals := it.opts.Events.Eval(ctx)
		if slot >= len(vals) {
			return 0, bif.ErrDimensionMismatch
		}
		return vals[slot], nil
	}

	sStar, err := events.Bisect(g, 0, 1, tolS, it.opts.MaxBisect)
	if err != nil || sStar <= 0 {
		return bif.Point{}, false
	}
	pt, ok := pointAt(sStar)
	return pt, ok
}

func orderedInterval(a, b float64) [2]float64 {
	if a > b {
		a, b = b, a
	}
	return [2]float64{a, b}
}
