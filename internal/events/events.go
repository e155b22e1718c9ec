// Package events implements the test-function machinery that detects
// bifurcations along a branch: continuous (sign-change) and discrete
// (value-change) events, their composition into flattened sets, and the
// bisection used to localize continuous crossings.
package events

import (
	"errors"
	"math"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/eigen"
)

// Kind distinguishes the two base event families.
type Kind int

const (
	// Continuous events return reals and fire on a sign change or a
	// value within tolerance of zero. Crossings are refined by bisection.
	Continuous Kind = iota
	// Discrete events return integer-valued counts and fire on any value
	// change. The step itself is the detection granularity.
	Discrete
)

// EvalContext is the state snapshot handed to test functions.
type EvalContext struct {
	Problem   bif.Problem
	X         bif.State
	P         float64
	TangentX  bif.State
	TangentP  float64
	Eigen     *eigen.Result // nil unless the set requires eigen-elements
	NUnstable int
	Step      int
}

// Event is a single test function producing one or more values.
type Event struct {
	Kind          Kind
	Labels        []string
	RequiresEigen bool
	// Fn evaluates the test values at the given state.
	Fn func(ctx *EvalContext) []float64
	// Type tags crossings of this event; Classify, when set, refines the
	// tag from the surrounding values.
	Type     bif.PointType
	Classify func(prev, cur []float64, ctx *EvalContext) bif.PointType
	// Init, when set, is called once before the first step.
	Init func(ctx *EvalContext)
}

// Set is a flattened composite of events presenting the single interface
// the iterator needs.
type Set struct {
	events  []Event
	offsets []int
	total   int
}

// NewSet flattens evs into one composite. Nested sets are not needed:
// composition happens once, at construction.
func NewSet(evs ...Event) *Set {
	s := &Set{}
	for _, ev := range evs {
		s.offsets = append(s.offsets, s.total)
		s.total += len(ev.Labels)
		s.events = append(s.events, ev)
	}
	return s
}

// Pair composes exactly one continuous and one discrete event.
func Pair(cont, disc Event) (*Set, error) {
	if cont.Kind != Continuous || disc.Kind != Discrete {
		return nil, errors.New("bifurc: Pair wants one continuous and one discrete event")
	}
	return NewSet(cont, disc), nil
}

func (s *Set) Len() int { return s.total }

func (s *Set) Labels() []string {
	out := make([]string, 0, s.total)
	for _, ev := range s.events {
		out = append(out, ev.Labels...)
	}
	return out
}

// RequiresEigen reports whether any sub-event needs eigen-elements.
func (s *Set) RequiresEigen() bool {
	for _, ev := range s.events {
		if ev.RequiresEigen {
			return true
		}
	}
	return false
}

// Initialize runs per-event init hooks before the first step.
func (s *Set) Initialize(ctx *EvalContext) {
	for _, ev := range s.events {
		if ev.Init != nil {
			ev.Init(ctx)
		}
	}
}

// Eval concatenates all test values in declaration order.
func (s *Set) Eval(ctx *EvalContext) []float64 {
	out := make([]float64, 0, s.total)
	for _, ev := range s.events {
		vals := ev.Fn(ctx)
		out = append(out, vals...)
	}
	return out
}

// Crossing records one fired test-function slot between two steps.
type Crossing struct {
	Slot  int
	Kind  Kind
	Label string
	Type  bif.PointType
}

// Crossings compares two consecutive evaluations and lists every slot
// that fired. Continuous slots fire on sign change or |cur| <= tol;
// discrete slots fire on any integer change.
func (s *Set) Crossings(prev, cur []float64, tol float64, ctx *EvalContext) []Crossing {
	var out []Crossing
	for i, ev := range s.events {
		off := s.offsets[i]
		for k := range ev.Labels {
			slot := off + k
			if slot >= len(prev) || slot >= len(cur) {
				continue
			}
			if !slotCrossed(ev.Kind, prev[slot], cur[slot], tol) {
				continue
			}
			typ := ev.Type
			if ev.Classify != nil {
				typ = ev.Classify(prev[off:off+len(ev.Labels)], cur[off:off+len(ev.Labels)], ctx)
			}
			out = append(out, Crossing{Slot: slot, Kind: ev.Kind, Label: ev.Labels[k], Type: typ})
		}
	}
	return out
}

func slotCrossed(kind Kind, prev, cur, tol float64) bool {
	switch kind {
	case Discrete:
		return math.Round(prev) != math.Round(cur)
	default:
		if prev*cur < 0 {
			return true
		}
		return math.Abs(cur) <= tol && math.Abs(prev) > tol
	}
}

// KindOf returns the kind of a flattened slot.
func (s *Set) KindOf(slot int) Kind {
	for i := len(s.events) - 1; i >= 0; i-- {
		if slot >= s.offsets[i] {
			return s.events[i].Kind
		}
	}
	return Continuous
}
