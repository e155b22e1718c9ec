// Package experiment wires problems, events and continuation options
// into runnable branch-tracing jobs. It is the glue between the config
// layer, the registry and the continuation engine.
package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/continuation"
	"github.com/san-kum/bifurc/internal/events"
)

type Config struct {
	Problem            string
	InitState          []float64
	Param              float64
	Bothside           bool
	DetectFolds        bool
	DetectBifurcations bool
	Opts               continuation.Options
}

type Experiment struct {
	cfg  Config
	prob bif.Problem
	opts continuation.Options
}

// New resolves the named problem and assembles the event set from the
// detection flags.
func New(cfg Config, reg *Registry) (*Experiment, error) {
	prob, err := reg.GetProblem(cfg.Problem)
	if err != nil {
		return nil, err
	}
	if len(cfg.InitState) != prob.Dim() {
		return nil, fmt.Errorf("problem %s wants %d state components, got %d",
			cfg.Problem, prob.Dim(), len(cfg.InitState))
	}

	opts := cfg.Opts
	var evs []events.Event
	if cfg.DetectFolds {
		evs = append(evs, events.FoldTangent())
	}
	if cfg.DetectBifurcations {
		evs = append(evs, events.StabilityChange())
		opts.ComputeEigen = true
	}
	if len(evs) > 0 {
		opts.Events = events.NewSet(evs...)
	}

	return &Experiment{cfg: cfg, prob: prob, opts: opts}, nil
}

// Run traces the branch from the configured initial point.
func (e *Experiment) Run(ctx context.Context) (*continuation.Branch, error) {
	x0 := bif.State(e.cfg.InitState).Clone()
	if e.cfg.Bothside {
		return continuation.RunBothside(ctx, e.prob, e.opts, x0, e.cfg.Param, continuation.OrientForward)
	}
	it, err := continuation.New(e.prob, e.opts)
	if err != nil {
		return nil, err
	}
	return it.Run(ctx, x0, e.cfg.Param)
}

// Problem returns the resolved problem, for post-processing of the
// branch (normal forms, singularity refinement).
func (e *Experiment) Problem() bif.Problem { return e.prob }

// Options returns the assembled continuation options. Callers may set
// Finalizer or Record hooks on the copy and run manually.
func (e *Experiment) Options() continuation.Options { return e.opts }
