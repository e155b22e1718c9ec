package continuation

import (
	"context"
	"sync"

	"github.com/san-kum/bifurc/internal/bif"
)

// RunBothside traces the branch through (x0, p0) in both directions.
// The two runs share only the immutable configuration: each direction
// gets its own Iterator and, through [bif.CloneProblem], its own copy of
// any problem with mutable state (parameter lenses, refreshed borders),
// so they are safe to execute concurrently. The returned branch is the
// merge of the backward and forward halves.
func RunBothside(ctx context.Context, prob bif.Problem, opts Options, x0 bif.State, p0 float64, orient MergeOrientation) (*Branch, error) {
	fwdOpts := opts
	bwdOpts := opts
	if fwdOpts.Ds == 0 {
		fwdOpts.Ds = DefaultDs
	}
	bwdOpts.Ds = -fwdOpts.Ds

	branches := make([]*Branch, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i, o := range []Options{bwdOpts, fwdOpts} {
		wg.Add(1)
		go func(idx int, runOpts Options) {
			defer wg.Done()
			it, err := New(bif.CloneProblem(prob), runOpts)
			if err != nil {
				errs[idx] = err
				return
			}
			branches[idx], errs[idx] = it.Run(ctx, x0.Clone(), p0)
		}(i, o)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Merge(branches[0], branches[1], orient), err
		}
	}
	return Merge(branches[0], branches[1], orient), nil
}
