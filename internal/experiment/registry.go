package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/problems"
)

type Registry struct {
	problems map[string]func() bif.Problem
}

func NewRegistry() *Registry {
	r := &Registry{
		problems: make(map[string]func() bif.Problem),
	}

	r.problems["cubic"] = func() bif.Problem { return problems.NewCubic() }
	r.problems["pitchfork"] = func() bif.Problem { return problems.NewPitchfork() }
	r.problems["doublewell"] = func() bif.Problem { return problems.NewDoubleWell(2) }
	r.problems["hopf"] = func() bif.Problem { return problems.NewHopfNormal() }
	r.problems["bratu"] = func() bif.Problem { return problems.NewBratu(20) }
	r.problems["cusp"] = func() bif.Problem { return bif.WithLens(problems.NewCuspSystem(), "b") }

	return r
}

// Register adds a named problem constructor, replacing any previous one.
func (r *Registry) Register(name string, fn func() bif.Problem) {
	r.problems[name] = fn
}

func (r *Registry) GetProblem(name string) (bif.Problem, error) {
	fn, ok := r.problems[name]
	if !ok {
		return nil, fmt.Errorf("unknown problem: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListProblems() []string {
	names := make([]string, 0, len(r.problems))
	for name := range r.problems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
