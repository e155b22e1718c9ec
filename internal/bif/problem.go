package bif

// Problem bundles the residual and Jacobian of F(x, p) = 0 for one
// scalar continuation parameter p. Implementations must be side-effect
// free with respect to x; the engine never mutates a Problem.
type Problem interface {
	Dim() int
	Residual(x State, p float64) State
	Jacobian(x State, p float64) Jacobian
}

// HessianProvider supplies the bilinear form d²F(x,p)[dx1, dx2]. When
// available, the minimally-augmented solvers use it instead of
// finite-difference directional probes.
type HessianProvider interface {
	HessianBilinear(x State, p float64, dx1, dx2 State) State
}

// AdjointProvider supplies the adjoint Jacobian directly. Problems
// without it fall back to [Adjoint].
type AdjointProvider interface {
	AdjointJacobian(x State, p float64) Jacobian
}

// Tunable exposes named scalar parameters for runtime adjustment.
type Tunable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// System is a multi-parameter problem whose active parameter is chosen
// through a lens rather than passed explicitly. Clone must return an
// independent copy: parameter writes on one copy never reach another.
type System interface {
	Dim() int
	Residual(x State) State
	Jacobian(x State) Jacobian
	Clone() System
	Tunable
}

// Cloneable marks problems that carry mutable internal state. Drivers
// that evaluate a problem from more than one goroutine duplicate it
// through [CloneProblem] first.
type Cloneable interface {
	CloneProblem() Problem
}

// CloneProblem returns an independent copy of prob when it carries
// mutable state, and prob itself otherwise.
func CloneProblem(prob Problem) Problem {
	if c, ok := prob.(Cloneable); ok {
		return c.CloneProblem()
	}
	return prob
}

// FuncProblem adapts plain closures into a Problem.
type FuncProblem struct {
	N int
	R func(x State, p float64) State
	J func(x State, p float64) Jacobian
}

func (f *FuncProblem) Dim() int                          { return f.N }
func (f *FuncProblem) Residual(x State, p float64) State { return f.R(x, p) }
func (f *FuncProblem) Jacobian(x State, p float64) Jacobian {
	return f.J(x, p)
}

// AdjointJac resolves the adjoint Jacobian of prob at (x, p), preferring
// an AdjointProvider implementation.
func AdjointJac(prob Problem, x State, p float64) Jacobian {
	if ap, ok := prob.(AdjointProvider); ok {
		return ap.AdjointJacobian(x, p)
	}
	return Adjoint(prob.Jacobian(x, p))
}

type lensProblem struct {
	sys  System
	name string
}

// WithLens selects the named parameter of sys as the continuation
// parameter. The wrapper sets that parameter before every evaluation,
// so one wrapped system must not be shared between concurrent runs;
// concurrent drivers duplicate it through [CloneProblem].
func WithLens(sys System, name string) Problem {
	if _, ok := sys.GetParams()[name]; !ok {
		panic("bifurc: lens parameter " + name + " not exposed by system")
	}
	return &lensProblem{sys: sys, name: name}
}

func (l *lensProblem) Dim() int { return l.sys.Dim() }

func (l *lensProblem) Residual(x State, p float64) State {
	l.sys.SetParam(l.name, p)
	return l.sys.Residual(x)
}

func (l *lensProblem) Jacobian(x State, p float64) Jacobian {
	l.sys.SetParam(l.name, p)
	return l.sys.Jacobian(x)
}

func (l *lensProblem) CloneProblem() Problem {
	return &lensProblem{sys: l.sys.Clone(), name: l.name}
}
