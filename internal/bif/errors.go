package bif

import (
	"errors"
	"fmt"
)

// Domain errors for continuation operations.
var (
	// ErrLinearSolveFailed indicates a base or bordered linear solve did
	// not converge within its iteration budget.
	ErrLinearSolveFailed = errors.New("bifurc: linear solve did not converge")

	// ErrNewtonDiverged indicates the corrector exceeded its iteration
	// budget or the residual norm grew past the divergence factor.
	ErrNewtonDiverged = errors.New("bifurc: newton iteration diverged")

	// ErrStepSizeUnderflow indicates the arclength step shrank below its
	// minimum after repeated rejections.
	ErrStepSizeUnderflow = errors.New("bifurc: arclength step below minimum")

	// ErrDeflatedNewtonFailed indicates the deflated corrector used for
	// branch switching did not converge.
	ErrDeflatedNewtonFailed = errors.New("bifurc: deflated newton did not converge")

	// ErrInvalidBifurcationType indicates an operation requested on a
	// special point whose classification does not support it.
	ErrInvalidBifurcationType = errors.New("bifurc: operation not supported for this point type")

	// ErrDimensionMismatch indicates mismatched state/problem dimensions.
	ErrDimensionMismatch = errors.New("bifurc: dimension mismatch between state and problem")

	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("bifurc: invalid state (NaN or Inf detected)")
)

// StepError wraps an error with the continuation step it occurred on.
type StepError struct {
	Step    int
	P       float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (p=%.6g): %v", e.Step, e.P, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
