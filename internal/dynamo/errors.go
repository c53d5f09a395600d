package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrConfig indicates inconsistent or out-of-range model parameters.
	ErrConfig = errors.New("dynamo: invalid configuration")

	// ErrMissingParam indicates a required parameter was not supplied.
	ErrMissingParam = errors.New("dynamo: missing required parameter")

	// ErrFractionRange indicates an intercalation fraction outside [0, 1]
	// reached a kinetics evaluation.
	ErrFractionRange = errors.New("dynamo: intercalation fraction out of [0, 1]")

	// ErrContextCanceled indicates the simulation was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")

	// ErrStepTooSmall indicates the adaptive timestep fell below the minimum.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrConvergence indicates repeated Newton or error-test failures.
	ErrConvergence = errors.New("dynamo: corrector failed to converge")

	// ErrMaxSteps indicates the integrator hit its internal step budget.
	ErrMaxSteps = errors.New("dynamo: maximum number of internal steps reached")

	// ErrSingular indicates a singular iteration matrix.
	ErrSingular = errors.New("dynamo: singular iteration matrix")

	// ErrDimensionMismatch indicates vectors whose lengths disagree with the model.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and model")

	// ErrUnknownObservable indicates a limit on an observable no model publishes.
	ErrUnknownObservable = errors.New("dynamo: unknown observable")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	Status  string
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d at t=%g s (%s): %v", e.Step, e.Time, e.Status, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
