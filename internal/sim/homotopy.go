package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/batsim/internal/dynamo"
)

// rampFraction is the share of the step used to ramp the voltage target on
// the first homotopy attempt. It doubles on every further attempt.
const rampFraction = 0.05

// relax retries a failed voltage step with the target moved linearly from
// the present terminal voltage to the requested one. Each attempt starts
// from the same committed state with a slower ramp.
func (s *Simulation) relax(ctx context.Context, step *Step, cause error) (*StepSolution, error) {
	v0, err := s.presentVoltage(step)
	if err != nil {
		return nil, cause
	}
	target := step.BC.(Voltage)

	var (
		sol     *StepSolution
		attempt int
		ramp    float64
	)
	op := func() error {
		attempt++
		ramp = math.Min(1, rampFraction*math.Pow(2, float64(attempt-1))) * step.TSpan.Max
		r := ramp
		relaxed := step.Clone()
		relaxed.BC = Voltage{Value: func(t float64) float64 {
			w := math.Min(1, t/r)
			return v0 + w*(target.Value(t)-v0)
		}}

		s.log.WithFields(logrus.Fields{"attempt": attempt, "ramp": r}).Debug("homotopy attempt")
		out, err := s.integrate(ctx, relaxed)
		if err != nil {
			if errors.Is(err, dynamo.ErrContextCanceled) {
				return backoff.Permanent(err)
			}
			if out != nil {
				sol = out
			}
			return err
		}
		sol = out
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(s.homotopy-1)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if sol != nil {
			sol.Homotopy = attempt
			sol.Message = fmt.Sprintf("homotopy failed after %d attempts: %s", attempt, sol.Message)
		}
		return sol, fmt.Errorf("homotopy failed after %d attempts: %w", attempt, err)
	}

	sol.Step = step
	sol.Homotopy = attempt
	sol.Message = fmt.Sprintf("%s (homotopy: target ramped over %gs, attempt %d)", sol.Message, ramp, attempt)
	return sol, nil
}

// presentVoltage evaluates the terminal voltage of the committed state.
func (s *Simulation) presentVoltage(step *Step) (float64, error) {
	probe := step.Clone()
	res, err := s.model.Bind(probe)
	if err != nil {
		return 0, err
	}
	scratch := make([]float64, s.model.Size())
	if err := res(0, s.y0, s.yp0, scratch); err != nil {
		return 0, err
	}
	return probe.Observables.VoltageV, nil
}
