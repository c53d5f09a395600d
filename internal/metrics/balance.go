package metrics

import (
	"fmt"
	"math"

	"github.com/san-kum/batsim/internal/sim"
)

// ChargeBalance returns the largest relative mismatch between the
// integrated anode reaction current and the terminal current over the
// samples of sol. Conservation requires FaradaicAn = -I and
// FaradaicCa = +I. Samples below minCurrent [A] are compared in absolute
// terms.
func ChargeBalance(model sim.Poster, sol *sim.StepSolution, minCurrent float64) (float64, error) {
	if len(sol.Observables) != len(sol.T) {
		return 0, fmt.Errorf("step %d has no observables", sol.Index)
	}
	worst := 0.0
	for k, t := range sol.T {
		prof, err := model.Post(sol.Step, t, sol.Y[k], sol.Yp[k])
		if err != nil {
			return 0, fmt.Errorf("post at t=%g: %w", t, err)
		}
		amps := sol.Observables[k].CurrentA
		scale := math.Max(math.Abs(amps), minCurrent)
		an := math.Abs(prof.FaradaicAn+amps) / scale
		ca := math.Abs(prof.FaradaicCa-amps) / scale
		worst = math.Max(worst, math.Max(an, ca))
	}
	return worst, nil
}
