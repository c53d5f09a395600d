package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/batsim/internal/automation"
	"github.com/san-kum/batsim/internal/dynamo"
)

// GridSearch picks the sweep point with the lowest (or highest) value of
// one metric.
type GridSearch struct {
	Metric   string
	Maximize bool
}

func NewGridSearch(metric string, maximize bool) *GridSearch {
	return &GridSearch{Metric: metric, Maximize: maximize}
}

// Search runs the sweep and returns its best point.
func (g *GridSearch) Search(ctx context.Context, runner *automation.Runner, sweep *automation.ParameterSweep) (automation.RunResult, float64, error) {
	results, err := runner.RunSweep(ctx, sweep)
	if err != nil {
		return automation.RunResult{}, math.NaN(), err
	}
	return g.Best(results)
}

// Best returns the best successful result. Failed points and points
// without the metric are skipped.
func (g *GridSearch) Best(results []automation.RunResult) (automation.RunResult, float64, error) {
	best := math.Inf(1)
	if g.Maximize {
		best = math.Inf(-1)
	}
	idx := -1

	for i, r := range results {
		if !r.Success {
			continue
		}
		val, ok := r.Metrics[g.Metric]
		if !ok || math.IsNaN(val) {
			continue
		}
		if (g.Maximize && val > best) || (!g.Maximize && val < best) {
			best = val
			idx = i
		}
	}

	if idx < 0 {
		return automation.RunResult{}, math.NaN(), fmt.Errorf("%w: no successful point reports %s", dynamo.ErrConfig, g.Metric)
	}
	return results[idx], best, nil
}
