package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
)

// SeriesSource is anything that can return an observable over its samples,
// such as a sim.CycleSolution or a stored storage.Solution.
type SeriesSource interface {
	Series(name string) ([]float64, error)
}

// Plot renders values as a terminal line chart.
func Plot(values []float64, caption string, width, height int) string {
	if len(values) == 0 {
		return Subtle.Render("(no samples)")
	}
	return asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(3),
		asciigraph.Caption(caption),
	)
}

// PlotSeries charts one observable of src.
func PlotSeries(src SeriesSource, name string, width, height int) (string, error) {
	values, err := src.Series(name)
	if err != nil {
		return "", err
	}
	return Plot(values, fmt.Sprintf("%s vs sample", name), width, height), nil
}
