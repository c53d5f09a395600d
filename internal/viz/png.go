package viz

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/batsim/internal/dynamo"
)

// XYs implements the gonum.org/v1/plot/plotter.XYer interface.
type XYs []XY

// XY is an x and y value.
type XY struct{ X, Y float64 }

func (xys XYs) Len() int { return len(xys) }

func (xys XYs) XY(i int) (float64, float64) { return xys[i].X, xys[i].Y }

// Zip pairs x and y sample by sample.
func Zip(x, y []float64) (XYs, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d x values for %d y values", dynamo.ErrDimensionMismatch, len(x), len(y))
	}
	out := make(XYs, len(x))
	for i := range x {
		out[i] = XY{x[i], y[i]}
	}
	return out, nil
}

// SaveChart draws every ys observable of src against x and writes the
// chart to path. The image format follows the extension (.png, .svg,
// .pdf).
func SaveChart(path, title string, src SeriesSource, x string, ys ...string) error {
	if len(ys) == 0 {
		return fmt.Errorf("%w: nothing to plot", dynamo.ErrConfig)
	}
	xs, err := src.Series(x)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	if len(ys) == 1 {
		p.Y.Label.Text = ys[0]
	}
	p.Add(plotter.NewGrid())

	for i, name := range ys {
		values, err := src.Series(name)
		if err != nil {
			return err
		}
		pts, err := Zip(xs, values)
		if err != nil {
			return err
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		if len(ys) > 1 {
			p.Legend.Add(name, line)
		}
	}

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
