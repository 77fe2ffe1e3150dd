// Package report renders training diagnostics as images.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

// Image size of saved plots.
const (
	Width  = 8 * vg.Inch
	Height = 4 * vg.Inch
)

// PlotLearningCurves draws one line per fold of loss against boosting
// iteration and saves it to path. The format follows the file extension
// (.png, .svg, .pdf).
func PlotLearningCurves(path, title string, curves [][]float64) error {
	if len(curves) == 0 {
		return errors.NewValueError("PlotLearningCurves", "no curves to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Validation log loss"
	p.Legend.Top = true

	lines := make([]interface{}, 0, 2*len(curves))
	for k, curve := range curves {
		if len(curve) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(curve))
		for i, v := range curve {
			pts[i].X = float64(i + 1)
			pts[i].Y = v
		}
		lines = append(lines, fmt.Sprintf("fold %d", k), pts)
	}
	if len(lines) == 0 {
		return errors.NewValueError("PlotLearningCurves", "all curves are empty")
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return errors.Wrap(err, "failed to add lines")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}
	return nil
}
