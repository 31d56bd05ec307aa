// Package visualize renders simulation steps to image files.
package visualize

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/gmrfnav/lattice"
	"go.viam.com/gmrfnav/simulation"
)

const paletteColors = 32

// HeatmapObserver writes one PNG per step showing the predictive variance with the planned path,
// the sensed locations and the obstacles on top.
type HeatmapObserver struct {
	dir    string
	width  vg.Length
	height vg.Length
	logger golog.Logger
}

// NewHeatmapObserver returns an observer writing into dir, creating it if needed.
func NewHeatmapObserver(dir string, logger golog.Logger) (*HeatmapObserver, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating plot directory %q", dir)
	}
	return &HeatmapObserver{dir: dir, width: 8 * vg.Inch, height: 6 * vg.Inch, logger: logger}, nil
}

// Observe renders result to <dir>/step_NNN.png.
func (h *HeatmapObserver) Observe(ctx context.Context, result *simulation.StepResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := stepPlot(result)
	if err != nil {
		return err
	}
	file := filepath.Join(h.dir, fmt.Sprintf("step_%03d.png", result.Step))
	if err := p.Save(h.width, h.height, file); err != nil {
		return errors.Wrapf(err, "saving %s", file)
	}
	h.logger.Debugw("wrote step plot", "file", file, "step", result.Step)
	return nil
}

func stepPlot(result *simulation.StepResult) (*plot.Plot, error) {
	if result.Prediction == nil {
		return nil, errors.New("step result has no prediction")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Predictive variance, step %d", result.Step)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	grid := varianceGrid{lattice: result.Prediction.Lattice(), values: result.Prediction.FieldVariance()}
	heat := plotter.NewHeatMap(grid, palette.Heat(paletteColors, 1))
	if heat.Max <= heat.Min {
		// a flat field maps every node to the lowest color
		heat.Max = heat.Min + 1
	}
	p.Add(heat)

	for _, o := range result.Obstacles {
		fp := o.Footprint()
		poly, err := plotter.NewPolygon(plotter.XYs{
			{X: fp.X.Lo, Y: fp.Y.Lo},
			{X: fp.X.Hi, Y: fp.Y.Lo},
			{X: fp.X.Hi, Y: fp.Y.Hi},
			{X: fp.X.Lo, Y: fp.Y.Hi},
		})
		if err != nil {
			return nil, err
		}
		poly.Color = color.Gray{Y: 60}
		p.Add(poly)
	}

	if result.Plan != nil && len(result.Plan.Trajectory) > 1 {
		pts := make(plotter.XYs, 0, len(result.Plan.Trajectory))
		for _, pose := range result.Plan.Trajectory {
			pts = append(pts, plotter.XY{X: pose.X(), Y: pose.Y()})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Width = vg.Points(1.5)
		line.Color = color.RGBA{B: 255, A: 255}
		p.Add(line)
	}

	if len(result.Sensed) > 0 {
		pts := make(plotter.XYs, 0, len(result.Sensed))
		for _, s := range result.Sensed {
			pts = append(pts, plotter.XY{X: s.X, Y: s.Y})
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		scatter.Color = color.Black
		p.Add(scatter)
	}
	return p, nil
}

// varianceGrid exposes lattice node values as a plotter.GridXYZ. Columns run along x and rows
// along y, matching the lattice.
type varianceGrid struct {
	lattice *lattice.Lattice
	values  []float64
}

func (g varianceGrid) Dims() (c, r int) {
	return g.lattice.Cols, g.lattice.Rows
}

func (g varianceGrid) Z(c, r int) float64 {
	return g.values[g.lattice.Index(r, c)]
}

func (g varianceGrid) X(c int) float64 {
	return g.lattice.X0 + float64(c)*g.lattice.Dx
}

func (g varianceGrid) Y(r int) float64 {
	return g.lattice.Y0 + float64(r)*g.lattice.Dy
}
