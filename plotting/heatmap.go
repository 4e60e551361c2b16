// Package plotting renders evaluation results as images.
package plotting

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/diabetes-risk/metrics"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// HeatmapOption configures ConfusionHeatmap.
type HeatmapOption func(*heatmapConfig)

type heatmapConfig struct {
	title  string
	width  vg.Length
	height vg.Length
	format string
	colors int
}

// WithTitle sets the plot title.
func WithTitle(title string) HeatmapOption {
	return func(c *heatmapConfig) { c.title = title }
}

// WithSize sets the image size.
func WithSize(width, height vg.Length) HeatmapOption {
	return func(c *heatmapConfig) {
		c.width = width
		c.height = height
	}
}

// WithFormat sets the image format ("png", "svg", "pdf", ...).
func WithFormat(format string) HeatmapOption {
	return func(c *heatmapConfig) { c.format = format }
}

// countGrid exposes a confusion matrix as a plotter.GridXYZ.
// Columns are predictions on the x axis, rows are true labels on the y axis.
type countGrid struct {
	m *mat.Dense
}

func (g countGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g countGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g countGrid) X(c int) float64    { return float64(c) }
func (g countGrid) Y(r int) float64    { return float64(r) }

// ConfusionHeatmap draws cm as a heatmap with the count printed in each cell
// and writes the encoded image to w. names labels the classes in cm.Labels order.
func ConfusionHeatmap(w io.Writer, cm *metrics.ConfusionMatrix, names []string, opts ...HeatmapOption) error {
	cfg := heatmapConfig{
		title:  "Confusion matrix",
		width:  4 * vg.Inch,
		height: 4 * vg.Inch,
		format: "png",
		colors: 32,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cm == nil || len(cm.Labels) == 0 {
		return errors.NewValueError("ConfusionHeatmap", "empty confusion matrix")
	}
	if len(names) != len(cm.Labels) {
		return errors.NewDimensionError("ConfusionHeatmap", len(cm.Labels), len(names), 0)
	}

	grid := countGrid{m: cm.Dense()}
	heat := plotter.NewHeatMap(grid, palette.Heat(cfg.colors, 1))
	if heat.Max <= heat.Min {
		heat.Max = heat.Min + 1
	}

	p := plot.New()
	p.Title.Text = cfg.title
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Actual"
	p.Add(heat)

	var cells plotter.XYLabels
	k := len(cm.Labels)
	for r := 0; r < k; r++ {
		for c := 0; c < k; c++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(c), Y: float64(r)})
			cells.Labels = append(cells.Labels, fmt.Sprintf("%d", cm.Counts[r][c]))
		}
	}
	labels, err := plotter.NewLabels(cells)
	if err != nil {
		return errors.Wrap(err, "build cell labels")
	}
	p.Add(labels)

	ticks := make([]plot.Tick, k)
	for i, name := range names {
		ticks[i] = plot.Tick{Value: float64(i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Min, p.X.Max = -0.5, float64(k)-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(k)-0.5

	wt, err := p.WriterTo(cfg.width, cfg.height, cfg.format)
	if err != nil {
		return errors.Wrapf(err, "create %s canvas", cfg.format)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write heatmap")
	}
	return nil
}
