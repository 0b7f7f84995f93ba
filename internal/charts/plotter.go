package charts

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/fieldwork-data/vignette.report/internal/model"
	"github.com/fieldwork-data/vignette.report/internal/units"
)

// EffectsPNG renders the average marginal effects as a static bar chart for
// report embedding. Returns the written filename.
func (g *Generator) EffectsPNG(effects []model.Effect, scale string) (string, error) {
	if len(effects) == 0 {
		return "", fmt.Errorf("no effects to plot")
	}

	p := plot.New()
	p.Title.Text = "Average Marginal Effects"
	p.X.Label.Text = "Attribute"
	p.Y.Label.Text = fmt.Sprintf("Effect (%s rating points)", scale)

	values := make(plotter.Values, len(effects))
	names := make([]string, len(effects))
	for i, e := range effects {
		values[i] = units.ConvertEffect(e.AME, scale)
		names[i] = e.Name
	}

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return "", fmt.Errorf("failed to build bar chart: %w", err)
	}
	bars.Color = color.RGBA{R: 49, G: 104, B: 142, A: 255}
	p.Add(bars)
	p.NominalX(names...)

	path := filepath.Join(g.outputDir, "effects.png")
	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("failed to save effects plot: %w", err)
	}
	return path, nil
}

// FittedMeansPNG plots fitted means against observation index as a quick
// diagnostic for degenerate fits (all means collapsed to one value).
func (g *Generator) FittedMeansPNG(fit *model.Fit) (string, error) {
	if len(fit.FittedMeans) == 0 {
		return "", fmt.Errorf("fit carries no fitted means")
	}

	p := plot.New()
	p.Title.Text = "Fitted Means"
	p.X.Label.Text = "Observation"
	p.Y.Label.Text = "Fitted mean"
	p.Y.Min = 0
	p.Y.Max = 1

	pts := make(plotter.XYs, len(fit.FittedMeans))
	for i, mu := range fit.FittedMeans {
		pts[i] = plotter.XY{X: float64(i), Y: mu}
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("failed to build scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 158, B: 137, A: 255}
	p.Add(scatter)

	path := filepath.Join(g.outputDir, "fitted_means.png")
	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("failed to save fitted means plot: %w", err)
	}
	return path, nil
}
