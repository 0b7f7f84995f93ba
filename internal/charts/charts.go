// Package charts renders analysis results as HTML (go-echarts) and PNG
// (gonum/plot) artifacts under a timestamped run directory. The HTML chart
// builders are exported separately so the HTTP server can render them
// straight to a response.
package charts

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/fieldwork-data/vignette.report/internal/model"
	"github.com/fieldwork-data/vignette.report/internal/units"
)

// Generator writes chart files into a single output directory.
type Generator struct {
	outputDir string
}

// NewGenerator creates the output directory if needed.
func NewGenerator(outputDir string) (*Generator, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart output dir: %w", err)
	}
	return &Generator{outputDir: outputDir}, nil
}

// OutputDir returns the directory charts are written into.
func (g *Generator) OutputDir() string {
	return g.outputDir
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakeRunOutputDir builds a per-run chart directory: <base>/<runID>/<timestamp>.
func MakeRunOutputDir(baseDir, runID string) string {
	return filepath.Join(baseDir, runID, FormatTimestamp(time.Now()))
}

// EffectsBar builds the average-marginal-effects bar chart on the given
// rating scale.
func EffectsBar(effects []model.Effect, scale string) (*charts.Bar, error) {
	if len(effects) == 0 {
		return nil, fmt.Errorf("no effects to chart")
	}

	names := make([]string, len(effects))
	values := make([]opts.BarData, len(effects))
	for i, e := range effects {
		names[i] = e.Name
		values[i] = opts.BarData{Value: units.ConvertEffect(e.AME, scale)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Average Marginal Effects", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Average Marginal Effects",
			Subtitle: fmt.Sprintf("rating points on %s per one-unit attribute change", scale),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("AME", values,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar, nil
}

// MWTPBar builds the marginal-willingness-to-pay bar chart.
func MWTPBar(mwtp []model.MWTP, currency string) (*charts.Bar, error) {
	if len(mwtp) == 0 {
		return nil, fmt.Errorf("no mwtp results to chart")
	}

	names := make([]string, len(mwtp))
	values := make([]opts.BarData, len(mwtp))
	for i, m := range mwtp {
		names[i] = m.Name
		values[i] = opts.BarData{Value: m.Value}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Willingness to Pay", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Marginal Willingness to Pay",
			Subtitle: fmt.Sprintf("in %s per one-unit attribute change", currency),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("MWTP", values,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar, nil
}

// RatingsBar builds the raw-rating distribution chart, bucketed to whole
// rating points.
func RatingsBar(ratings []float64, scale string) (*charts.Bar, error) {
	if len(ratings) == 0 {
		return nil, fmt.Errorf("no ratings to chart")
	}

	counts := make(map[int]int)
	for _, r := range ratings {
		counts[int(math.Round(r))]++
	}
	var buckets []int
	for b := range counts {
		buckets = append(buckets, b)
	}
	sort.Ints(buckets)

	names := make([]string, len(buckets))
	values := make([]opts.BarData, len(buckets))
	for i, b := range buckets {
		names[i] = fmt.Sprintf("%d", b)
		values[i] = opts.BarData{Value: counts[b]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Rating Distribution", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Rating Distribution",
			Subtitle: fmt.Sprintf("n=%d on %s", len(ratings), scale),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("ratings", values)
	return bar, nil
}

// EffectsBarChart writes the AME bar chart to effects.html and returns the
// written path.
func (g *Generator) EffectsBarChart(effects []model.Effect, scale string) (string, error) {
	bar, err := EffectsBar(effects, scale)
	if err != nil {
		return "", err
	}
	return g.render(bar, "effects.html")
}

// MWTPBarChart writes the MWTP bar chart to mwtp.html and returns the
// written path.
func (g *Generator) MWTPBarChart(mwtp []model.MWTP, currency string) (string, error) {
	bar, err := MWTPBar(mwtp, currency)
	if err != nil {
		return "", err
	}
	return g.render(bar, "mwtp.html")
}

// RatingHistogram writes the rating distribution to ratings.html and returns
// the written path.
func (g *Generator) RatingHistogram(ratings []float64, scale string) (string, error) {
	bar, err := RatingsBar(ratings, scale)
	if err != nil {
		return "", err
	}
	return g.render(bar, "ratings.html")
}

func (g *Generator) render(chart interface{ Render(w io.Writer) error }, filename string) (string, error) {
	path := filepath.Join(g.outputDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := chart.Render(f); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	return path, nil
}
