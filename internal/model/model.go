// Package model fits the bounded-rating regression and derives average
// marginal effects and marginal willingness-to-pay. Estimation is delegated
// to the external statmodel/glm package; this package only assembles its
// inputs and post-processes its outputs.
package model

import (
	"fmt"
	"math"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"

	"github.com/fieldwork-data/vignette.report/internal/config"
	"github.com/fieldwork-data/vignette.report/internal/survey"
)

// Spec describes one model fit: which column prices the vignette and how the
// response was scaled. Predictor columns come from the model frame itself.
type Spec struct {
	PriceAttribute string `json:"price_attribute"`
	RatingScale    string `json:"rating_scale"`
	Currency       string `json:"currency"`
}

// SpecFromConfig builds a Spec from the analysis configuration.
func SpecFromConfig(cfg *config.AnalysisConfig) (Spec, error) {
	price := cfg.GetPriceAttribute()
	if price != "" {
		attr, ok := cfg.AttributeByName(price)
		if !ok {
			return Spec{}, fmt.Errorf("price attribute %q is not a configured attribute", price)
		}
		if attr.Type != config.AttributeNumeric {
			return Spec{}, fmt.Errorf("price attribute %q must be numeric, got %s", price, attr.Type)
		}
	}
	return Spec{
		PriceAttribute: price,
		RatingScale:    cfg.GetRatingScale(),
		Currency:       cfg.GetCurrency(),
	}, nil
}

// Fit holds the estimation results extracted from the external package.
// FittedMeans and SummaryText are not persisted; a Fit reloaded from storage
// carries coefficients only.
type Fit struct {
	Spec    Spec      `json:"spec"`
	Names   []string  `json:"names"`
	Params  []float64 `json:"params"`
	StdErr  []float64 `json:"std_err"`
	ZScores []float64 `json:"z_scores"`
	LogLike float64   `json:"log_like"`
	NumObs  int       `json:"num_obs"`

	FittedMeans []float64 `json:"-"`
	SummaryText string    `json:"-"`
}

// Param returns the coefficient for a named predictor.
func (f *Fit) Param(name string) (float64, bool) {
	for i, n := range f.Names {
		if n == name {
			return f.Params[i], true
		}
	}
	return 0, false
}

// FitRating fits the mean model for the squeezed rating: a Binomial-family
// GLM with logit link, the quasi-likelihood mean model for a fractional
// response in (0,1). The estimator itself lives in statmodel/glm; here we
// only configure and invoke it.
func FitRating(mf *survey.ModelFrame, spec Spec) (*Fit, error) {
	if mf.NumObs() == 0 {
		return nil, fmt.Errorf("model frame has no observations")
	}
	if spec.PriceAttribute != "" && mf.Column(spec.PriceAttribute) == nil {
		return nil, fmt.Errorf("price attribute %q has no column in the model frame", spec.PriceAttribute)
	}

	c := glm.DefaultConfig()
	c.Family = glm.NewFamily(glm.BinomialFamily)
	c.Link = glm.NewLink(glm.LogitLink)

	data := statmodel.NewDataset(mf.Columns, mf.Names)
	m, err := glm.NewGLM(data, mf.ResponseName(), mf.PredictorNames(), c)
	if err != nil {
		return nil, fmt.Errorf("failed to construct GLM: %w", err)
	}
	result := m.Fit()

	fit := &Fit{
		Spec:        spec,
		Names:       append([]string{}, mf.PredictorNames()...),
		Params:      result.Params(),
		StdErr:      result.StdErr(),
		ZScores:     result.ZScores(),
		LogLike:     result.LogLike(),
		NumObs:      mf.NumObs(),
		FittedMeans: result.Mean(),
		SummaryText: fmt.Sprintf("%v", result.Summary()),
	}

	if err := fit.checkFinite(); err != nil {
		return nil, err
	}
	return fit, nil
}

// checkFinite rejects fits whose coefficients came back NaN or infinite,
// which happens on separated or collinear data. Such a fit must never be
// reported or persisted.
func (f *Fit) checkFinite() error {
	for i, p := range f.Params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("fit produced non-finite coefficient for %s", f.Names[i])
		}
	}
	return nil
}
