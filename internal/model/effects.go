package model

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/fieldwork-data/vignette.report/internal/units"
)

// Effect is one predictor's average marginal effect on the response.
type Effect struct {
	Name string `json:"name"`
	// AME is on the unit interval; Native is converted to the rating scale.
	AME    float64 `json:"ame"`
	Native float64 `json:"native"`
}

// MWTP is the marginal willingness to pay for one non-price attribute:
// the ratio of its marginal effect to the price attribute's marginal effect.
type MWTP struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
}

// AverageMarginalEffects computes the AME of each predictor on the response
// scale. For the logit mean the derivative is coef * mu*(1-mu) per
// observation, so the AME is coef times the sample mean of mu*(1-mu). Point
// estimates only; variance estimation stays with the external package.
func AverageMarginalEffects(fit *Fit) ([]Effect, error) {
	if len(fit.FittedMeans) == 0 {
		return nil, fmt.Errorf("fit carries no fitted means (loaded from storage?)")
	}

	w := make([]float64, len(fit.FittedMeans))
	for i, mu := range fit.FittedMeans {
		w[i] = mu * (1 - mu)
	}
	factor := stat.Mean(w, nil)

	var effects []Effect
	for i, name := range fit.Names {
		if name == "icept" {
			continue
		}
		ame := fit.Params[i] * factor
		effects = append(effects, Effect{
			Name:   name,
			AME:    ame,
			Native: units.ConvertEffect(ame, fit.Spec.RatingScale),
		})
	}
	return effects, nil
}

// WillingnessToPay derives MWTP for every non-price effect. The
// mean-derivative factor cancels in the ratio, so MWTP equals the
// coefficient ratio up to floating-point error.
func WillingnessToPay(effects []Effect, spec Spec) ([]MWTP, error) {
	if spec.PriceAttribute == "" {
		return nil, fmt.Errorf("no price attribute configured")
	}

	var price float64
	found := false
	for _, e := range effects {
		if e.Name == spec.PriceAttribute {
			price = e.AME
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("price attribute %q has no estimated effect", spec.PriceAttribute)
	}
	if price == 0 {
		return nil, fmt.Errorf("price attribute %q has zero marginal effect; MWTP undefined", spec.PriceAttribute)
	}

	var out []MWTP
	for _, e := range effects {
		if e.Name == spec.PriceAttribute {
			continue
		}
		v := e.AME / price
		out = append(out, MWTP{
			Name:      e.Name,
			Value:     v,
			Formatted: units.FormatCurrency(v, spec.Currency),
		})
	}
	return out, nil
}
