package survey

import (
	"fmt"
	"math"
	"strconv"

	"github.com/fieldwork-data/vignette.report/internal/config"
	"github.com/fieldwork-data/vignette.report/internal/units"
)

// ModelFrame is the columnar numeric layout the modeling package consumes:
// the response column first, then an intercept column, then one column per
// predictor. Columns share a single row order.
type ModelFrame struct {
	// Names holds one name per column, Names[0] is the response.
	Names   []string
	Columns [][]float64

	// DroppedCovariates counts long rows removed for missing covariates.
	DroppedCovariates int
}

// ResponseName returns the name of the response column.
func (mf *ModelFrame) ResponseName() string {
	return mf.Names[0]
}

// PredictorNames returns every column name except the response.
func (mf *ModelFrame) PredictorNames() []string {
	return mf.Names[1:]
}

// NumObs returns the number of observations in the frame.
func (mf *ModelFrame) NumObs() int {
	if len(mf.Columns) == 0 {
		return 0
	}
	return len(mf.Columns[0])
}

// Column returns the named column, or nil if absent.
func (mf *ModelFrame) Column(name string) []float64 {
	for i, n := range mf.Names {
		if n == name {
			return mf.Columns[i]
		}
	}
	return nil
}

// DummyName returns the model column name for a categorical attribute level.
func DummyName(attribute, level string) string {
	return attribute + "_" + level
}

// SqueezeRating maps a rating on [0, max] into the open unit interval using
// the compression (y/max*(n-1) + 0.5)/n, where n is the number of
// observations. The fitted mean model requires a response strictly inside
// (0,1); raw ratings can sit on the boundary.
func SqueezeRating(rating, max float64, n int) float64 {
	y := rating / max
	return (y*float64(n-1) + 0.5) / float64(n)
}

// Recode turns joined long ratings into a numeric model frame: the squeezed
// response, an intercept, numeric attributes parsed from their level
// strings, dummy columns for every non-reference categorical level, and
// respondent covariates. Rows with missing covariate values are dropped and
// counted.
func Recode(rows []LongRating, cfg *config.AnalysisConfig) (*ModelFrame, error) {
	if len(cfg.Attributes) == 0 {
		return nil, fmt.Errorf("no attributes configured")
	}

	kept, droppedCov := dropMissingCovariates(rows, cfg.Covariates)
	n := len(kept)
	if n == 0 {
		return nil, fmt.Errorf("no usable observations after dropping %d rows with missing covariates", droppedCov)
	}

	scale := cfg.GetRatingScale()
	max := units.ScaleMax(scale)

	names := []string{"rating", "icept"}
	for _, attr := range cfg.Attributes {
		switch attr.Type {
		case config.AttributeNumeric:
			names = append(names, attr.Name)
		case config.AttributeCategorical:
			for _, level := range attr.Levels[1:] {
				names = append(names, DummyName(attr.Name, level))
			}
		}
	}
	names = append(names, cfg.Covariates...)

	cols := make([][]float64, len(names))
	for i := range cols {
		cols[i] = make([]float64, n)
	}

	for i, row := range kept {
		if math.IsNaN(row.Rating) || row.Rating < 0 || row.Rating > max {
			return nil, fmt.Errorf("rating %v for respondent %s position %d outside [0, %v] (%s scale)",
				row.Rating, row.Respondent, row.Position, max, scale)
		}
		cols[0][i] = SqueezeRating(row.Rating, max, n)
		cols[1][i] = 1

		c := 2
		for _, attr := range cfg.Attributes {
			level, ok := row.Attributes[attr.Name]
			if !ok {
				return nil, fmt.Errorf("respondent %s position %d has no %s attribute (join incomplete?)",
					row.Respondent, row.Position, attr.Name)
			}
			switch attr.Type {
			case config.AttributeNumeric:
				v, err := strconv.ParseFloat(level, 64)
				if err != nil {
					return nil, fmt.Errorf("numeric attribute %s has non-numeric level %q (deck=%s position=%d)",
						attr.Name, level, row.Deck, row.Position)
				}
				cols[c][i] = v
				c++
			case config.AttributeCategorical:
				if !containsLevel(attr.Levels, level) {
					return nil, fmt.Errorf("attribute %s has undeclared level %q (deck=%s position=%d)",
						attr.Name, level, row.Deck, row.Position)
				}
				for _, lv := range attr.Levels[1:] {
					if level == lv {
						cols[c][i] = 1
					}
					c++
				}
			}
		}
		for _, name := range cfg.Covariates {
			cols[c][i] = row.Covariates[name]
			c++
		}
	}

	return &ModelFrame{
		Names:             names,
		Columns:           cols,
		DroppedCovariates: droppedCov,
	}, nil
}

func dropMissingCovariates(rows []LongRating, covariates []string) ([]LongRating, int) {
	if len(covariates) == 0 {
		return rows, 0
	}
	kept := rows[:0:0]
	dropped := 0
	for _, row := range rows {
		ok := true
		for _, name := range covariates {
			if v, present := row.Covariates[name]; !present || math.IsNaN(v) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, row)
		} else {
			dropped++
		}
	}
	return kept, dropped
}

func containsLevel(levels []string, level string) bool {
	for _, lv := range levels {
		if lv == level {
			return true
		}
	}
	return false
}
