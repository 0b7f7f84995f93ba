// Package survey loads factorial-survey-experiment data files and prepares
// them for model fitting: wide-to-long reshaping of respondent ratings,
// joining vignette attribute definitions from the deck design, and recoding
// into a numeric model frame.
package survey

import (
	"fmt"
	"math"
)

// WideSurvey is the columnar view of a respondent-level survey file: one row
// per respondent, with one rating column per vignette position.
type WideSurvey struct {
	Respondents []string
	Decks       []string
	// Ratings[i][j] is respondent i's raw rating of the vignette at deck
	// position j+1. Missing ratings are NaN.
	Ratings    [][]float64
	Covariates map[string][]float64
	Positions  int
}

// NumRespondents returns the number of survey rows.
func (w *WideSurvey) NumRespondents() int {
	return len(w.Respondents)
}

// Deck is the vignette-design table: attribute levels keyed by
// (deck, position). Level values are kept as strings; numeric attributes are
// parsed during recoding.
type Deck struct {
	// AttributeNames in file column order.
	AttributeNames []string
	rows           map[deckKey]map[string]string
}

type deckKey struct {
	deck     string
	position int
}

// NewDeck creates an empty deck with the given attribute columns. Decks
// loaded from files use LoadDeck; NewDeck exists for decks reassembled from
// storage and for tests.
func NewDeck(attributeNames []string) *Deck {
	return &Deck{
		AttributeNames: attributeNames,
		rows:           make(map[deckKey]map[string]string),
	}
}

// Add inserts one design row. Duplicate (deck, position) keys are an error.
func (d *Deck) Add(deck string, position int, levels map[string]string) error {
	key := deckKey{deck, position}
	if _, dup := d.rows[key]; dup {
		return fmt.Errorf("duplicate deck entry for deck=%s position=%d", deck, position)
	}
	for _, name := range d.AttributeNames {
		if levels[name] == "" {
			return fmt.Errorf("missing %s level for deck=%s position=%d", name, deck, position)
		}
	}
	d.rows[key] = levels
	return nil
}

// NumVignettes returns the number of design rows in the deck.
func (d *Deck) NumVignettes() int {
	return len(d.rows)
}

// Lookup returns the attribute levels for a (deck, position) key.
func (d *Deck) Lookup(deck string, position int) (map[string]string, bool) {
	levels, ok := d.rows[deckKey{deck, position}]
	return levels, ok
}

// Each calls fn for every design row. Iteration order is unspecified.
func (d *Deck) Each(fn func(deck string, position int, levels map[string]string) error) error {
	for key, levels := range d.rows {
		if err := fn(key.deck, key.position, levels); err != nil {
			return err
		}
	}
	return nil
}

// LongRating is one respondent-vignette observation after reshaping and
// joining: the raw rating plus the vignette's attribute levels and the
// respondent's covariates.
type LongRating struct {
	Respondent string
	Deck       string
	Position   int
	Rating     float64
	Attributes map[string]string
	Covariates map[string]float64
}

// Reshape converts a wide survey to long form, one row per
// respondent-vignette pair. Row order is respondent-major,
// position-minor. Missing ratings are dropped, not an error; the count of
// dropped cells is returned alongside the rows.
func Reshape(w *WideSurvey) ([]LongRating, int, error) {
	if w.NumRespondents() == 0 {
		return nil, 0, fmt.Errorf("survey has no respondents")
	}

	var rows []LongRating
	dropped := 0
	for i, resp := range w.Respondents {
		for j := 0; j < w.Positions; j++ {
			rating := w.Ratings[i][j]
			if math.IsNaN(rating) {
				dropped++
				continue
			}
			covs := make(map[string]float64, len(w.Covariates))
			for name, col := range w.Covariates {
				covs[name] = col[i]
			}
			rows = append(rows, LongRating{
				Respondent: resp,
				Deck:       w.Decks[i],
				Position:   j + 1,
				Rating:     rating,
				Covariates: covs,
			})
		}
	}

	if len(rows) == 0 {
		return nil, dropped, fmt.Errorf("survey has no usable ratings (%d missing)", dropped)
	}
	return rows, dropped, nil
}

// Join attaches deck attribute levels to each long rating using the
// (deck, position) key. The deck design is authoritative: a rating whose key
// is absent from the deck is an error.
func Join(rows []LongRating, deck *Deck) ([]LongRating, error) {
	joined := make([]LongRating, len(rows))
	for i, row := range rows {
		levels, ok := deck.Lookup(row.Deck, row.Position)
		if !ok {
			return nil, fmt.Errorf("no deck entry for deck=%s position=%d (respondent %s)",
				row.Deck, row.Position, row.Respondent)
		}
		row.Attributes = levels
		joined[i] = row
	}
	return joined, nil
}
