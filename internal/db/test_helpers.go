package db

import (
	"fmt"
	"testing"

	"github.com/fieldwork-data/vignette.report/internal/config"
	"github.com/fieldwork-data/vignette.report/internal/survey"
	"github.com/fieldwork-data/vignette.report/internal/units"
)

// Helper functions for creating pointer values
func strPtr(s string) *string {
	return &s
}

func intPtr(i int) *int {
	return &i
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	fname := t.TempDir() + "/test_vignette.db"
	db, err := NewDB(fname)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testAnalysisConfig returns the config used across db tests: a numeric
// price attribute and one categorical attribute.
func testAnalysisConfig() *config.AnalysisConfig {
	return &config.AnalysisConfig{
		RatingScale: strPtr(units.Scale10),
		Currency:    strPtr(units.USD),
		Attributes: []config.Attribute{
			{Name: "wage", Type: config.AttributeNumeric},
			{Name: "contract", Type: config.AttributeCategorical, Levels: []string{"temporary", "permanent"}},
		},
		PriceAttribute: strPtr("wage"),
	}
}

// seedDeck stores a two-deck design with two positions each.
func seedDeck(t *testing.T, db *DB) *survey.Deck {
	t.Helper()
	deck := survey.NewDeck([]string{"wage", "contract"})
	entries := []struct {
		deck   string
		pos    int
		levels map[string]string
	}{
		{"A", 1, map[string]string{"wage": "12", "contract": "temporary"}},
		{"A", 2, map[string]string{"wage": "18", "contract": "permanent"}},
		{"B", 1, map[string]string{"wage": "15", "contract": "permanent"}},
		{"B", 2, map[string]string{"wage": "21", "contract": "temporary"}},
	}
	for _, e := range entries {
		if err := deck.Add(e.deck, e.pos, e.levels); err != nil {
			t.Fatalf("failed to build deck: %v", err)
		}
	}
	if err := db.StoreDeck(deck); err != nil {
		t.Fatalf("StoreDeck failed: %v", err)
	}
	return deck
}

// seedRatings creates a survey record and inserts ratings spread over the
// seeded deck, returning the survey.
func seedRatings(t *testing.T, db *DB, respondents int) *Survey {
	t.Helper()
	s := &Survey{Name: "test survey", SourcePath: "testdata/survey.csv", RespondentCount: respondents}
	if err := db.CreateSurvey(s); err != nil {
		t.Fatalf("CreateSurvey failed: %v", err)
	}

	var rows []survey.LongRating
	decks := []string{"A", "B"}
	for i := 0; i < respondents; i++ {
		resp := fmt.Sprintf("r%03d", i)
		d := decks[i%2]
		for pos := 1; pos <= 2; pos++ {
			// deterministic but varied ratings in [2, 9]
			rating := float64(2 + (i*3+pos*2)%8)
			rows = append(rows, survey.LongRating{
				Respondent: resp,
				Deck:       d,
				Position:   pos,
				Rating:     rating,
			})
		}
	}
	if err := db.RecordRatings(s.ID, rows); err != nil {
		t.Fatalf("RecordRatings failed: %v", err)
	}
	return s
}
