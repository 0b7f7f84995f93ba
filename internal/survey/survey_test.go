package survey

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testWide() *WideSurvey {
	return &WideSurvey{
		Respondents: []string{"r1", "r2"},
		Decks:       []string{"A", "B"},
		Ratings: [][]float64{
			{7, 3},
			{5, math.NaN()},
		},
		Covariates: map[string][]float64{"age": {34, 51}},
		Positions:  2,
	}
}

func testDeck(t *testing.T) *Deck {
	t.Helper()
	deck := NewDeck([]string{"wage", "contract"})
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
			t.Fatalf("failed to add deck row: %v", err)
		}
	}
	return deck
}

func TestReshape(t *testing.T) {
	rows, dropped, err := Reshape(testWide())
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}

	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	// Respondent-major, position-minor order
	want := []struct {
		resp   string
		deck   string
		pos    int
		rating float64
	}{
		{"r1", "A", 1, 7},
		{"r1", "A", 2, 3},
		{"r2", "B", 1, 5},
	}
	for i, w := range want {
		got := rows[i]
		if got.Respondent != w.resp || got.Deck != w.deck || got.Position != w.pos || got.Rating != w.rating {
			t.Errorf("rows[%d] = %+v, want %+v", i, got, w)
		}
	}

	if rows[2].Covariates["age"] != 51 {
		t.Errorf("rows[2] age covariate = %v, want 51", rows[2].Covariates["age"])
	}
}

func TestReshape_NoRespondents(t *testing.T) {
	if _, _, err := Reshape(&WideSurvey{}); err == nil {
		t.Fatal("expected error for empty survey, got nil")
	}
}

func TestReshape_AllRatingsMissing(t *testing.T) {
	w := testWide()
	for i := range w.Ratings {
		for j := range w.Ratings[i] {
			w.Ratings[i][j] = math.NaN()
		}
	}
	if _, _, err := Reshape(w); err == nil {
		t.Fatal("expected error when no ratings are usable, got nil")
	}
}

func TestJoin(t *testing.T) {
	rows, _, err := Reshape(testWide())
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}

	joined, err := Join(rows, testDeck(t))
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	wantAttrs := []map[string]string{
		{"wage": "12", "contract": "temporary"},
		{"wage": "18", "contract": "permanent"},
		{"wage": "15", "contract": "permanent"},
	}
	for i, want := range wantAttrs {
		if diff := cmp.Diff(want, joined[i].Attributes); diff != "" {
			t.Errorf("joined[%d] attributes mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestJoin_MissingDeckEntry(t *testing.T) {
	rows := []LongRating{{Respondent: "r9", Deck: "Z", Position: 1, Rating: 4}}

	if _, err := Join(rows, testDeck(t)); err == nil {
		t.Fatal("expected error for unknown deck key, got nil")
	}
}

func TestDeckAdd_Duplicate(t *testing.T) {
	deck := NewDeck([]string{"wage"})
	if err := deck.Add("A", 1, map[string]string{"wage": "10"}); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := deck.Add("A", 1, map[string]string{"wage": "11"}); err == nil {
		t.Fatal("expected error for duplicate key, got nil")
	}
}

func TestDeckAdd_MissingLevel(t *testing.T) {
	deck := NewDeck([]string{"wage", "contract"})
	if err := deck.Add("A", 1, map[string]string{"wage": "10"}); err == nil {
		t.Fatal("expected error for missing attribute level, got nil")
	}
}
