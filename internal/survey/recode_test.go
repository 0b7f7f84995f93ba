package survey

import (
	"math"
	"testing"

	"github.com/fieldwork-data/vignette.report/internal/config"
)

func strPtr(s string) *string { return &s }

func testConfig() *config.AnalysisConfig {
	return &config.AnalysisConfig{
		RatingScale: strPtr("scale10"),
		Attributes: []config.Attribute{
			{Name: "wage", Type: config.AttributeNumeric},
			{Name: "contract", Type: config.AttributeCategorical, Levels: []string{"temporary", "permanent"}},
		},
		PriceAttribute: strPtr("wage"),
	}
}

func joinedRows(t *testing.T) []LongRating {
	t.Helper()
	rows, _, err := Reshape(testWide())
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}
	joined, err := Join(rows, testDeck(t))
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	return joined
}

func TestRecode(t *testing.T) {
	mf, err := Recode(joinedRows(t), testConfig())
	if err != nil {
		t.Fatalf("Recode failed: %v", err)
	}

	wantNames := []string{"rating", "icept", "wage", "contract_permanent"}
	if len(mf.Names) != len(wantNames) {
		t.Fatalf("Names = %v, want %v", mf.Names, wantNames)
	}
	for i, name := range wantNames {
		if mf.Names[i] != name {
			t.Errorf("Names[%d] = %q, want %q", i, mf.Names[i], name)
		}
	}

	if mf.NumObs() != 3 {
		t.Fatalf("NumObs() = %d, want 3", mf.NumObs())
	}

	wage := mf.Column("wage")
	wantWage := []float64{12, 18, 15}
	for i, w := range wantWage {
		if wage[i] != w {
			t.Errorf("wage[%d] = %v, want %v", i, wage[i], w)
		}
	}

	perm := mf.Column("contract_permanent")
	wantPerm := []float64{0, 1, 1}
	for i, w := range wantPerm {
		if perm[i] != w {
			t.Errorf("contract_permanent[%d] = %v, want %v", i, perm[i], w)
		}
	}

	for _, v := range mf.Column("icept") {
		if v != 1 {
			t.Errorf("intercept column contains %v, want 1", v)
		}
	}
}

func TestRecode_ResponseInsideUnitInterval(t *testing.T) {
	rows := joinedRows(t)
	rows[0].Rating = 0  // boundary low
	rows[1].Rating = 10 // boundary high

	mf, err := Recode(rows, testConfig())
	if err != nil {
		t.Fatalf("Recode failed: %v", err)
	}

	for i, y := range mf.Column("rating") {
		if y <= 0 || y >= 1 {
			t.Errorf("rating[%d] = %v, want strictly inside (0,1)", i, y)
		}
	}
}

func TestSqueezeRating(t *testing.T) {
	// (y/max*(n-1) + 0.5)/n
	got := SqueezeRating(5, 10, 100)
	want := (0.5*99 + 0.5) / 100
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("SqueezeRating(5, 10, 100) = %v, want %v", got, want)
	}

	if y := SqueezeRating(0, 10, 100); y <= 0 {
		t.Errorf("SqueezeRating(0, ...) = %v, want > 0", y)
	}
	if y := SqueezeRating(10, 10, 100); y >= 1 {
		t.Errorf("SqueezeRating(10, ...) = %v, want < 1", y)
	}
}

func TestRecode_RatingOutOfRange(t *testing.T) {
	rows := joinedRows(t)
	rows[0].Rating = 11

	if _, err := Recode(rows, testConfig()); err == nil {
		t.Fatal("expected error for out-of-range rating, got nil")
	}
}

func TestRecode_UndeclaredLevel(t *testing.T) {
	rows := joinedRows(t)
	rows[0].Attributes = map[string]string{"wage": "12", "contract": "zero_hours"}

	if _, err := Recode(rows, testConfig()); err == nil {
		t.Fatal("expected error for undeclared categorical level, got nil")
	}
}

func TestRecode_NonNumericLevel(t *testing.T) {
	rows := joinedRows(t)
	rows[0].Attributes = map[string]string{"wage": "low", "contract": "temporary"}

	if _, err := Recode(rows, testConfig()); err == nil {
		t.Fatal("expected error for non-numeric wage level, got nil")
	}
}

func TestRecode_DropsMissingCovariates(t *testing.T) {
	cfg := testConfig()
	cfg.Covariates = []string{"age"}

	rows := joinedRows(t)
	rows[1].Covariates = map[string]float64{"age": math.NaN()}

	mf, err := Recode(rows, cfg)
	if err != nil {
		t.Fatalf("Recode failed: %v", err)
	}

	if mf.DroppedCovariates != 1 {
		t.Errorf("DroppedCovariates = %d, want 1", mf.DroppedCovariates)
	}
	if mf.NumObs() != 2 {
		t.Errorf("NumObs() = %d, want 2", mf.NumObs())
	}
	if mf.Column("age") == nil {
		t.Fatal("age column missing from frame")
	}
}
