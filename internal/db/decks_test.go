package db

import (
	"testing"

	"github.com/fieldwork-data/vignette.report/internal/survey"
)

func TestStoreAndLoadDeck(t *testing.T) {
	db := setupTestDB(t)
	seeded := seedDeck(t, db)

	loaded, err := db.LoadStoredDeck([]string{"wage", "contract"})
	if err != nil {
		t.Fatalf("LoadStoredDeck failed: %v", err)
	}
	if loaded.NumVignettes() != seeded.NumVignettes() {
		t.Errorf("NumVignettes = %d, want %d", loaded.NumVignettes(), seeded.NumVignettes())
	}

	levels, ok := loaded.Lookup("B", 2)
	if !ok {
		t.Fatal("Lookup(B, 2) missing")
	}
	if levels["wage"] != "21" || levels["contract"] != "temporary" {
		t.Errorf("B/2 levels = %v", levels)
	}
}

func TestStoreDeck_Reimport(t *testing.T) {
	db := setupTestDB(t)
	seedDeck(t, db)

	// Re-importing an updated design replaces rows instead of failing.
	deck := survey.NewDeck([]string{"wage", "contract"})
	if err := deck.Add("A", 1, map[string]string{"wage": "13", "contract": "temporary"}); err != nil {
		t.Fatalf("deck.Add failed: %v", err)
	}
	if err := db.StoreDeck(deck); err != nil {
		t.Fatalf("StoreDeck failed: %v", err)
	}

	loaded, err := db.LoadStoredDeck([]string{"wage", "contract"})
	if err != nil {
		t.Fatalf("LoadStoredDeck failed: %v", err)
	}
	levels, ok := loaded.Lookup("A", 1)
	if !ok {
		t.Fatal("Lookup(A, 1) missing after reimport")
	}
	if levels["wage"] != "13" {
		t.Errorf("wage after reimport = %q, want 13", levels["wage"])
	}
	// Untouched rows survive.
	if _, ok := loaded.Lookup("B", 2); !ok {
		t.Error("Lookup(B, 2) missing after reimport")
	}
}

func TestLoadStoredDeck_Empty(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.LoadStoredDeck([]string{"wage"}); err == nil {
		t.Fatal("expected error loading deck from empty table, got nil")
	}
}
