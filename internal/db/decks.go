package db

import (
	"encoding/json"
	"fmt"

	"github.com/fieldwork-data/vignette.report/internal/survey"
)

// StoreDeck persists every design row of a deck. Attribute levels are stored
// as a JSON object per row. Existing rows with the same (deck, position) key
// are replaced, so re-importing an updated design file is safe.
func (db *DB) StoreDeck(deck *survey.Deck) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin deck transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO deck_vignettes (deck, position, attributes) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare deck insert: %w", err)
	}
	defer stmt.Close()

	err = deck.Each(func(d string, pos int, levels map[string]string) error {
		blob, err := json.Marshal(levels)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes for deck=%s position=%d: %w", d, pos, err)
		}
		if _, err := stmt.Exec(d, pos, string(blob)); err != nil {
			return fmt.Errorf("failed to insert deck row: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

// LoadStoredDeck reassembles a survey.Deck from the deck_vignettes table.
func (db *DB) LoadStoredDeck(attributeNames []string) (*survey.Deck, error) {
	rows, err := db.Query(`SELECT deck, position, attributes FROM deck_vignettes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query deck rows: %w", err)
	}
	defer rows.Close()

	deck := survey.NewDeck(attributeNames)
	for rows.Next() {
		var d string
		var pos int
		var blob string
		if err := rows.Scan(&d, &pos, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		levels := make(map[string]string)
		if err := json.Unmarshal([]byte(blob), &levels); err != nil {
			return nil, fmt.Errorf("failed to parse attributes for deck=%s position=%d: %w", d, pos, err)
		}
		if err := deck.Add(d, pos, levels); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if deck.NumVignettes() == 0 {
		return nil, fmt.Errorf("no deck rows stored")
	}
	return deck, nil
}
