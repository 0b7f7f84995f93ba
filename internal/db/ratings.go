package db

import (
	"encoding/json"
	"fmt"

	"github.com/fieldwork-data/vignette.report/internal/survey"
)

// RecordRatings bulk-inserts long-form ratings for a survey. Respondent
// covariates are stored as a JSON object per row; the vignette attribute
// levels live in deck_vignettes and are re-joined on read.
func (db *DB) RecordRatings(surveyID int, rows []survey.LongRating) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin ratings transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO ratings (survey_id, respondent, deck, position, rating, covariates) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare rating insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		var covs []byte
		if len(row.Covariates) > 0 {
			if covs, err = json.Marshal(row.Covariates); err != nil {
				return fmt.Errorf("failed to marshal covariates for respondent %s: %w", row.Respondent, err)
			}
		}
		if _, err := stmt.Exec(surveyID, row.Respondent, row.Deck, row.Position, row.Rating, string(covs)); err != nil {
			return fmt.Errorf("failed to insert rating for respondent %s position %d: %w", row.Respondent, row.Position, err)
		}
	}

	return tx.Commit()
}

// LongRatings reloads every stored rating as long-form rows, joined with the
// stored deck design. This is the worker's input for refits.
func (db *DB) LongRatings(attributeNames []string) ([]survey.LongRating, error) {
	deck, err := db.LoadStoredDeck(attributeNames)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(
		`SELECT respondent, deck, position, rating, covariates FROM ratings ORDER BY survey_id, respondent, position`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	var out []survey.LongRating
	for rows.Next() {
		var r survey.LongRating
		var covs string
		if err := rows.Scan(&r.Respondent, &r.Deck, &r.Position, &r.Rating, &covs); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		if covs != "" {
			r.Covariates = make(map[string]float64)
			if err := json.Unmarshal([]byte(covs), &r.Covariates); err != nil {
				return nil, fmt.Errorf("failed to parse covariates for respondent %s: %w", r.Respondent, err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return survey.Join(out, deck)
}

// CountRatings returns the total number of stored ratings.
func (db *DB) CountRatings() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ratings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ratings: %w", err)
	}
	return n, nil
}

// MaxRatingID returns the largest ratings.id, or 0 for an empty table.
func (db *DB) MaxRatingID() (int64, error) {
	var id int64
	if err := db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM ratings`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to get max rating id: %w", err)
	}
	return id, nil
}

// CountRatingsAfter returns the number of ratings with an id greater than
// the given watermark. Used by the worker to decide whether a refit is
// warranted.
func (db *DB) CountRatingsAfter(id int64) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ratings WHERE id > ?`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ratings after id %d: %w", id, err)
	}
	return n, nil
}
