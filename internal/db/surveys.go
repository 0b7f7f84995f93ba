package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Survey represents one imported survey file.
type Survey struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	SourcePath      string    `json:"source_path"`
	RespondentCount int       `json:"respondent_count"`
	SHA256          string    `json:"sha256"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateSurvey creates a new survey record in the database
func (db *DB) CreateSurvey(survey *Survey) error {
	result, err := db.Exec(
		`INSERT INTO surveys (name, source_path, respondent_count, sha256) VALUES (?, ?, ?, ?)`,
		survey.Name,
		survey.SourcePath,
		survey.RespondentCount,
		survey.SHA256,
	)
	if err != nil {
		return fmt.Errorf("failed to create survey: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	survey.ID = int(id)
	return nil
}

// GetSurvey retrieves a survey by ID
func (db *DB) GetSurvey(id int) (*Survey, error) {
	var s Survey
	err := db.QueryRow(
		`SELECT id, name, source_path, respondent_count, sha256, created_at FROM surveys WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.Name, &s.SourcePath, &s.RespondentCount, &s.SHA256, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("survey not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get survey: %w", err)
	}

	return &s, nil
}

// FindSurveyBySHA returns the survey with a matching content hash, if any.
// Used to skip re-importing a file that is already in the database.
func (db *DB) FindSurveyBySHA(sha string) (*Survey, error) {
	var s Survey
	err := db.QueryRow(
		`SELECT id, name, source_path, respondent_count, sha256, created_at FROM surveys WHERE sha256 = ?`,
		sha,
	).Scan(&s.ID, &s.Name, &s.SourcePath, &s.RespondentCount, &s.SHA256, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up survey by sha: %w", err)
	}

	return &s, nil
}

// ListSurveys retrieves all surveys, most recent first.
func (db *DB) ListSurveys() ([]Survey, error) {
	rows, err := db.Query(
		`SELECT id, name, source_path, respondent_count, sha256, created_at FROM surveys ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query surveys: %w", err)
	}
	defer rows.Close()

	var surveys []Survey
	for rows.Next() {
		var s Survey
		if err := rows.Scan(&s.ID, &s.Name, &s.SourcePath, &s.RespondentCount, &s.SHA256, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan survey: %w", err)
		}
		surveys = append(surveys, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return surveys, nil
}
