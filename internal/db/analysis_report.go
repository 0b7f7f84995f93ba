package db

import (
	"database/sql"
	"fmt"
	"time"
)

// AnalysisReport represents a generated artifact (chart or table export)
// for an analysis run.
type AnalysisReport struct {
	ID        int       `json:"id"`
	RunID     string    `json:"run_id"`
	Filepath  string    `json:"filepath"` // relative path from the output directory
	Filename  string    `json:"filename"`
	Format    string    `json:"format"` // html, png, or csv
	CreatedAt time.Time `json:"created_at"`
}

// CreateAnalysisReport creates a new report record in the database
func (db *DB) CreateAnalysisReport(report *AnalysisReport) error {
	result, err := db.Exec(
		`INSERT INTO analysis_reports (run_id, filepath, filename, format) VALUES (?, ?, ?, ?)`,
		report.RunID,
		report.Filepath,
		report.Filename,
		report.Format,
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	report.ID = int(id)
	return nil
}

// GetAnalysisReport retrieves a report by ID
func (db *DB) GetAnalysisReport(id int) (*AnalysisReport, error) {
	var report AnalysisReport
	err := db.QueryRow(
		`SELECT id, run_id, filepath, filename, format, created_at FROM analysis_reports WHERE id = ?`,
		id,
	).Scan(&report.ID, &report.RunID, &report.Filepath, &report.Filename, &report.Format, &report.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis report: %w", err)
	}

	return &report, nil
}

// GetRecentReportsForRun retrieves the reports generated for a specific run.
func (db *DB) GetRecentReportsForRun(runID string) ([]AnalysisReport, error) {
	rows, err := db.Query(
		`SELECT id, run_id, filepath, filename, format, created_at
		 FROM analysis_reports WHERE run_id = ? ORDER BY created_at DESC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis reports: %w", err)
	}
	defer rows.Close()

	var reports []AnalysisReport
	for rows.Next() {
		var report AnalysisReport
		if err := rows.Scan(&report.ID, &report.RunID, &report.Filepath, &report.Filename, &report.Format, &report.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis report: %w", err)
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// GetRecentReports retrieves the most recent N reports across all runs.
func (db *DB) GetRecentReports(limit int) ([]AnalysisReport, error) {
	rows, err := db.Query(
		`SELECT id, run_id, filepath, filename, format, created_at
		 FROM analysis_reports ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis reports: %w", err)
	}
	defer rows.Close()

	var reports []AnalysisReport
	for rows.Next() {
		var report AnalysisReport
		if err := rows.Scan(&report.ID, &report.RunID, &report.Filepath, &report.Filename, &report.Format, &report.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis report: %w", err)
		}
		reports = append(reports, report)
	}

	return reports, nil
}
