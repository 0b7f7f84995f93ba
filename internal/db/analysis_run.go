package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldwork-data/vignette.report/internal/model"
)

// AnalysisRun represents one model fit, with its results serialized to JSON
// columns so old runs stay comparable after config changes.
type AnalysisRun struct {
	ID        int            `json:"id"`
	RunID     string         `json:"run_id"`
	SurveyID  *int           `json:"survey_id"` // nil for worker refits over all surveys
	Spec      model.Spec     `json:"spec"`
	Fit       *model.Fit     `json:"fit"`
	Effects   []model.Effect `json:"effects"`
	MWTP      []model.MWTP   `json:"mwtp"`
	LogLike   float64        `json:"log_like"`
	NumObs    int            `json:"num_obs"`
	// MaxRatingID is the largest ratings.id included in the fit, used by the
	// worker to detect new data.
	MaxRatingID int64     `json:"max_rating_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAnalysisRun assembles a run record from fit results, assigning a fresh
// run ID.
func NewAnalysisRun(surveyID *int, fit *model.Fit, effects []model.Effect, mwtp []model.MWTP) *AnalysisRun {
	return &AnalysisRun{
		RunID:    uuid.New().String(),
		SurveyID: surveyID,
		Spec:     fit.Spec,
		Fit:      fit,
		Effects:  effects,
		MWTP:     mwtp,
		LogLike:  fit.LogLike,
		NumObs:   fit.NumObs,
	}
}

// CreateAnalysisRun creates a new analysis run record in the database
func (db *DB) CreateAnalysisRun(run *AnalysisRun) error {
	spec, err := json.Marshal(run.Spec)
	if err != nil {
		return fmt.Errorf("failed to marshal spec: %w", err)
	}
	fit, err := json.Marshal(run.Fit)
	if err != nil {
		return fmt.Errorf("failed to marshal fit: %w", err)
	}
	effects, err := json.Marshal(run.Effects)
	if err != nil {
		return fmt.Errorf("failed to marshal effects: %w", err)
	}
	mwtp, err := json.Marshal(run.MWTP)
	if err != nil {
		return fmt.Errorf("failed to marshal mwtp: %w", err)
	}

	result, err := db.Exec(
		`INSERT INTO analysis_runs (run_id, survey_id, spec, fit, effects, mwtp, log_like, num_obs, max_rating_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.SurveyID,
		string(spec),
		string(fit),
		string(effects),
		string(mwtp),
		run.LogLike,
		run.NumObs,
		run.MaxRatingID,
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	run.ID = int(id)
	return nil
}

func scanAnalysisRun(scan func(dest ...any) error) (*AnalysisRun, error) {
	var run AnalysisRun
	var spec, fit, effects, mwtp string
	err := scan(&run.ID, &run.RunID, &run.SurveyID, &spec, &fit, &effects, &mwtp, &run.LogLike, &run.NumObs, &run.MaxRatingID, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(spec), &run.Spec); err != nil {
		return nil, fmt.Errorf("failed to parse spec for run %s: %w", run.RunID, err)
	}
	if err := json.Unmarshal([]byte(fit), &run.Fit); err != nil {
		return nil, fmt.Errorf("failed to parse fit for run %s: %w", run.RunID, err)
	}
	if effects != "" && effects != "null" {
		if err := json.Unmarshal([]byte(effects), &run.Effects); err != nil {
			return nil, fmt.Errorf("failed to parse effects for run %s: %w", run.RunID, err)
		}
	}
	if mwtp != "" && mwtp != "null" {
		if err := json.Unmarshal([]byte(mwtp), &run.MWTP); err != nil {
			return nil, fmt.Errorf("failed to parse mwtp for run %s: %w", run.RunID, err)
		}
	}

	return &run, nil
}

const analysisRunColumns = `id, run_id, survey_id, spec, fit, effects, mwtp, log_like, num_obs, max_rating_id, created_at`

// GetAnalysisRun retrieves a run by its run ID.
func (db *DB) GetAnalysisRun(runID string) (*AnalysisRun, error) {
	row := db.QueryRow(
		`SELECT `+analysisRunColumns+` FROM analysis_runs WHERE run_id = ?`,
		runID,
	)
	run, err := scanAnalysisRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis run: %w", err)
	}
	return run, nil
}

// LatestAnalysisRun retrieves the most recent run, or nil if none exist.
func (db *DB) LatestAnalysisRun() (*AnalysisRun, error) {
	row := db.QueryRow(
		`SELECT ` + analysisRunColumns + ` FROM analysis_runs ORDER BY created_at DESC, id DESC LIMIT 1`,
	)
	run, err := scanAnalysisRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest analysis run: %w", err)
	}
	return run, nil
}

// RecentAnalysisRuns retrieves the most recent N runs.
func (db *DB) RecentAnalysisRuns(limit int) ([]*AnalysisRun, error) {
	rows, err := db.Query(
		`SELECT `+analysisRunColumns+` FROM analysis_runs ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		run, err := scanAnalysisRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}
