package db

import (
	"context"
	"time"

	"github.com/fieldwork-data/vignette.report/internal/config"
	"github.com/fieldwork-data/vignette.report/internal/model"
	"github.com/fieldwork-data/vignette.report/internal/monitoring"
	"github.com/fieldwork-data/vignette.report/internal/survey"
	"github.com/fieldwork-data/vignette.report/internal/timeutil"
)

// AnalysisWorker periodically refits the configured model when new ratings
// have arrived since the last analysis run. Designed to run every 15 minutes
// behind the HTTP server so the served effects stay current as fieldwork
// trickles in.
type AnalysisWorker struct {
	DB       *DB
	Config   *config.AnalysisConfig
	Interval time.Duration // how often to run (e.g., 15m)
	Clock    timeutil.Clock
	StopChan chan struct{}
}

func NewAnalysisWorker(db *DB, cfg *config.AnalysisConfig) *AnalysisWorker {
	return &AnalysisWorker{
		DB:       db,
		Config:   cfg,
		Interval: cfg.GetWorkerInterval(),
		Clock:    timeutil.RealClock{},
		StopChan: make(chan struct{}),
	}
}

// Start runs the periodic worker loop in a goroutine.
func (w *AnalysisWorker) Start() {
	go func() {
		ticker := w.Clock.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				if err := w.RunOnce(context.Background()); err != nil {
					monitoring.Logf("analysis worker run error: %v", err)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *AnalysisWorker) Stop() {
	close(w.StopChan)
}

// RunOnce refits the model over all stored ratings if any arrived after the
// latest run. A refit over an unchanged dataset would only reproduce the
// previous run, so it is skipped.
func (w *AnalysisWorker) RunOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	latest, err := w.DB.LatestAnalysisRun()
	if err != nil {
		return err
	}
	if latest != nil {
		fresh, err := w.DB.CountRatingsAfter(latest.MaxRatingID)
		if err != nil {
			return err
		}
		if fresh == 0 {
			return nil
		}
		monitoring.Logf("analysis worker: %d new ratings since run %s, refitting", fresh, latest.RunID)
	}

	maxID, err := w.DB.MaxRatingID()
	if err != nil {
		return err
	}

	attrNames := make([]string, len(w.Config.Attributes))
	for i, attr := range w.Config.Attributes {
		attrNames[i] = attr.Name
	}

	rows, err := w.DB.LongRatings(attrNames)
	if err != nil {
		return err
	}

	mf, err := survey.Recode(rows, w.Config)
	if err != nil {
		return err
	}

	spec, err := model.SpecFromConfig(w.Config)
	if err != nil {
		return err
	}

	fit, err := model.FitRating(mf, spec)
	if err != nil {
		return err
	}

	effects, err := model.AverageMarginalEffects(fit)
	if err != nil {
		return err
	}

	var mwtp []model.MWTP
	if spec.PriceAttribute != "" {
		if mwtp, err = model.WillingnessToPay(effects, spec); err != nil {
			return err
		}
	}

	run := NewAnalysisRun(nil, fit, effects, mwtp)
	run.MaxRatingID = maxID
	if err := w.DB.CreateAnalysisRun(run); err != nil {
		return err
	}

	monitoring.Logf("analysis worker: recorded run %s (n=%d, loglike=%.2f)", run.RunID, run.NumObs, run.LogLike)
	return nil
}
