package api

import (
	"fmt"
	"net/http"

	"github.com/fieldwork-data/vignette.report/internal/charts"
)

// chartEffects renders the AME bar chart for the latest run as an HTML page.
func (s *Server) chartEffects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	run := s.latestRun(w)
	if run == nil {
		return
	}

	bar, err := charts.EffectsBar(run.Effects, s.scale)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No chart available: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := bar.Render(w); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}
}

// chartMWTP renders the willingness-to-pay bar chart for the latest run.
func (s *Server) chartMWTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	run := s.latestRun(w)
	if run == nil {
		return
	}
	if len(run.MWTP) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "Latest run has no willingness-to-pay results")
		return
	}

	bar, err := charts.MWTPBar(run.MWTP, run.Spec.Currency)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No chart available: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := bar.Render(w); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}
}

// chartRatings renders the distribution of all stored raw ratings.
func (s *Server) chartRatings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	attrNames := make([]string, len(s.config.Attributes))
	for i, attr := range s.config.Attributes {
		attrNames[i] = attr.Name
	}
	rows, err := s.db.LongRatings(attrNames)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load ratings: %v", err))
		return
	}

	ratings := make([]float64, len(rows))
	for i, row := range rows {
		ratings[i] = row.Rating
	}

	bar, err := charts.RatingsBar(ratings, s.config.GetRatingScale())
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No chart available: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := bar.Render(w); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}
}
