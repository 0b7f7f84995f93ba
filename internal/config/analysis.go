package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fieldwork-data/vignette.report/internal/units"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
// This is the single source of truth for all default analysis values.
const DefaultConfigPath = "config/analysis.defaults.json"

// Attribute types
const (
	AttributeCategorical = "categorical"
	AttributeNumeric     = "numeric"
)

// Attribute describes one vignette attribute column in the deck file.
// Categorical attributes list their levels in display order; the first
// level is the reference category and gets no dummy column.
type Attribute struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Levels []string `json:"levels,omitempty"`
}

// AnalysisConfig represents the root configuration for an analysis run.
// Fields are pointers so that partial JSON files inherit defaults through
// the Get* accessors.
type AnalysisConfig struct {
	// Survey file layout
	RespondentColumn *string `json:"respondent_column,omitempty"`
	DeckColumn       *string `json:"deck_column,omitempty"`
	RatingPrefix     *string `json:"rating_prefix,omitempty"`
	VignettesPerDeck *int    `json:"vignettes_per_deck,omitempty"`

	// Response handling
	RatingScale *string `json:"rating_scale,omitempty"` // see internal/units
	Currency    *string `json:"currency,omitempty"`

	// Model specification
	Attributes     []Attribute `json:"attributes,omitempty"`
	Covariates     []string    `json:"covariates,omitempty"`
	PriceAttribute *string     `json:"price_attribute,omitempty"`

	// Service params
	WorkerInterval *string `json:"worker_interval,omitempty"` // duration string like "15m"
	ChartOutputDir *string `json:"chart_output_dir,omitempty"`
}

// EmptyAnalysisConfig returns an AnalysisConfig with all fields set to nil.
// Use LoadAnalysisConfig to load actual values from a config file.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file fall back to defaults
// through the Get* accessors, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical analysis defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.RatingScale != nil && !units.IsValid(*c.RatingScale) {
		return fmt.Errorf("rating_scale must be one of %s, got %q", units.GetValidScalesString(), *c.RatingScale)
	}

	if c.Currency != nil && !units.IsValidCurrency(*c.Currency) {
		return fmt.Errorf("unsupported currency %q", *c.Currency)
	}

	if c.VignettesPerDeck != nil && *c.VignettesPerDeck < 1 {
		return fmt.Errorf("vignettes_per_deck must be positive, got %d", *c.VignettesPerDeck)
	}

	if c.WorkerInterval != nil && *c.WorkerInterval != "" {
		if _, err := time.ParseDuration(*c.WorkerInterval); err != nil {
			return fmt.Errorf("invalid worker_interval '%s': %w", *c.WorkerInterval, err)
		}
	}

	seen := make(map[string]bool)
	for _, attr := range c.Attributes {
		if attr.Name == "" {
			return fmt.Errorf("attribute with empty name")
		}
		if seen[attr.Name] {
			return fmt.Errorf("duplicate attribute %q", attr.Name)
		}
		seen[attr.Name] = true

		switch attr.Type {
		case AttributeCategorical:
			if len(attr.Levels) < 2 {
				return fmt.Errorf("categorical attribute %q needs at least 2 levels, got %d", attr.Name, len(attr.Levels))
			}
		case AttributeNumeric:
			if len(attr.Levels) != 0 {
				return fmt.Errorf("numeric attribute %q must not declare levels", attr.Name)
			}
		default:
			return fmt.Errorf("attribute %q has unknown type %q", attr.Name, attr.Type)
		}
	}

	if c.PriceAttribute != nil && *c.PriceAttribute != "" && len(c.Attributes) > 0 {
		if !seen[*c.PriceAttribute] {
			return fmt.Errorf("price_attribute %q is not a declared attribute", *c.PriceAttribute)
		}
	}

	return nil
}

// GetRespondentColumn returns the respondent_column value or the default.
func (c *AnalysisConfig) GetRespondentColumn() string {
	if c.RespondentColumn == nil || *c.RespondentColumn == "" {
		return "respondent_id" // default
	}
	return *c.RespondentColumn
}

// GetDeckColumn returns the deck_column value or the default.
func (c *AnalysisConfig) GetDeckColumn() string {
	if c.DeckColumn == nil || *c.DeckColumn == "" {
		return "deck" // default
	}
	return *c.DeckColumn
}

// GetRatingPrefix returns the rating_prefix value or the default.
func (c *AnalysisConfig) GetRatingPrefix() string {
	if c.RatingPrefix == nil || *c.RatingPrefix == "" {
		return "rating_" // default
	}
	return *c.RatingPrefix
}

// GetVignettesPerDeck returns the vignettes_per_deck value or the default.
func (c *AnalysisConfig) GetVignettesPerDeck() int {
	if c.VignettesPerDeck == nil {
		return 8 // default
	}
	return *c.VignettesPerDeck
}

// GetRatingScale returns the rating_scale value or the default.
func (c *AnalysisConfig) GetRatingScale() string {
	if c.RatingScale == nil || *c.RatingScale == "" {
		return units.Scale10 // default
	}
	return *c.RatingScale
}

// GetCurrency returns the currency value or the default.
func (c *AnalysisConfig) GetCurrency() string {
	if c.Currency == nil || *c.Currency == "" {
		return units.USD // default
	}
	return *c.Currency
}

// GetPriceAttribute returns the price_attribute value or the default.
func (c *AnalysisConfig) GetPriceAttribute() string {
	if c.PriceAttribute == nil {
		return "" // no MWTP without a price attribute
	}
	return *c.PriceAttribute
}

// GetWorkerInterval parses and returns the WorkerInterval as a time.Duration.
func (c *AnalysisConfig) GetWorkerInterval() time.Duration {
	if c.WorkerInterval == nil || *c.WorkerInterval == "" {
		return 15 * time.Minute // default
	}
	d, err := time.ParseDuration(*c.WorkerInterval)
	if err != nil {
		return 15 * time.Minute // default on parse error
	}
	return d
}

// GetChartOutputDir returns the chart_output_dir value or the default.
func (c *AnalysisConfig) GetChartOutputDir() string {
	if c.ChartOutputDir == nil || *c.ChartOutputDir == "" {
		return "charts" // default
	}
	return *c.ChartOutputDir
}

// AttributeByName returns the attribute declaration with the given name.
func (c *AnalysisConfig) AttributeByName(name string) (Attribute, bool) {
	for _, attr := range c.Attributes {
		if attr.Name == name {
			return attr, true
		}
	}
	return Attribute{}, false
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }
