package survey

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kshedden/datareader"
	"github.com/kshedden/dstream/dstream"

	"github.com/fieldwork-data/vignette.report/internal/config"
)

// csvChunkSize is the dstream chunk size for CSV ingestion. Chunks are
// concatenated during loading, so the value only affects memory churn.
const csvChunkSize = 4096

// RatingColumns returns the wide-survey rating column names for a config:
// prefix + position, one per vignette position.
func RatingColumns(cfg *config.AnalysisConfig) []string {
	k := cfg.GetVignettesPerDeck()
	cols := make([]string, k)
	for j := 0; j < k; j++ {
		cols[j] = fmt.Sprintf("%s%d", cfg.GetRatingPrefix(), j+1)
	}
	return cols
}

// csvVarTypes builds the dstream column type declarations: the named float
// columns are read as float64, the named string columns as string, and all
// other columns in the file are omitted.
func csvVarTypes(floatCols, stringCols []string) []dstream.VarType {
	types := make([]dstream.VarType, 0, len(floatCols)+len(stringCols))
	for _, name := range floatCols {
		types = append(types, dstream.VarType{Name: name, Type: dstream.Float64})
	}
	for _, name := range stringCols {
		types = append(types, dstream.VarType{Name: name, Type: dstream.String})
	}
	return types
}

// readCSVHeader reads just the header row of a CSV file so required columns
// can be validated before handing the file to dstream.
func readCSVHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header from %s: %w", path, err)
	}
	return header, nil
}

func checkColumns(header, required []string, path string) error {
	present := make(map[string]bool, len(header))
	for _, name := range header {
		present[strings.TrimSpace(name)] = true
	}
	var missing []string
	for _, name := range required {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s is missing required columns: %s", path, strings.Join(missing, ", "))
	}
	return nil
}

// LoadWide reads a respondent-level survey file into columnar form. CSV
// files go through dstream; Stata .dta files go through datareader.
func LoadWide(path string, cfg *config.AnalysisConfig) (*WideSurvey, error) {
	if strings.EqualFold(filepath.Ext(path), ".dta") {
		return loadWideStata(path, cfg)
	}
	return loadWideCSV(path, cfg)
}

func loadWideCSV(path string, cfg *config.AnalysisConfig) (*WideSurvey, error) {
	ratingCols := RatingColumns(cfg)
	stringCols := []string{cfg.GetRespondentColumn(), cfg.GetDeckColumn()}
	floatCols := append(append([]string{}, ratingCols...), cfg.Covariates...)

	header, err := readCSVHeader(path)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(header, append(append([]string{}, stringCols...), floatCols...), path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	tc := csvVarTypes(floatCols, stringCols)
	ds := dstream.FromCSV(f).SetTypes(tc).ChunkSize(csvChunkSize).HasHeader().Done()

	w := &WideSurvey{
		Covariates: make(map[string][]float64),
		Positions:  len(ratingCols),
	}
	ratings := make([][]float64, len(ratingCols))

	for ds.Next() {
		w.Respondents = append(w.Respondents, ds.Get(cfg.GetRespondentColumn()).([]string)...)
		w.Decks = append(w.Decks, ds.Get(cfg.GetDeckColumn()).([]string)...)
		for j, name := range ratingCols {
			ratings[j] = append(ratings[j], ds.Get(name).([]float64)...)
		}
		for _, name := range cfg.Covariates {
			w.Covariates[name] = append(w.Covariates[name], ds.Get(name).([]float64)...)
		}
	}

	w.Ratings = transpose(ratings, len(w.Respondents))
	return w, validateWide(w, path)
}

func loadWideStata(path string, cfg *config.AnalysisConfig) (*WideSurvey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rdr, err := datareader.NewStataReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read stata file %s: %w", path, err)
	}

	ratingCols := RatingColumns(cfg)
	required := append([]string{cfg.GetRespondentColumn(), cfg.GetDeckColumn()}, ratingCols...)
	required = append(required, cfg.Covariates...)
	if err := checkColumns(rdr.ColumnNames(), required, path); err != nil {
		return nil, err
	}

	series, err := rdr.Read(-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read stata data from %s: %w", path, err)
	}
	byName := make(map[string]*datareader.Series)
	for i, name := range rdr.ColumnNames() {
		byName[name] = series[i]
	}

	w := &WideSurvey{
		Covariates: make(map[string][]float64),
		Positions:  len(ratingCols),
	}
	if w.Respondents, err = seriesStrings(byName[cfg.GetRespondentColumn()]); err != nil {
		return nil, fmt.Errorf("column %s: %w", cfg.GetRespondentColumn(), err)
	}
	if w.Decks, err = seriesStrings(byName[cfg.GetDeckColumn()]); err != nil {
		return nil, fmt.Errorf("column %s: %w", cfg.GetDeckColumn(), err)
	}

	ratings := make([][]float64, len(ratingCols))
	for j, name := range ratingCols {
		if ratings[j], err = seriesFloats(byName[name]); err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
	}
	for _, name := range cfg.Covariates {
		if w.Covariates[name], err = seriesFloats(byName[name]); err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
	}

	w.Ratings = transpose(ratings, len(w.Respondents))
	return w, validateWide(w, path)
}

// seriesFloats extracts a float column from a datareader series, converting
// masked values to NaN.
func seriesFloats(s *datareader.Series) ([]float64, error) {
	vals, missing, err := s.AsFloat64Slice()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(vals))
	copy(out, vals)
	if missing != nil {
		for i, m := range missing {
			if m {
				out[i] = math.NaN()
			}
		}
	}
	return out, nil
}

// seriesStrings extracts a string column, falling back to formatting a
// numeric column (Stata files often store IDs as numerics).
func seriesStrings(s *datareader.Series) ([]string, error) {
	if strs, _, err := s.AsStringSlice(); err == nil {
		return strs, nil
	}
	vals, _, err := s.AsFloat64Slice()
	if err != nil {
		return nil, err
	}
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strs, nil
}

func transpose(cols [][]float64, n int) [][]float64 {
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, len(cols))
		for j := range cols {
			rows[i][j] = cols[j][i]
		}
	}
	return rows
}

func validateWide(w *WideSurvey, path string) error {
	seen := make(map[string]bool, len(w.Respondents))
	for _, resp := range w.Respondents {
		if resp == "" {
			return fmt.Errorf("%s contains an empty respondent ID", path)
		}
		if seen[resp] {
			return fmt.Errorf("%s contains duplicate respondent ID %s", path, resp)
		}
		seen[resp] = true
	}
	return nil
}

// LoadDeck reads a vignette-design CSV keyed by (deck, position), with one
// column per configured attribute. Attribute levels are kept as strings;
// numeric attributes are parsed during recoding.
func LoadDeck(path string, cfg *config.AnalysisConfig) (*Deck, error) {
	attrNames := make([]string, len(cfg.Attributes))
	for i, attr := range cfg.Attributes {
		attrNames[i] = attr.Name
	}

	header, err := readCSVHeader(path)
	if err != nil {
		return nil, err
	}
	required := append([]string{cfg.GetDeckColumn(), "position"}, attrNames...)
	if err := checkColumns(header, required, path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	tc := csvVarTypes([]string{"position"}, append([]string{cfg.GetDeckColumn()}, attrNames...))
	ds := dstream.FromCSV(f).SetTypes(tc).ChunkSize(csvChunkSize).HasHeader().Done()

	deck := &Deck{
		AttributeNames: attrNames,
		rows:           make(map[deckKey]map[string]string),
	}

	for ds.Next() {
		decks := ds.Get(cfg.GetDeckColumn()).([]string)
		positions := ds.Get("position").([]float64)
		levels := make(map[string][]string, len(attrNames))
		for _, name := range attrNames {
			levels[name] = ds.Get(name).([]string)
		}

		for i := range decks {
			pos := int(positions[i])
			if math.IsNaN(positions[i]) || float64(pos) != positions[i] || pos < 1 {
				return nil, fmt.Errorf("%s: invalid position %v for deck %s", path, positions[i], decks[i])
			}
			key := deckKey{decks[i], pos}
			if _, dup := deck.rows[key]; dup {
				return nil, fmt.Errorf("%s: duplicate deck entry for deck=%s position=%d", path, decks[i], pos)
			}
			row := make(map[string]string, len(attrNames))
			for _, name := range attrNames {
				val := strings.TrimSpace(levels[name][i])
				if val == "" {
					return nil, fmt.Errorf("%s: empty %s level for deck=%s position=%d", path, name, decks[i], pos)
				}
				row[name] = val
			}
			deck.rows[key] = row
		}
	}

	if deck.NumVignettes() == 0 {
		return nil, fmt.Errorf("%s contains no vignette rows", path)
	}
	return deck, nil
}
