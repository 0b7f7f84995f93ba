package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	_ "modernc.org/sqlite"

	"github.com/fieldwork-data/vignette.report/internal/api"
	"github.com/fieldwork-data/vignette.report/internal/charts"
	"github.com/fieldwork-data/vignette.report/internal/config"
	"github.com/fieldwork-data/vignette.report/internal/db"
	"github.com/fieldwork-data/vignette.report/internal/model"
	"github.com/fieldwork-data/vignette.report/internal/survey"
	"github.com/fieldwork-data/vignette.report/internal/units"
	"github.com/fieldwork-data/vignette.report/internal/version"
)

var (
	surveyFile = flag.String("survey", "", "Respondent-level survey file (.csv or .dta) to import")
	deckFile   = flag.String("deck", "", "Vignette design file (.csv) to import")
	configFile = flag.String("config", "", "Analysis config file (defaults to built-in config)")
	dbFile     = flag.String("db", "vignette.db", "Database file")
	outDir     = flag.String("out", "", "Chart output directory (defaults to config chart_output_dir)")
	serve      = flag.Bool("serve", false, "Serve results over HTTP after fitting")
	listen     = flag.String("listen", ":8080", "Listen address")
	unitsFlag  = flag.String("units", "", "Rating scale for printed and served effects (overrides config)")
	noCharts   = flag.Bool("no-charts", false, "Skip chart generation")
	verbose    = flag.Bool("verbose", false, "Print the estimator's full model summary")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		db.RunMigrateCommand(os.Args[2:])
		return
	}

	flag.Parse()

	log.Printf("vignette-report %s", version.String())

	if *unitsFlag != "" && !units.IsValid(*unitsFlag) {
		log.Fatalf("invalid units %q; valid scales: %s", *unitsFlag, units.GetValidScalesString())
	}

	var cfg *config.AnalysisConfig
	var err error
	if *configFile != "" {
		cfg, err = config.LoadAnalysisConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	} else {
		cfg = config.MustLoadDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	scale := cfg.GetRatingScale()
	if *unitsFlag != "" {
		scale = *unitsFlag
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	if *surveyFile != "" || *deckFile != "" {
		if *surveyFile == "" || *deckFile == "" {
			log.Fatal("both -survey and -deck are required for import")
		}
		if err := importSurvey(database, cfg, *surveyFile, *deckFile); err != nil {
			log.Fatalf("import failed: %v", err)
		}
	}

	n, err := database.CountRatings()
	if err != nil {
		log.Fatalf("failed to count ratings: %v", err)
	}
	if n == 0 {
		log.Fatal("no ratings in database; import a survey with -survey and -deck")
	}

	run, fit, err := fitAndRecord(database, cfg)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	printResults(run, fit, scale)

	if *verbose {
		fmt.Printf("\n%s\n", fit.SummaryText)
	}

	if !*noCharts {
		base := cfg.GetChartOutputDir()
		if *outDir != "" {
			base = *outDir
		}
		if err := generateCharts(database, cfg, run, fit, scale, base); err != nil {
			log.Printf("chart generation failed: %v", err)
		}
	}

	if *serve {
		serveHTTP(database, cfg, scale)
	}
}

// importSurvey loads the wide survey and deck design files, reshapes to long
// form, joins them against the design, and stores everything. Re-importing
// the same survey file is detected by content hash and skipped.
func importSurvey(database *db.DB, cfg *config.AnalysisConfig, surveyPath, deckPath string) error {
	sha, err := fileSHA256(surveyPath)
	if err != nil {
		return err
	}
	if existing, err := database.FindSurveyBySHA(sha); err != nil {
		return err
	} else if existing != nil {
		log.Printf("survey %s already imported as %q (id=%d), skipping", surveyPath, existing.Name, existing.ID)
		return nil
	}

	deck, err := survey.LoadDeck(deckPath, cfg)
	if err != nil {
		return err
	}
	if err := database.StoreDeck(deck); err != nil {
		return err
	}
	log.Printf("stored deck design with %d vignettes", deck.NumVignettes())

	wide, err := survey.LoadWide(surveyPath, cfg)
	if err != nil {
		return err
	}

	rows, dropped, err := survey.Reshape(wide)
	if err != nil {
		return err
	}
	if dropped > 0 {
		log.Printf("dropped %d vignette slots with missing ratings", dropped)
	}

	// Validate the join before committing anything.
	if _, err := survey.Join(rows, deck); err != nil {
		return err
	}

	rec := &db.Survey{
		Name:            filepath.Base(surveyPath),
		SourcePath:      surveyPath,
		RespondentCount: wide.NumRespondents(),
		SHA256:          sha,
	}
	if err := database.CreateSurvey(rec); err != nil {
		return err
	}
	if err := database.RecordRatings(rec.ID, rows); err != nil {
		return err
	}

	log.Printf("imported %d ratings from %d respondents", len(rows), wide.NumRespondents())
	return nil
}

// fitAndRecord runs the full estimation over all stored ratings and records
// the run.
func fitAndRecord(database *db.DB, cfg *config.AnalysisConfig) (*db.AnalysisRun, *model.Fit, error) {
	attrNames := make([]string, len(cfg.Attributes))
	for i, attr := range cfg.Attributes {
		attrNames[i] = attr.Name
	}

	maxID, err := database.MaxRatingID()
	if err != nil {
		return nil, nil, err
	}

	rows, err := database.LongRatings(attrNames)
	if err != nil {
		return nil, nil, err
	}

	mf, err := survey.Recode(rows, cfg)
	if err != nil {
		return nil, nil, err
	}

	spec, err := model.SpecFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	fit, err := model.FitRating(mf, spec)
	if err != nil {
		return nil, nil, err
	}

	effects, err := model.AverageMarginalEffects(fit)
	if err != nil {
		return nil, nil, err
	}

	var mwtp []model.MWTP
	if spec.PriceAttribute != "" {
		if mwtp, err = model.WillingnessToPay(effects, spec); err != nil {
			return nil, nil, err
		}
	}

	run := db.NewAnalysisRun(nil, fit, effects, mwtp)
	run.MaxRatingID = maxID
	if err := database.CreateAnalysisRun(run); err != nil {
		return nil, nil, err
	}

	log.Printf("recorded analysis run %s (n=%d, loglike=%.2f)", run.RunID, run.NumObs, run.LogLike)
	return run, fit, nil
}

func printResults(run *db.AnalysisRun, fit *model.Fit, scale string) {
	fmt.Printf("\nModel fit: n=%d  log-likelihood=%.2f\n\n", run.NumObs, run.LogLike)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Term", "Coefficient", "Std Err", "Z"})
	for i, name := range fit.Names {
		table.Append([]string{
			name,
			strconv.FormatFloat(fit.Params[i], 'f', 4, 64),
			strconv.FormatFloat(fit.StdErr[i], 'f', 4, 64),
			strconv.FormatFloat(fit.ZScores[i], 'f', 2, 64),
		})
	}
	table.Render()

	if len(run.Effects) > 0 {
		fmt.Printf("\nAverage marginal effects (%s rating points):\n\n", scale)
		table = tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Attribute", "AME (unit)", "AME (" + scale + ")"})
		for _, e := range run.Effects {
			table.Append([]string{
				e.Name,
				strconv.FormatFloat(e.AME, 'f', 4, 64),
				strconv.FormatFloat(units.ConvertEffect(e.AME, scale), 'f', 4, 64),
			})
		}
		table.Render()
	}

	if len(run.MWTP) > 0 {
		fmt.Printf("\nMarginal willingness to pay (per unit of %s):\n\n", run.Spec.PriceAttribute)
		table = tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Attribute", "MWTP"})
		for _, m := range run.MWTP {
			table.Append([]string{m.Name, m.Formatted})
		}
		table.Render()
	}
}

// generateCharts writes HTML and PNG artifacts for the run into a
// timestamped directory and records each file as a report.
func generateCharts(database *db.DB, cfg *config.AnalysisConfig, run *db.AnalysisRun, fit *model.Fit, scale, baseDir string) error {
	dir := charts.MakeRunOutputDir(baseDir, run.RunID)
	gen, err := charts.NewGenerator(dir)
	if err != nil {
		return err
	}

	record := func(path string, renderErr error, format string) {
		if renderErr != nil {
			log.Printf("chart render error: %v", renderErr)
			return
		}
		report := &db.AnalysisReport{
			RunID:    run.RunID,
			Filepath: path,
			Filename: filepath.Base(path),
			Format:   format,
		}
		if err := database.CreateAnalysisReport(report); err != nil {
			log.Printf("failed to record report %s: %v", path, err)
			return
		}
		log.Printf("wrote %s", path)
	}

	path, err := gen.EffectsBarChart(run.Effects, scale)
	record(path, err, "html")

	if len(run.MWTP) > 0 {
		path, err = gen.MWTPBarChart(run.MWTP, run.Spec.Currency)
		record(path, err, "html")
	}

	attrNames := make([]string, len(cfg.Attributes))
	for i, attr := range cfg.Attributes {
		attrNames[i] = attr.Name
	}
	rows, err := database.LongRatings(attrNames)
	if err == nil {
		ratings := make([]float64, len(rows))
		for i, r := range rows {
			ratings[i] = r.Rating
		}
		path, err = gen.RatingHistogram(ratings, cfg.GetRatingScale())
		record(path, err, "html")
	}

	path, err = gen.EffectsPNG(run.Effects, scale)
	record(path, err, "png")

	path, err = gen.FittedMeansPNG(fit)
	record(path, err, "png")

	return nil
}

// serveHTTP runs the HTTP API with the background refit worker until
// interrupted.
func serveHTTP(database *db.DB, cfg *config.AnalysisConfig, scale string) {
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := db.NewAnalysisWorker(database, cfg)
	worker.Start()
	defer worker.Stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(database, cfg, scale).ServeMux()
		database.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("serving on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
