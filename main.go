package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihttp "chiller-forecast/internal/api/http"
	artifact "chiller-forecast/internal/artifact/domain"
	"chiller-forecast/internal/artifact/infrastructure/filestore"
	artifactpostgres "chiller-forecast/internal/artifact/infrastructure/postgres"
	"chiller-forecast/internal/auth"
	"chiller-forecast/internal/config"
	"chiller-forecast/internal/fetch"
	"chiller-forecast/internal/observability/metrics"
	pipeline "chiller-forecast/internal/pipeline/application"
	"chiller-forecast/internal/pipeline/notify"
	"chiller-forecast/internal/telemetry/application/normalize"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const usage = `usage: chiller-forecast [run|serve] [-config path]

  run    execute the pipeline once and exit
  serve  expose the API and run the pipeline daily`

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	mode := "run"
	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "run" || args[0] == "serve") {
		mode, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	fs.Usage = func() { fmt.Fprintln(fs.Output(), usage) }
	configPath := fs.String("config", "", "yaml config file (default $CHILLER_CONFIG)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	app, err := build(cfg, logger)
	if err != nil {
		logger.Fatalf("startup error: %v", err)
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "serve":
		err = serve(ctx, cfg, app, logger)
	default:
		err = runOnce(ctx, cfg, app, logger)
	}
	if err != nil {
		logger.Printf("%s error: %v", mode, err)
		app.close()
		os.Exit(1)
	}
}

type application struct {
	cfg      config.Config
	loc      *time.Location
	registry *prometheus.Registry
	store    artifact.Repository
	runner   *pipeline.Runner
	db       *sql.DB
}

func (a *application) close() {
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
}

func build(cfg config.Config, logger *log.Logger) (*application, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	app := &application{cfg: cfg, loc: loc, registry: prometheus.NewRegistry()}
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := buildStore(app, logger)
	if err != nil {
		app.close()
		return nil, err
	}
	app.store = store

	fetcher, err := fetch.New(cfg.BaseDir, cfg.SourceURL, cfg.CachePath(),
		fetch.WithToken(cfg.SourceToken),
		fetch.WithLogger(logger),
	)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("fetcher: %w", err)
	}

	normalizeOpts := []normalize.Option{normalize.WithLocation(loc), normalize.WithLogger(logger)}
	if cfg.SynonymsPath != "" {
		synonyms, err := normalize.LoadSynonyms(cfg.SynonymsPath)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("synonyms: %w", err)
		}
		normalizeOpts = append(normalizeOpts, normalize.WithSynonyms(synonyms))
	}

	var notifier notify.Notifier
	if cfg.Alert.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Alert.WebhookURL)
	}

	runner, err := pipeline.NewRunner(fetcher, store, pipeline.Sources{
		Chiller:     cfg.Sources.Chiller,
		Temperature: cfg.Sources.Temperature,
		Prices:      cfg.Sources.Prices,
		Emission:    cfg.Sources.Emission,
	},
		pipeline.WithNormalizer(normalize.New(normalizeOpts...)),
		pipeline.WithLocation(loc),
		pipeline.WithOnThreshold(cfg.OnThresholdKW),
		pipeline.WithDataset(cfg.Dataset),
		pipeline.WithBiasAlert(notifier, cfg.Alert.BiasPct, cfg.Alert.ReportURL),
		pipeline.WithMetrics(metrics.New(app.registry)),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		app.close()
		return nil, err
	}
	app.runner = runner
	return app, nil
}

func buildStore(app *application, logger *log.Logger) (artifact.Repository, error) {
	cfg := app.cfg
	if cfg.Store.Driver == config.DriverPostgres {
		db, err := sql.Open("pgx", cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		app.db = db
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("db ping: %w", err)
		}
		metrics.RegisterStoreMetrics(app.registry, db, logger)
		return artifactpostgres.NewArtifactRepository(db, cfg.Dataset,
			artifactpostgres.WithRetention(cfg.BackupRetention),
		), nil
	}

	final := filestore.Format{Kind: filestore.KindCSV, Decimal: ','}
	return filestore.New(cfg.OutputDir,
		filestore.WithBackupDir(cfg.BackupPath()),
		filestore.WithRetention(cfg.BackupRetention),
		filestore.WithFormat(artifact.NameHistory, final),
		filestore.WithFormat(artifact.NameEstimates, final),
		filestore.WithFormat(artifact.NameAccuracy, final),
		filestore.WithLogger(logger),
	), nil
}

func runOnce(ctx context.Context, cfg config.Config, app *application, logger *log.Logger) error {
	result, runErr := app.runner.Run(ctx)
	if err := metrics.WriteTextfile(app.registry, cfg.MetricsTextfile); err != nil {
		logger.Printf("metrics textfile error: %v", err)
	}
	if runErr != nil {
		return runErr
	}
	logger.Printf("run %s finished: samples=%d history=%d estimates=%d ledger=%d skipped=%d",
		result.RunID, result.Samples, len(result.History), len(result.Estimates), len(result.Ledger), len(result.Skipped))
	return nil
}

func serve(ctx context.Context, cfg config.Config, app *application, logger *log.Logger) error {
	runsHandler, err := apihttp.NewRunsHandler(app.runner)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	canonical := apihttp.WithCanonicalizer(pipeline.CanonicalTable)
	mux.Handle("/api/v1/history", apihttp.NewTableHandler(app.store, artifact.NameHistory, canonical))
	mux.Handle("/api/v1/estimates", apihttp.NewTableHandler(app.store, artifact.NameEstimates, canonical))
	mux.Handle("/api/v1/accuracy", apihttp.NewTableHandler(app.store, artifact.NameAccuracy, canonical))
	mux.Handle("/api/v1/exports/estimates.csv", apihttp.NewExportCSVHandler(app.store, artifact.NameEstimates, "estimates.csv", canonical))
	mux.Handle("/api/v1/reports/forecast.pdf", apihttp.NewBlobHandler(app.store, artifact.BlobForecastPDF, "application/pdf"))
	mux.Handle("/api/v1/reports/forecast.xlsx", apihttp.NewBlobHandler(app.store, artifact.BlobForecastExcel,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	mux.Handle("/api/v1/runs", runsHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.JWTSecret == "" {
		logger.Printf("AUTH_JWT_SECRET not set, API auth disabled")
	}
	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	scheduler := pipeline.NewScheduler(app.runner, cfg.Schedule.DailyAt, app.loc, logger)
	go scheduler.Start(ctx)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
