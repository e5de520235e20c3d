package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	"github.com/noah-isme/enrollment-pipeline/internal/repository"
	"github.com/noah-isme/enrollment-pipeline/internal/service"
	"github.com/noah-isme/enrollment-pipeline/pkg/airtable"
	"github.com/noah-isme/enrollment-pipeline/pkg/cache"
	"github.com/noah-isme/enrollment-pipeline/pkg/config"
	"github.com/noah-isme/enrollment-pipeline/pkg/database"
	"github.com/noah-isme/enrollment-pipeline/pkg/export"
	"github.com/noah-isme/enrollment-pipeline/pkg/logger"
	"github.com/noah-isme/enrollment-pipeline/pkg/storage"
)

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  *service.PipelineRunner
	closers []io.Closer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		a         *app
		overrides config.PipelineConfig
	)

	root := &cobra.Command{
		Use:          "enrollment-pipeline",
		Short:        "Normalize raw enrollment exports and derive city metrics",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyOverrides(&cfg.Pipeline, overrides)
			a, err = newApp(cmd.Context(), cfg)
			return err
		},
	}
	cobra.OnFinalize(func() {
		if a != nil {
			a.close()
		}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&overrides.InputPath, "input", "", "raw export (.csv or .xlsx)")
	flags.StringVar(&overrides.InputSheet, "sheet", "", "worksheet name for .xlsx input")
	flags.StringVar(&overrides.OutputPath, "output", "", "canonical CSV path")
	flags.StringVar(&overrides.MetricsPath, "metrics", "", "city metrics CSV path")
	flags.StringVar(&overrides.VisualsDir, "visuals", "", "chart output directory")

	root.AddCommand(
		&cobra.Command{
			Use:   "clean",
			Short: "Normalize the raw export into the canonical table",
			RunE: func(cmd *cobra.Command, _ []string) error {
				result, err := a.runner.Clean(cmd.Context())
				if err != nil {
					return a.fail(err)
				}
				printCounts(cmd.OutOrStdout(), result)
				return nil
			},
		},
		&cobra.Command{
			Use:   "analyze",
			Short: "Aggregate the canonical table into city metrics",
			RunE: func(cmd *cobra.Command, _ []string) error {
				metrics, err := a.runner.Analyze(cmd.Context())
				if err != nil {
					return a.fail(err)
				}
				printMetrics(cmd.OutOrStdout(), metrics)
				return nil
			},
		},
		&cobra.Command{
			Use:   "visualize",
			Short: "Render enrollment charts",
			RunE: func(cmd *cobra.Command, _ []string) error {
				charts, err := a.runner.Visualize(cmd.Context())
				if err != nil {
					return a.fail(err)
				}
				for _, chart := range charts {
					fmt.Fprintln(cmd.OutOrStdout(), chart)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "upload",
			Short: "Upload canonical records and city metrics to the remote tables",
			RunE: func(cmd *cobra.Command, _ []string) error {
				reports, err := a.runner.Upload(cmd.Context())
				printUploads(cmd.OutOrStdout(), reports)
				if err != nil {
					return a.fail(err)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Run clean, analyze, visualize and upload in order",
			RunE: func(cmd *cobra.Command, _ []string) error {
				summary, err := a.runner.Run(cmd.Context())
				if summary != nil {
					out := cmd.OutOrStdout()
					printCounts(out, summary.Result)
					printMetrics(out, summary.Metrics)
					printUploads(out, summary.Uploads)
				}
				if err != nil {
					return a.fail(err)
				}
				return nil
			},
		},
	)
	return root
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logr}

	store, err := storage.NewLocalStorage(cfg.Artifact.BaseDir)
	if err != nil {
		return nil, err
	}
	metrics := service.NewMetricsService()
	recordValidator, err := service.NewRecordValidator(cfg.Pipeline.RequiredFields, validator.New(), logr)
	if err != nil {
		return nil, err
	}
	normalizer := service.NewNormalizationService(service.NewRecordNormalizer(logr), recordValidator, metrics, logr)
	exporter := service.NewExportService(store, logr, export.NewCSVExporter(), export.NewPDFExporter())
	visuals := service.NewVisualizationService(store, export.NewChartRenderer(), logr)

	var uploader *service.UploadService
	if cfg.Upload.Configured() {
		client, err := airtable.NewClient(airtable.Config{
			BaseURL:           cfg.Upload.BaseURL,
			Token:             cfg.Upload.Token,
			BaseID:            cfg.Upload.BaseID,
			Timeout:           cfg.Upload.Timeout,
			RequestsPerSecond: cfg.Upload.RequestsPerSecond,
		}, nil, logr)
		if err != nil {
			return nil, err
		}
		uploader = service.NewUploadService(client, service.UploadConfig{
			EnrollmentsTable: cfg.Upload.EnrollmentsTable,
			CitiesTable:      cfg.Upload.CitiesTable,
			BatchSize:        cfg.Pipeline.BatchSize,
			Workers:          cfg.Upload.Workers,
			MaxRetries:       cfg.Upload.MaxRetries,
			RetryDelay:       cfg.Upload.RetryDelay,
		}, metrics, logr)
	}

	var publisher service.RunPublisher
	if cfg.Features.DatabaseSink {
		analytics, err := a.openSink(ctx, metrics)
		if err != nil {
			a.close()
			return nil, err
		}
		publisher = analytics
	}

	paths := service.RunnerPaths{
		InputPath:   cfg.Pipeline.InputPath,
		InputSheet:  cfg.Pipeline.InputSheet,
		OutputPath:  cfg.Pipeline.OutputPath,
		MetricsPath: cfg.Pipeline.MetricsPath,
		ReportPath:  cfg.Pipeline.ReportPath,
		VisualsDir:  cfg.Pipeline.VisualsDir,
	}
	a.runner = service.NewPipelineRunner(paths, store, normalizer, exporter, visuals, uploader, publisher, logr)
	return a, nil
}

// openSink connects the database sink and, when enabled, the cache it invalidates.
func (a *app) openSink(ctx context.Context, metrics *service.MetricsService) (*service.AnalyticsService, error) {
	db, err := database.NewPostgres(a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, db)
	if err := database.Migrate(ctx, db); err != nil {
		return nil, err
	}

	cacheRepo := repository.NewCacheRepository(nil, a.logger)
	if a.cfg.Features.Cache {
		client, err := cache.NewRedis(a.cfg.Redis)
		if err != nil {
			a.logger.Warn("redis unavailable, cached reads will not be invalidated", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(client, a.logger)
			a.closers = append(a.closers, cacheRepo)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, a.cfg.Cache.TTL, a.logger, a.cfg.Features.Cache)
	return service.NewAnalyticsService(repository.NewEnrollmentRepository(db), cacheSvc, metrics, a.logger), nil
}

func (a *app) fail(err error) error {
	a.logger.Error("command failed", zap.Error(err))
	return err
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	_ = a.logger.Sync()
}

func applyOverrides(dst *config.PipelineConfig, src config.PipelineConfig) {
	if src.InputPath != "" {
		dst.InputPath = src.InputPath
	}
	if src.InputSheet != "" {
		dst.InputSheet = src.InputSheet
	}
	if src.OutputPath != "" {
		dst.OutputPath = src.OutputPath
	}
	if src.MetricsPath != "" {
		dst.MetricsPath = src.MetricsPath
	}
	if src.VisualsDir != "" {
		dst.VisualsDir = src.VisualsDir
	}
}

func printCounts(w io.Writer, result *models.PipelineResult) {
	if result == nil {
		return
	}
	fmt.Fprintf(w, "run %s: raw rows %d, canonical records %d, dropped %d\n",
		result.RunID, result.RawCount, result.CleanCount, result.Dropped())
}

func printMetrics(w io.Writer, metrics []models.CityMetrics) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CITY\tTOTAL\tREPEAT\tFIRST\tLAST")
	for _, m := range metrics {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", m.City, m.TotalEnrollments, m.RepeatEnrollments,
			displayDate(m.FirstEnrollment), displayDate(m.LastEnrollment))
	}
	_ = tw.Flush()
}

func displayDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return models.FormatDate(t)
}

func printUploads(w io.Writer, reports []*service.UploadReport) {
	for _, r := range reports {
		if r == nil {
			continue
		}
		fmt.Fprintf(w, "upload %s: %d records in %d batches, %d succeeded, %d failed\n",
			r.Table, r.Records, r.Batches, r.Succeeded, r.Failed)
	}
}
