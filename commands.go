package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"books-etl/config"
	"books-etl/models"
	"books-etl/pipeline"
	"books-etl/scraper"
	"books-etl/scraper/amazon"
	"books-etl/services"
	"books-etl/storage"
	"books-etl/utils"
)

type app struct {
	cfg    *config.Config
	logger *utils.Logger
	runner *pipeline.Runner

	targetCount  int
	rawDir       string
	processedDir string
	logLevel     string
}

// execute runs the CLI and returns the process exit status.
func execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		if a.logger != nil {
			a.logger.Error("%v", err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
	return pipeline.ExitCode(err)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "books-etl",
		Short:             "Scrape, rank and load highly rated books",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
	})

	pf := root.PersistentFlags()
	pf.IntVar(&a.targetCount, "target", 0, "number of listings to extract (overrides TARGET_COUNT)")
	pf.StringVar(&a.rawDir, "raw-dir", "", "directory for the raw artifact (overrides RAW_DATA_PATH)")
	pf.StringVar(&a.processedDir, "processed-dir", "", "directory for processed artifacts (overrides PROCESSED_DATA_PATH)")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		&cobra.Command{
			Use:   "extract",
			Short: "Scrape search results into the raw artifact",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := a.extract(cmd.Context())
				return err
			},
		},
		&cobra.Command{
			Use:   "transform",
			Short: "Clean and rank the raw artifact into processed artifacts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := a.transform(cmd.Context())
				return err
			},
		},
		&cobra.Command{
			Use:   "load",
			Short: "Replace the books and top_10_books tables from processed artifacts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				loader, err := a.load(cmd.Context())
				if err != nil {
					return err
				}
				return loader.Close()
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Run extract, transform and load in sequence",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.runAll(cmd.Context())
			},
		},
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if a.targetCount != 0 {
		cfg.TargetCount = a.targetCount
	}
	if a.rawDir != "" {
		cfg.RawDataPath = a.rawDir
	}
	if a.processedDir != "" {
		cfg.ProcessedDataPath = a.processedDir
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
	}

	a.cfg = cfg
	a.logger = utils.NewLogger(utils.ParseLevel(cfg.LogLevel))
	a.runner = pipeline.NewRunner(
		storage.NewDirStore(cfg.RawDataPath),
		storage.NewDirStore(cfg.ProcessedDataPath),
		a.logger,
	)

	a.logger.Info("=== books-etl %s ===", cmd.Name())
	a.logger.Info("Config: target %d | min rating %.1f | top %d | fetcher %s | raw %s | processed %s",
		cfg.TargetCount, cfg.MinRating, cfg.TopN, cfg.Fetcher, cfg.RawDataPath, cfg.ProcessedDataPath)
	return nil
}

func (a *app) extract(ctx context.Context) ([]models.ListingRecord, error) {
	fetcher, err := a.newFetcher()
	if err != nil {
		return nil, err
	}
	defer fetcher.Close()

	s, err := amazon.New(fetcher, amazon.Options{
		SearchURL: a.cfg.SearchURL,
		MinRating: a.cfg.MinRating,
		MaxPages:  a.cfg.MaxPages,
		RateLimit: time.Duration(a.cfg.RateLimitMs) * time.Millisecond,
	}, a.logger.With("amazon"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
	}

	return a.runner.Extract(ctx, s, a.cfg.TargetCount)
}

func (a *app) newFetcher() (scraper.PageFetcher, error) {
	timeout := time.Duration(a.cfg.RequestTimeoutSec) * time.Second
	if a.cfg.Fetcher == config.FetcherChrome {
		f, err := scraper.NewChromeFetcher(a.cfg.ChromeBin, timeout, a.logger.With("chrome"))
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return scraper.NewHTTPFetcher(timeout), nil
}

func (a *app) transform(ctx context.Context) (*pipeline.TransformResult, error) {
	tr := services.NewTransformer(a.logger.With("transformer"), a.cfg.TopN, a.cfg.SkipMalformed)
	return a.runner.Transform(ctx, tr)
}

func (a *app) load(ctx context.Context) (*storage.PostgresLoader, error) {
	retry := &utils.RetryConfig{
		MaxAttempts: a.cfg.MaxRetries,
		BaseDelay:   2 * time.Second,
		Logger:      a.logger,
	}
	loader, err := storage.NewPostgresLoader(ctx, a.cfg.DSN(), retry, a.logger.With("postgres"))
	if err != nil {
		a.logger.Error("Make sure PostgreSQL is reachable at %s:%s", a.cfg.PostgresHost, a.cfg.PostgresPort)
		return nil, err
	}

	if _, err := a.runner.Load(ctx, loader); err != nil {
		_ = loader.Close()
		return nil, err
	}
	return loader, nil
}

func (a *app) runAll(ctx context.Context) error {
	if _, err := a.extract(ctx); err != nil {
		return err
	}

	res, err := a.transform(ctx)
	if err != nil {
		return err
	}

	loader, err := a.load(ctx)
	if err != nil {
		return err
	}
	defer loader.Close()

	tables := res.Tables
	if top, err := loader.FetchTop(ctx); err != nil {
		a.logger.Warn("Failed to read %s back for the report: %v", storage.TopBooksTable, err)
	} else {
		tables = &models.Tables{Full: res.Tables.Full, Top: top}
	}

	reports := services.NewReportService(a.logger.With("report"))
	reports.Print(os.Stdout, reports.Generate(res.RawCount, tables))
	return nil
}
