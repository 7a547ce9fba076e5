package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/pipeline"
	"github.com/ternarybob/colligo/internal/services/cleaner"
	"github.com/ternarybob/colligo/internal/services/loader"
	"github.com/ternarybob/colligo/internal/services/scheduler"
	"github.com/ternarybob/colligo/internal/services/scraper"
	"github.com/ternarybob/colligo/internal/storage/sqlite"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	domain       = flag.String("domain", "", "Company domain to harvest reviews for (overrides config)")
	pages        = flag.Int("pages", 0, "Number of listing pages to crawl (overrides config)")
	dbPath       = flag.String("db", "", "SQLite database path (overrides config)")
	stage        = flag.String("stage", "all", "Pipeline stage to run: extract, clean, load, or all")
	runOnce      = flag.Bool("once", false, "Run once and exit even when scheduling is enabled")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	// Parse command-line flags
	flag.Parse()

	// Handle version flag
	if *showVersion || *showVersionV {
		fmt.Printf("Colligo version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	var err error

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("colligo.toml"); err == nil {
			configFiles = append(configFiles, "colligo.toml")
		}
	}

	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		// Console-only fallback logger; the configured one needs the config
		tempLogger := common.GetLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, *domain, *pages, *dbPath)

	logger = common.InitLogger(config)

	common.PrintBanner()

	logger.Info().
		Strs("config_files", configFiles).
		Str("domain", config.Scraper.CompanyDomain).
		Int("pages", config.Scraper.Pages).
		Str("sqlite_path", config.Storage.SQLite.Path).
		Str("stage", *stage).
		Msg("Application configuration loaded")

	// Cancel the run on SIGINT/SIGTERM; cancellation takes effect between pages
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	db, err := sqlite.NewSQLiteDB(logger, &config.Storage.SQLite)
	if err != nil {
		return err
	}
	defer db.Close()

	reviewStorage := sqlite.NewReviewStorage(db, logger)
	runStorage := sqlite.NewRunStorage(db, logger)

	cleanService := cleaner.NewService(config.Cleaner, config.Artifacts, logger)
	loadService := loader.NewService(reviewStorage, config.Artifacts, logger)

	// Individual stages are invocable on their own; the browser only
	// starts when the extract stage actually runs.
	switch *stage {
	case "clean":
		count, err := cleanService.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int("cleaned", count).Msg("Clean stage finished")
		return nil
	case "load":
		count, err := loadService.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int("inserted", count).Msg("Load stage finished")
		return nil
	case "extract", "all":
		// Handled below with a live fetcher
	default:
		return fmt.Errorf("unknown stage %q (expected extract, clean, load, or all)", *stage)
	}

	fetcher, err := scraper.NewChromeFetcher(config.Scraper, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer fetcher.Close()

	scrapeService := scraper.NewService(fetcher, config.Scraper, config.Artifacts, logger)

	if *stage == "extract" {
		count, err := scrapeService.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int("scraped", count).Msg("Extract stage finished")
		return nil
	}

	runner := pipeline.NewRunner(scrapeService, cleanService, loadService, runStorage, logger)

	if config.Schedule.Enabled && !*runOnce {
		return runScheduled(ctx, runner, runStorage)
	}

	_, err = runner.Run(ctx)
	return err
}

// runScheduled runs the pipeline on the configured cron expression until
// interrupted. One run is triggered immediately on startup.
func runScheduled(ctx context.Context, runner *pipeline.Runner, runStorage interfaces.RunStorage) error {
	sched := scheduler.NewScheduler(runner, logger)
	if err := sched.Start(ctx, config.Schedule.Cron); err != nil {
		return err
	}

	if _, err := runner.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Initial pipeline run failed")
	}

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")
	sched.Stop()

	if runs, err := runStorage.ListRuns(context.Background(), 5); err == nil {
		for _, run := range runs {
			logger.Info().
				Str("run_id", run.RunID).
				Str("status", run.Status).
				Int("inserted", run.Inserted).
				Msg("Recent run")
		}
	}

	return nil
}
