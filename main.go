package main

import (
	"context"
	"diffly_crawler/api"
	"diffly_crawler/config"
	"diffly_crawler/database"
	"diffly_crawler/scrapers"
	"diffly_crawler/services"
	"diffly_crawler/structs"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MonkyMars/gecho"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitConfigError = 2
)

var logger *gecho.Logger
var cfg *structs.Config

// init loads environment variables and initializes configuration and logger
func init() {
	envErr := godotenv.Load()

	cfg = config.GetConfig()
	logger = config.InitializeLogger()

	if envErr != nil {
		logger.Debug("No .env file found, proceeding with system environment variables")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitConfigError
	}

	switch args[0] {
	case "scrape":
		return runScrape(ctx, args[1:], stdout, stderr)
	case "migrate":
		return runMigrate(ctx, stdout)
	case "-h", "--help", "help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "configuration error: unknown command %q\n", args[0])
		usage(stderr)
		return exitConfigError
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  diffly scrape <platform> <type> [-p|--pages N] [--dry-run] [--every SPEC]")
	fmt.Fprintln(w, "  diffly migrate")
}

type scrapeArgs struct {
	platform    string
	contentType string
	pages       int
	dryRun      bool
	every       string
}

func parseScrapeArgs(args []string, defaultPages int, stderr io.Writer) (scrapeArgs, error) {
	if len(args) < 2 {
		return scrapeArgs{}, errors.New("scrape needs a platform and a content type")
	}
	sa := scrapeArgs{platform: args[0], contentType: args[1]}

	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&sa.pages, "p", defaultPages, "number of pages to crawl per region")
	fs.IntVar(&sa.pages, "pages", defaultPages, "number of pages to crawl per region")
	fs.BoolVar(&sa.dryRun, "dry-run", false, "ingest into memory instead of the database")
	fs.StringVar(&sa.every, "every", "", "run repeatedly on a cron schedule, e.g. \"@every 6h\"")
	if err := fs.Parse(args[2:]); err != nil {
		return scrapeArgs{}, err
	}
	if fs.NArg() > 0 {
		return scrapeArgs{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if sa.pages <= 0 {
		return scrapeArgs{}, fmt.Errorf("pages must be positive, got %d", sa.pages)
	}
	return sa, nil
}

func runScrape(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitConfigError
	}

	sa, err := parseScrapeArgs(args, cfg.Crawler.MaxPages, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitConfigError
	}

	newScraper, err := scrapers.Get(sa.platform, sa.contentType)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitConfigError
	}

	var db *database.DB
	if !sa.dryRun {
		if err := database.Initialize(ctx); err != nil {
			logger.Error("Failed to initialize database", gecho.Field("error", err))
			return exitFailure
		}
		defer func() {
			if err := database.CloseInstance(); err != nil {
				logger.Warn("Failed to close database", gecho.Field("error", err))
			}
		}()
		db = database.GetInstance()
	}

	sm := services.NewServiceManager(logger, cfg, db)
	defer func() {
		if err := sm.Close(); err != nil {
			logger.Warn("Failed to close services", gecho.Field("error", err))
		}
	}()

	if cfg.Metrics.Address != "" {
		go func() {
			if err := api.Serve(ctx, logger, cfg.Metrics.Address, api.App(logger, sm.HealthService, sm.CacheService)); err != nil {
				logger.Error("Health server stopped", gecho.Field("error", err))
			}
		}()
	}

	scraper := newScraper(logger, cfg, sm)
	opts := structs.ScrapeOptions{Pages: sa.pages, DryRun: sa.dryRun}

	runOnce := func() error {
		result, err := scraper.Run(ctx, opts)
		if err != nil {
			return err
		}
		for _, line := range result.Summary {
			fmt.Fprintln(stdout, line)
		}
		fmt.Fprintf(stdout, "Scraping %s/%s for %d pages complete.\n", sa.platform, sa.contentType, result.Pages)
		return nil
	}

	if sa.every == "" {
		if err := runOnce(); err != nil {
			logger.Error("Scrape failed", gecho.Field("error", err))
			return exitFailure
		}
		return exitOK
	}

	return runDaemon(ctx, sa.every, runOnce, stderr)
}

// runDaemon runs job now and then on schedule until ctx is cancelled. A run
// still in progress when the next one is due is skipped.
func runDaemon(ctx context.Context, schedule string, job func() error, stderr io.Writer) int {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	wrapped := func() {
		if err := job(); err != nil {
			logger.Error("Scheduled scrape failed", gecho.Field("error", err))
		}
	}
	if _, err := c.AddFunc(schedule, wrapped); err != nil {
		fmt.Fprintf(stderr, "configuration error: invalid schedule %q: %v\n", schedule, err)
		return exitConfigError
	}

	logger.Info("Starting scheduled scraping", gecho.Field("schedule", schedule))
	wrapped()
	c.Start()

	<-ctx.Done()
	logger.Info("Shutdown requested, waiting for running scrape")
	<-c.Stop().Done()
	return exitOK
}

func runMigrate(ctx context.Context, stdout io.Writer) int {
	if err := database.Initialize(ctx); err != nil {
		logger.Error("Failed to initialize database", gecho.Field("error", err))
		return exitFailure
	}
	defer func() {
		if err := database.CloseInstance(); err != nil {
			logger.Warn("Failed to close database", gecho.Field("error", err))
		}
	}()

	if err := database.Migrate(ctx, database.GetInstance(), cfg.Crawler.PlatformName); err != nil {
		logger.Error("Migration failed", gecho.Field("error", err))
		return exitFailure
	}

	cache := services.NewCacheService(logger, cfg.Cache)
	defer cache.Close()
	if err := cache.InvalidateLookups(ctx); err != nil {
		logger.Warn("Failed to invalidate cached lookups", gecho.Field("error", err))
	}

	fmt.Fprintln(stdout, "Migration complete.")
	return exitOK
}
