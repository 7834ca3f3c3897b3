package xbox

import (
	"context"
	"diffly_crawler/crawl"
	"diffly_crawler/lib"
	"diffly_crawler/services"
	"diffly_crawler/structs"
	"errors"
	"fmt"
	"net/url"

	"github.com/MonkyMars/gecho"
)

const (
	PlatformName = "xbox"
	ContentGames = "games"
)

// GamesScraper crawls the Xbox games catalog of every configured region and
// feeds the ingestion pipeline.
type GamesScraper struct {
	logger   *gecho.Logger
	config   *structs.Config
	services *services.ServiceManager
	clock    lib.Clock
}

func NewGamesScraper(logger *gecho.Logger, cfg *structs.Config, sm *services.ServiceManager) *GamesScraper {
	return &GamesScraper{
		logger:   logger,
		config:   cfg,
		services: sm,
		clock:    lib.NewRealClock(),
	}
}

// WithClock replaces the clock used for release date checks.
func (g *GamesScraper) WithClock(clock lib.Clock) *GamesScraper {
	g.clock = clock
	return g
}

// Run performs one full crawl. Parse and item failures are logged and
// skipped; a missing platform row or a held crawl lock fails the run.
func (g *GamesScraper) Run(ctx context.Context, opts structs.ScrapeOptions) (*structs.ScrapeResult, error) {
	pages := opts.Pages
	if pages <= 0 {
		pages = g.config.Crawler.MaxPages
	}

	release, err := g.services.LockService.AcquireCrawlLock(ctx, PlatformName, ContentGames)
	if err != nil {
		return nil, err
	}
	defer release()

	transport, err := crawl.NewTransport(g.logger, g.config.Crawler.Politeness, hosts(g.config.Crawler)...)
	if err != nil {
		return nil, err
	}

	store, err := g.services.OpenCatalogStore(ctx, opts.DryRun)
	if err != nil {
		return nil, err
	}

	ingest := services.NewIngestService(g.logger, store, g.clock, g.config.Crawler)
	if err := ingest.Prepare(ctx); err != nil {
		if closeErr := store.Close(); closeErr != nil {
			g.logger.Warn("Failed to close catalog store", gecho.Field("error", closeErr))
		}
		return nil, err
	}

	// in-flight items finish even when the crawl is interrupted
	pipeline := services.NewPipeline(context.WithoutCancel(ctx), g.logger, ingest, store, nil,
		g.config.Crawler.QueueSize, g.config.Crawler.Workers)

	g.logger.Info("Starting crawl",
		gecho.Field("platform", PlatformName),
		gecho.Field("type", ContentGames),
		gecho.Field("regions", g.config.Crawler.Regions),
		gecho.Field("pages", pages),
		gecho.Field("dry_run", opts.DryRun),
	)

	spider := NewSpider(g.logger, g.config.Crawler, pages)
	crawlErr := spider.Crawl(ctx, transport, pipeline.Submit)
	closeErr := pipeline.Close()

	if err := errors.Join(closeErr, crawlErr); err != nil {
		return nil, fmt.Errorf("crawl %s/%s failed: %w", PlatformName, ContentGames, err)
	}

	return &structs.ScrapeResult{
		Platform:    PlatformName,
		ContentType: ContentGames,
		Pages:       pages,
		Summary:     pipeline.Stats().Summary(),
	}, nil
}

func hosts(cfg *structs.CrawlerConfig) []string {
	var out []string
	for _, raw := range []string{cfg.BrowseBaseURL, cfg.APIBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		out = append(out, u.Hostname())
	}
	return out
}
