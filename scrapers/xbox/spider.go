package xbox

import (
	"context"
	"diffly_crawler/api/health"
	"diffly_crawler/crawl"
	"diffly_crawler/structs"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/MonkyMars/gecho"
	"golang.org/x/sync/errgroup"
)

const fallbackRegion = "en-US"

var ErrNoRegions = errors.New("no regions configured")

var (
	preloadedStatePattern = regexp.MustCompile(`(?s)window\.__PRELOADED_STATE__ = ({.*?});`)
	regionURLPattern      = regexp.MustCompile(`xbox\.com/([^/]+)/games`)
)

// EmitFunc hands one item to the consumer. It may block to apply
// backpressure; an error stops the region.
type EmitFunc func(ctx context.Context, item structs.CatalogItem) error

// PageOutcome is everything parsed out of one response.
type PageOutcome struct {
	Items []structs.CatalogItem
	Next  *crawl.Request
}

// regionState is owned by exactly one region goroutine.
type regionState struct {
	region       string
	pagesScraped int
	cursor       string
}

func newRegionState(region string) *regionState {
	return &regionState{region: region}
}

// Spider walks the browse catalog of every configured region.
type Spider struct {
	logger        *gecho.Logger
	regions       []string
	maxPages      int
	browseBaseURL string
	apiBaseURL    string
	traceBase     string
	traceCounter  atomic.Int64
}

func NewSpider(logger *gecho.Logger, cfg *structs.CrawlerConfig, maxPages int) *Spider {
	return &Spider{
		logger:        logger,
		regions:       cfg.Regions,
		maxPages:      maxPages,
		browseBaseURL: strings.TrimSuffix(cfg.BrowseBaseURL, "/"),
		apiBaseURL:    strings.TrimSuffix(cfg.APIBaseURL, "/"),
		traceBase:     cfg.TraceBase,
	}
}

// Crawl runs one pagination loop per region concurrently. A region that
// fails to parse stops on its own; only cancellation or a failing emit is
// reported.
func (s *Spider) Crawl(ctx context.Context, fetcher crawl.Fetcher, emit EmitFunc) error {
	if len(s.regions) == 0 {
		return ErrNoRegions
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, region := range s.regions {
		g.Go(func() error {
			return s.CrawlRegion(ctx, fetcher, region, emit)
		})
	}
	return g.Wait()
}

// CrawlRegion issues the browse request for region and follows continuation
// cursors until none is returned or the page budget is spent. Requests are
// strictly sequential.
func (s *Spider) CrawlRegion(ctx context.Context, fetcher crawl.Fetcher, region string, emit EmitFunc) error {
	state := newRegionState(region)
	req := s.StartRequest(region)
	parse := s.ParseBrowsePage

	for req != nil {
		resp, err := fetcher.Do(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("Request failed, stopping region",
				gecho.Field("region", region),
				gecho.Field("url", req.URL),
				gecho.Field("error", err),
			)
			return nil
		}

		outcome := parse(state, resp)
		for _, item := range outcome.Items {
			if err := emit(ctx, item); err != nil {
				return fmt.Errorf("region %s: %w", region, err)
			}
		}

		req = outcome.Next
		parse = s.ParseContinuation
	}

	s.logger.Info("Region finished",
		gecho.Field("region", region),
		gecho.Field("pages", state.pagesScraped),
	)
	return nil
}

// StartRequest builds the initial browse page request for region.
func (s *Spider) StartRequest(region string) *crawl.Request {
	return &crawl.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/%s/games/browse?%s", s.browseBaseURL, region, browseQuery),
		Region: region,
	}
}

// ContinuationRequest builds the API request for the page after cursor. Every
// call takes the next trace counter value.
func (s *Spider) ContinuationRequest(region, cursor string) *crawl.Request {
	body, _ := json.Marshal(continuationBody{
		Filters:                      browseFilters,
		ReturnFilters:                false,
		ChannelKeyToBeUsedInResponse: browseChannelKey,
		EncodedCT:                    cursor,
		ChannelId:                    "",
	})

	headers := http.Header{}
	headers.Set("MS-CV", fmt.Sprintf("%s.%d", s.traceBase, s.traceCounter.Add(1)))
	headers.Set("Content-Type", "application/json")

	return &crawl.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/xboxcomfd/browse?locale=%s", s.apiBaseURL, url.QueryEscape(region)),
		Headers: headers,
		Body:    body,
		Region:  region,
	}
}

// ParseBrowsePage extracts the embedded catalog state from the initial HTML
// page.
func (s *Spider) ParseBrowsePage(state *regionState, resp *crawl.Response) PageOutcome {
	region := s.countPage(state, resp)

	match := preloadedStatePattern.FindSubmatch(resp.Body)
	if match == nil {
		s.logger.Warn("Could not find preloaded state", gecho.Field("region", region))
		return PageOutcome{}
	}

	var preloaded preloadedState
	if err := json.Unmarshal(match[1], &preloaded); err != nil {
		s.logger.Error("Error decoding preloaded state",
			gecho.Field("region", region),
			gecho.Field("error", err),
		)
		return PageOutcome{}
	}

	channelData := preloaded.Core2.Channels.ChannelData
	key, ok := channelKey(channelData)
	if !ok {
		s.logger.Warn("Browse channel missing from preloaded state", gecho.Field("region", region))
		return PageOutcome{}
	}

	var channel browseChannel
	if err := json.Unmarshal(channelData[key], &channel); err != nil {
		s.logger.Error("Error decoding browse channel",
			gecho.Field("region", region),
			gecho.Field("error", err),
		)
		return PageOutcome{}
	}

	summaries := preloaded.Core2.Products.ProductSummaries
	outcome := PageOutcome{}
	for _, product := range channel.Data.Products {
		raw, ok := summaries[product.ProductID]
		if product.ProductID == "" || !ok {
			continue
		}
		if item, ok := s.normalize(region, product.ProductID, raw); ok {
			outcome.Items = append(outcome.Items, item)
		}
	}

	outcome.Next = s.next(state, region, channel.Data.EncodedCT)
	return outcome
}

// ParseContinuation reads a continuation API page.
func (s *Spider) ParseContinuation(state *regionState, resp *crawl.Response) PageOutcome {
	region := s.countPage(state, resp)

	var page continuationPage
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		s.logger.Error("Error parsing API response",
			gecho.Field("region", region),
			gecho.Field("error", err),
		)
		return PageOutcome{}
	}

	key, ok := channelKey(page.Channels)
	if !ok {
		s.logger.Warn("Browse channel missing from API response", gecho.Field("region", region))
		return PageOutcome{}
	}

	var channel continuationChannel
	if err := json.Unmarshal(page.Channels[key], &channel); err != nil {
		s.logger.Error("Error decoding browse channel",
			gecho.Field("region", region),
			gecho.Field("error", err),
		)
		return PageOutcome{}
	}

	outcome := PageOutcome{}
	for _, raw := range page.ProductSummaries {
		if item, ok := s.normalize(region, "", raw); ok {
			outcome.Items = append(outcome.Items, item)
		}
	}

	outcome.Next = s.next(state, region, channel.EncodedCT)
	return outcome
}

func (s *Spider) countPage(state *regionState, resp *crawl.Response) string {
	if state.region == "" {
		state.region = responseRegion(resp)
	}
	state.pagesScraped++
	health.PagesScraped.WithLabelValues(state.region).Inc()

	s.logger.Info(fmt.Sprintf("Processing page %d/%d for region %s", state.pagesScraped, s.maxPages, state.region))
	return state.region
}

func (s *Spider) next(state *regionState, region, cursor string) *crawl.Request {
	state.cursor = cursor
	if cursor == "" || state.pagesScraped >= s.maxPages {
		return nil
	}
	return s.ContinuationRequest(region, cursor)
}

func (s *Spider) normalize(region, listedID string, raw json.RawMessage) (structs.CatalogItem, bool) {
	item, err := NormalizeListed(region, listedID, raw)
	if err != nil {
		s.logger.Warn("Skipping product summary",
			gecho.Field("region", region),
			gecho.Field("error", err),
		)
		return structs.CatalogItem{}, false
	}
	return item, true
}

// channelKey picks the first key, in sorted order, naming the browse channel.
func channelKey(channels map[string]json.RawMessage) (string, bool) {
	keys := make([]string, 0, len(channels))
	for k := range channels {
		if strings.Contains(k, channelMarker) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return keys[0], true
}

// responseRegion recovers the locale of a response whose request carried
// none, from the browse URL if possible.
func responseRegion(resp *crawl.Response) string {
	if resp.Request == nil {
		return fallbackRegion
	}
	if resp.Request.Region != "" {
		return resp.Request.Region
	}
	if m := regionURLPattern.FindStringSubmatch(resp.Request.URL); m != nil {
		return m[1]
	}
	return fallbackRegion
}
