package xbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"diffly_crawler/crawl"
	"diffly_crawler/structs"

	"github.com/MonkyMars/gecho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browseHTML = `<html><head><script>
window.__PRELOADED_STATE__ = {
	"core2": {
		"channels": {
			"channelData": {
				"BROWSE_CHANNELID=_FILTERS=ORDERBY=TITLE ASC&PLAYWITH=XBOXONE,XBOXSERIESX|S": {
					"data": {
						"products": [{"productId": "1"}, {"productId": "2"}, {"productId": "missing"}],
						"encodedCT": "TOKEN1"
					}
				}
			}
		},
		"products": {
			"productSummaries": {
				"1": {"productId": "1", "title": "Game 1", "specificPrices": {"purchaseable": [{"listPrice": 89.99, "msrp": 89.99}]}},
				"2": {"productId": "2", "title": "Game 2", "specificPrices": {"purchaseable": [{"listPrice": 60, "msrp": 80}]}},
				"3": {"productId": "3", "title": "Not listed"}
			}
		}
	}
};
</script></head><body></body></html>`

func continuationJSON(cursor string, ids ...string) string {
	products := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		products = append(products, map[string]string{"productId": id, "title": "Game " + id})
	}
	channel := map[string]string{}
	if cursor != "" {
		channel["encodedCT"] = cursor
	}
	body, _ := json.Marshal(map[string]any{
		"productSummaries": products,
		"channels":         map[string]any{browseChannelKey: channel},
	})
	return string(body)
}

func testSpider(maxPages int, regions ...string) *Spider {
	if len(regions) == 0 {
		regions = []string{"en-US"}
	}
	return NewSpider(gecho.NewDefaultLogger(), &structs.CrawlerConfig{
		Regions:       regions,
		BrowseBaseURL: "https://www.xbox.com",
		APIBaseURL:    "https://emerald.xboxservices.com",
		TraceBase:     "DSK6KO20k6Y7NXCBkdtipF",
	}, maxPages)
}

func browseResponse(region, body string) *crawl.Response {
	return &crawl.Response{
		Request:    testSpider(3).StartRequest(region),
		StatusCode: http.StatusOK,
		Body:       []byte(body),
	}
}

func apiResponse(region, body string) *crawl.Response {
	return &crawl.Response{
		Request:    &crawl.Request{Method: http.MethodPost, Region: region},
		StatusCode: http.StatusOK,
		Body:       []byte(body),
	}
}

func TestParseBrowsePage_ItemsAndFollowUp(t *testing.T) {
	s := testSpider(3)
	state := newRegionState("en-US")

	outcome := s.ParseBrowsePage(state, browseResponse("en-US", browseHTML))

	require.Len(t, outcome.Items, 2)
	assert.Equal(t, "1", outcome.Items[0].ProductID)
	assert.Equal(t, "Game 2", outcome.Items[1].Title)
	assert.Equal(t, "80", outcome.Items[1].BasePrice.String())
	for _, item := range outcome.Items {
		assert.Equal(t, "en-US", item.Region)
	}

	require.NotNil(t, outcome.Next)
	assert.Equal(t, http.MethodPost, outcome.Next.Method)
	assert.Equal(t, "https://emerald.xboxservices.com/xboxcomfd/browse?locale=en-US", outcome.Next.URL)
	assert.Equal(t, 1, state.pagesScraped)
	assert.Equal(t, "TOKEN1", state.cursor)

	var body continuationBody
	require.NoError(t, json.Unmarshal(outcome.Next.Body, &body))
	assert.Equal(t, "TOKEN1", body.EncodedCT)
	assert.Equal(t, browseFilters, body.Filters)
	assert.Equal(t, browseChannelKey, body.ChannelKeyToBeUsedInResponse)
	assert.False(t, body.ReturnFilters)
	assert.Empty(t, body.ChannelId)
}

func TestParseBrowsePage_SummaryWithoutOwnProductID(t *testing.T) {
	s := testSpider(3)
	state := newRegionState("en-US")
	html := strings.Replace(browseHTML, `"1": {"productId": "1", "title": "Game 1"`, `"1": {"title": "Game 1"`, 1)
	require.NotEqual(t, browseHTML, html)

	outcome := s.ParseBrowsePage(state, browseResponse("en-US", html))

	require.Len(t, outcome.Items, 2)
	ids := []string{outcome.Items[0].ProductID, outcome.Items[1].ProductID}
	assert.ElementsMatch(t, []string{"1", "2"}, ids)
}

func TestParseBrowsePage_PageCapStopsFollowUp(t *testing.T) {
	s := testSpider(1)
	state := newRegionState("en-US")

	outcome := s.ParseBrowsePage(state, browseResponse("en-US", browseHTML))

	assert.Len(t, outcome.Items, 2)
	assert.Nil(t, outcome.Next)
}

func TestParseBrowsePage_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed state", `<script>window.__PRELOADED_STATE__ = {'invalid': 'JSON'};</script>`},
		{"missing state", `<html><head><title>Browse all games | Xbox</title></head><body></body></html>`},
		{"missing channel", `<script>window.__PRELOADED_STATE__ = {"core2": {"channels": {"channelData": {"OTHER": {}}}, "products": {"productSummaries": {"1": {"productId": "1"}}}}};</script>`},
		{"malformed channel", `<script>window.__PRELOADED_STATE__ = {"core2": {"channels": {"channelData": {"BROWSE_CHANNELID=x": {"data": []}}}}};</script>`},
		{"empty product list", `<script>window.__PRELOADED_STATE__ = {"core2": {"channels": {"channelData": {"BROWSE_CHANNELID=x": {"data": {"products": []}}}}}};</script>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newRegionState("en-US")
			outcome := testSpider(3).ParseBrowsePage(state, browseResponse("en-US", tt.body))

			assert.Empty(t, outcome.Items)
			assert.Nil(t, outcome.Next)
			assert.Equal(t, 1, state.pagesScraped)
		})
	}
}

func TestParseContinuation(t *testing.T) {
	s := testSpider(3)
	state := newRegionState("tr-TR")
	state.pagesScraped = 1

	outcome := s.ParseContinuation(state, apiResponse("tr-TR", continuationJSON("TOKEN2", "a", "b", "c")))

	require.Len(t, outcome.Items, 3)
	for _, item := range outcome.Items {
		assert.Equal(t, "tr-TR", item.Region)
	}
	require.NotNil(t, outcome.Next)
	assert.Contains(t, outcome.Next.URL, "locale=tr-TR")
	assert.Equal(t, 2, state.pagesScraped)
}

func TestParseContinuation_CapReachedIgnoresCursor(t *testing.T) {
	s := testSpider(1)
	state := newRegionState("en-US")
	state.pagesScraped = 1

	outcome := s.ParseContinuation(state, apiResponse("en-US", continuationJSON("next_ct")))

	assert.Empty(t, outcome.Items)
	assert.Nil(t, outcome.Next)
}

func TestParseContinuation_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{'invalid': 'JSON'}`},
		{"missing channel", `{"productSummaries": [{"productId": "1"}], "channels": {}}`},
		{"no cursor", continuationJSON("", "1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := testSpider(3).ParseContinuation(newRegionState("en-US"), apiResponse("en-US", tt.body))
			assert.Nil(t, outcome.Next)
		})
	}

	outcome := testSpider(3).ParseContinuation(newRegionState("en-US"), apiResponse("en-US", `{'invalid': 'JSON'}`))
	assert.Empty(t, outcome.Items)
}

func TestContinuationRequest_TraceCounterIncreases(t *testing.T) {
	s := testSpider(3)

	var last int
	for i := range 5 {
		req := s.ContinuationRequest("en-US", "ct")
		cv := req.Headers.Get("MS-CV")
		require.True(t, strings.HasPrefix(cv, "DSK6KO20k6Y7NXCBkdtipF."), cv)

		n, err := strconv.Atoi(strings.TrimPrefix(cv, "DSK6KO20k6Y7NXCBkdtipF."))
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, 1, n)
		}
		assert.Greater(t, n, last)
		last = n
	}
}

func TestChannelKey_PicksFirstSortedMatch(t *testing.T) {
	key, ok := channelKey(map[string]json.RawMessage{
		"SPOTLIGHT":          nil,
		"BROWSE_CHANNELID=b": nil,
		"BROWSE_CHANNELID=a": nil,
	})
	require.True(t, ok)
	assert.Equal(t, "BROWSE_CHANNELID=a", key)

	_, ok = channelKey(nil)
	assert.False(t, ok)
}

func TestResponseRegion(t *testing.T) {
	assert.Equal(t, "tr-TR", responseRegion(&crawl.Response{Request: &crawl.Request{Region: "tr-TR"}}))
	assert.Equal(t, "de-DE", responseRegion(&crawl.Response{Request: &crawl.Request{URL: "https://www.xbox.com/de-DE/games/browse"}}))
	assert.Equal(t, "en-US", responseRegion(&crawl.Response{Request: &crawl.Request{URL: "https://example.com/"}}))
	assert.Equal(t, "en-US", responseRegion(&crawl.Response{}))
}

// fakeFetcher serves canned bodies keyed by region and cursor.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	fail     map[string]bool
	requests []*crawl.Request
}

func (f *fakeFetcher) Do(_ context.Context, req *crawl.Request) (*crawl.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if f.fail[req.Region] {
		return nil, errors.New("connection refused")
	}

	key := req.Region
	if req.Method == http.MethodPost {
		var body continuationBody
		if err := json.Unmarshal(req.Body, &body); err != nil {
			return nil, err
		}
		key += "/" + body.EncodedCT
	}
	return &crawl.Response{Request: req, StatusCode: http.StatusOK, Body: []byte(f.pages[key])}, nil
}

func (f *fakeFetcher) regionRequests(region string) []*crawl.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*crawl.Request
	for _, r := range f.requests {
		if r.Region == region {
			out = append(out, r)
		}
	}
	return out
}

type collector struct {
	mu    sync.Mutex
	items []structs.CatalogItem
}

func (c *collector) emit(_ context.Context, item structs.CatalogItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
	return nil
}

func TestCrawlRegion_FollowsCursorsUntilCap(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"en-US":        browseHTML,
		"en-US/TOKEN1": continuationJSON("TOKEN2", "10", "11"),
		"en-US/TOKEN2": continuationJSON("TOKEN3", "12"),
		"en-US/TOKEN3": continuationJSON("", "13"),
	}}
	out := &collector{}

	err := testSpider(3).CrawlRegion(context.Background(), fetcher, "en-US", out.emit)
	require.NoError(t, err)

	reqs := fetcher.regionRequests("en-US")
	require.Len(t, reqs, 3)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Contains(t, string(reqs[1].Body), "TOKEN1")
	assert.Contains(t, string(reqs[2].Body), "TOKEN2")
	assert.Len(t, out.items, 5)
}

func TestCrawl_RegionsFailIndependently(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]string{
			"en-US":        browseHTML,
			"en-US/TOKEN1": continuationJSON("", "10"),
		},
		fail: map[string]bool{"tr-TR": true},
	}
	out := &collector{}

	err := testSpider(3, "en-US", "tr-TR").Crawl(context.Background(), fetcher, out.emit)
	require.NoError(t, err)

	assert.Len(t, out.items, 3)
	assert.Len(t, fetcher.regionRequests("tr-TR"), 1)
}

func TestCrawl_EmitErrorStopsRegion(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"en-US": browseHTML}}
	stop := errors.New("pipeline closed")

	err := testSpider(3).Crawl(context.Background(), fetcher, func(context.Context, structs.CatalogItem) error {
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Len(t, fetcher.regionRequests("en-US"), 1)
}

func TestCrawl_NoRegions(t *testing.T) {
	s := NewSpider(gecho.NewDefaultLogger(), &structs.CrawlerConfig{}, 3)
	err := s.Crawl(context.Background(), &fakeFetcher{}, (&collector{}).emit)
	assert.ErrorIs(t, err, ErrNoRegions)
}
