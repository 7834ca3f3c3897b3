package crawl

import (
	"bytes"
	"context"
	"diffly_crawler/api/health"
	"diffly_crawler/structs"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/MonkyMars/gecho"
	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/semaphore"
)

const (
	slotKey     = "diffly.response"
	maxBodySize = 64 * 1024 * 1024
)

// StatusError is returned when the upstream answers with a non-2xx status
// after retries are exhausted.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// colly rejects these before any network I/O, so retrying cannot help.
var permanentCollyErrors = []error{
	colly.ErrForbiddenDomain,
	colly.ErrMissingURL,
	colly.ErrMaxDepth,
	colly.ErrForbiddenURL,
	colly.ErrNoURLFiltersMatch,
	colly.ErrAlreadyVisited,
	colly.ErrRobotsTxtBlocked,
}

// responseSlot carries the colly response back to the synchronous caller.
type responseSlot struct {
	status  int
	headers http.Header
	body    []byte
	filled  bool
}

// Transport is a polite HTTP client built on a synchronous colly collector.
// It is safe for concurrent use; each caller blocks until its own request
// has completed or failed for good.
type Transport struct {
	logger    *gecho.Logger
	cfg       *structs.PolitenessConfig
	collector *colly.Collector
	sem       *semaphore.Weighted
	retryable map[int]bool

	mu     sync.Mutex
	pacers map[string]*hostPacer
}

// NewTransport builds a transport enforcing cfg. Each entry in domains gets
// its own per-domain concurrency slot; other hosts share a fallback rule.
func NewTransport(logger *gecho.Logger, cfg *structs.PolitenessConfig, domains ...string) (*Transport, error) {
	if cfg == nil {
		return nil, errors.New("crawl: politeness config is required")
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(maxBodySize),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !cfg.ObeyRobotsTxt
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}

	perDomain := max(cfg.MaxConcurrentPerDomain, 1)
	rules := make([]*colly.LimitRule, 0, len(domains)+1)
	for _, domain := range domains {
		rules = append(rules, &colly.LimitRule{DomainGlob: domain, Parallelism: perDomain})
	}
	rules = append(rules, &colly.LimitRule{DomainGlob: "*", Parallelism: perDomain})
	if err := c.Limits(rules); err != nil {
		return nil, fmt.Errorf("crawl: invalid limit rule: %w", err)
	}

	c.OnResponse(func(r *colly.Response) {
		slot, ok := r.Ctx.GetAny(slotKey).(*responseSlot)
		if !ok {
			return
		}
		slot.status = r.StatusCode
		slot.body = r.Body
		if r.Headers != nil {
			slot.headers = r.Headers.Clone()
		}
		slot.filled = true
	})

	retryable := make(map[int]bool, len(cfg.RetryHTTPCodes))
	for _, code := range cfg.RetryHTTPCodes {
		retryable[code] = true
	}

	return &Transport{
		logger:    logger,
		cfg:       cfg,
		collector: c,
		sem:       semaphore.NewWeighted(int64(max(cfg.MaxConcurrent, 1))),
		retryable: retryable,
		pacers:    make(map[string]*hostPacer),
	}, nil
}

// Do performs req, retrying transient failures. A non-2xx final answer is
// returned together with a *StatusError.
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("crawl: invalid url %q: %w", req.URL, err)
	}
	host := u.Hostname()
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	pacer := t.pacerFor(host)

	for attempt := 1; ; attempt++ {
		if err := pacer.wait(ctx); err != nil {
			return nil, err
		}
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		resp, err := t.fetch(method, req)
		t.sem.Release(1)

		status := "error"
		if err == nil {
			resp.Attempts = attempt
			status = strconv.Itoa(resp.StatusCode)
			delay := pacer.observe(resp.Latency, resp.OK())
			health.CrawlDuration.WithLabelValues(host, method, status).Observe(resp.Latency.Seconds())
			health.CrawlDelay.WithLabelValues(host).Set(delay.Seconds())
		}
		health.CrawlRequests.WithLabelValues(host, method, status).Inc()

		reason, retry := t.shouldRetry(resp, err)
		if !retry || attempt > t.cfg.RetryTimes {
			if err != nil {
				return nil, fmt.Errorf("crawl: %s %s: %w", method, req.URL, err)
			}
			if !resp.OK() {
				return resp, &StatusError{URL: req.URL, StatusCode: resp.StatusCode}
			}
			return resp, nil
		}

		backoff := t.backoff(attempt)
		health.CrawlRetries.WithLabelValues(host, reason).Inc()
		t.logger.Warn("Retrying upstream request",
			gecho.Field("url", req.URL),
			gecho.Field("attempt", attempt),
			gecho.Field("reason", reason),
			gecho.Field("backoff", backoff.String()),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *Transport) fetch(method string, req *Request) (*Response, error) {
	slot := &responseSlot{}
	cctx := colly.NewContext()
	cctx.Put(slotKey, slot)

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	start := time.Now()
	err := t.collector.Request(method, req.URL, body, cctx, t.headersFor(req))
	latency := time.Since(start)
	if err != nil {
		return nil, err
	}
	if !slot.filled {
		return nil, errors.New("no response received")
	}

	return &Response{
		Request:    req,
		StatusCode: slot.status,
		Headers:    slot.headers,
		Body:       slot.body,
		Latency:    latency,
	}, nil
}

func (t *Transport) headersFor(req *Request) http.Header {
	hdr := make(http.Header, len(t.cfg.DefaultHeaders)+len(req.Headers)+1)
	// colly only fills in its user agent when no header map is passed
	hdr.Set("User-Agent", t.collector.UserAgent)
	for k, v := range t.cfg.DefaultHeaders {
		hdr.Set(k, v)
	}
	for k, vs := range req.Headers {
		hdr.Del(k)
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}
	return hdr
}

func (t *Transport) shouldRetry(resp *Response, err error) (string, bool) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", false
		}
		if slices.ContainsFunc(permanentCollyErrors, func(target error) bool { return errors.Is(err, target) }) {
			return "", false
		}
		return "network", true
	}
	if t.retryable[resp.StatusCode] {
		return strconv.Itoa(resp.StatusCode), true
	}
	return "", false
}

// backoff grows exponentially from RetryBackoff with up to 50% jitter.
func (t *Transport) backoff(attempt int) time.Duration {
	base := t.cfg.RetryBackoff << (attempt - 1)
	if base <= 0 {
		return 0
	}
	return base/2 + time.Duration(rand.Int64N(int64(base)/2+1))
}

func (t *Transport) pacerFor(host string) *hostPacer {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pacers[host]
	if !ok {
		p = newHostPacer(
			t.cfg.Delay,
			t.cfg.AutoThrottleStartDelay,
			t.cfg.AutoThrottleMaxDelay,
			t.cfg.AutoThrottleTargetConc,
			t.cfg.AutoThrottle,
			t.cfg.RandomizeDelay,
		)
		t.pacers[host] = p
	}
	return p
}
