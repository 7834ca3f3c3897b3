package crawl

import (
	"context"
	"net/http"
	"time"
)

// Request is a single upstream call. Region is carried through to the
// response so callers can attribute results without parsing the URL.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
	Region  string
}

// Response is a completed upstream call.
type Response struct {
	Request    *Request
	StatusCode int
	Headers    http.Header
	Body       []byte
	Latency    time.Duration
	Attempts   int
}

// OK reports whether the upstream answered with a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher performs upstream calls under the configured politeness policy.
type Fetcher interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}
