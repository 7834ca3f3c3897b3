package crawl

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"diffly_crawler/structs"

	"github.com/MonkyMars/gecho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoliteness() *structs.PolitenessConfig {
	return &structs.PolitenessConfig{
		MaxConcurrent:          4,
		MaxConcurrentPerDomain: 2,
		RetryTimes:             2,
		RetryHTTPCodes:         []int{500, 503, 429},
		RetryBackoff:           time.Millisecond,
		Timeout:                5 * time.Second,
		UserAgent:              "diffly-test",
		DefaultHeaders: map[string]string{
			"Accept":           "application/json",
			"X-Ms-Api-Version": "1.1",
		},
	}
}

func newTestTransport(t *testing.T, cfg *structs.PolitenessConfig) *Transport {
	t.Helper()
	tr, err := NewTransport(gecho.NewDefaultLogger(), cfg)
	require.NoError(t, err)
	return tr
}

func TestTransport_GetSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "diffly-test", r.UserAgent())
		assert.Equal(t, "1.1", r.Header.Get("X-Ms-Api-Version"))
		assert.Equal(t, "text/html", r.Header.Get("Accept"))
		w.Header().Set("X-Upstream", "yes")
		_, _ = io.WriteString(w, "hello")
	}))
	defer srv.Close()

	tr := newTestTransport(t, testPoliteness())
	resp, err := tr.Do(context.Background(), &Request{
		URL:     srv.URL + "/en-US/games/browse",
		Headers: http.Header{"Accept": []string{"text/html"}},
		Region:  "en-US",
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(resp.Body))
	assert.Equal(t, "yes", resp.Headers.Get("X-Upstream"))
	assert.Equal(t, "en-US", resp.Request.Region)
	assert.Equal(t, 1, resp.Attempts)
}

func TestTransport_HeadersFor(t *testing.T) {
	tests := []struct {
		name     string
		defaults map[string]string
		request  http.Header
		wantUA   string
	}{
		{"collector user agent", nil, nil, "diffly-test"},
		{"default header wins over collector", map[string]string{"User-Agent": "from-defaults"}, nil, "from-defaults"},
		{"request header wins over defaults", map[string]string{"User-Agent": "from-defaults"}, http.Header{"User-Agent": []string{"from-request"}}, "from-request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testPoliteness()
			cfg.DefaultHeaders = tt.defaults
			tr := newTestTransport(t, cfg)

			hdr := tr.headersFor(&Request{Headers: tt.request})
			assert.Equal(t, tt.wantUA, hdr.Get("User-Agent"))
		})
	}
}

func TestTransport_DefaultUserAgentWhenUnconfigured(t *testing.T) {
	cfg := testPoliteness()
	cfg.UserAgent = ""
	tr := newTestTransport(t, cfg)

	hdr := tr.headersFor(&Request{})
	assert.NotEmpty(t, hdr.Get("User-Agent"))
	assert.NotEqual(t, "Go-http-client/1.1", hdr.Get("User-Agent"))
}

func TestTransport_PostSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "locale=tr-TR", r.URL.RawQuery)
		assert.JSONEq(t, `{"EncodedCT":"abc"}`, string(body))
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tr := newTestTransport(t, testPoliteness())
	resp, err := tr.Do(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/xboxcomfd/browse?locale=tr-TR",
		Body:   []byte(`{"EncodedCT":"abc"}`),
	})

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestTransport_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	tr := newTestTransport(t, testPoliteness())
	resp, err := tr.Do(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   []byte("payload"),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, "payload", string(resp.Body), "body must be resent on retry")
	assert.Equal(t, int32(2), calls.Load())
}

func TestTransport_GivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := newTestTransport(t, testPoliteness())
	resp, err := tr.Do(context.Background(), &Request{URL: srv.URL})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.NotNil(t, resp)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTransport_DoesNotRetryPermanentStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tr := newTestTransport(t, testPoliteness())
	_, err := tr.Do(context.Background(), &Request{URL: srv.URL})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransport_RespectsGlobalConcurrencyCap(t *testing.T) {
	var inflight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inflight.Add(-1)
	}))
	defer srv.Close()

	cfg := testPoliteness()
	cfg.MaxConcurrent = 1
	cfg.MaxConcurrentPerDomain = 4
	tr := newTestTransport(t, cfg)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Do(context.Background(), &Request{URL: srv.URL})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestTransport_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := newTestTransport(t, testPoliteness())
	_, err := tr.Do(ctx, &Request{URL: srv.URL})
	assert.ErrorIs(t, err, context.Canceled)
}
