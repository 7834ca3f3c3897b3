package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"diffly_crawler/structs"

	"github.com/MonkyMars/gecho"
	"github.com/stretchr/testify/assert"
)

type okReporter struct{}

func (okReporter) GetServerHealthStatus() structs.ServerHealthStatus {
	return structs.ServerHealthStatus{ServiceAlive: true}
}

func (okReporter) GetDatabaseHealthStatus(context.Context) (structs.DependencyHealthStatus, error) {
	return structs.DependencyHealthStatus{}, nil
}

func (okReporter) GetCacheHealthStatus(context.Context) (structs.DependencyHealthStatus, error) {
	return structs.DependencyHealthStatus{}, nil
}

type noCache struct{}

func (noCache) GetConnectionStats() map[string]any { return nil }

func TestApp(t *testing.T) {
	r := App(gecho.NewDefaultLogger(), okReporter{}, noCache{})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health/server", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/debug/cache", http.StatusNotFound},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPost, "/health/server", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}
