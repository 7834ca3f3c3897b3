package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"diffly_crawler/structs"

	"github.com/MonkyMars/gecho"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type stubReporter struct {
	dbErr error
}

func (s stubReporter) GetServerHealthStatus() structs.ServerHealthStatus {
	return structs.ServerHealthStatus{ServiceAlive: true, CurrentTime: time.Now()}
}

func (s stubReporter) GetDatabaseHealthStatus(context.Context) (structs.DependencyHealthStatus, error) {
	return structs.DependencyHealthStatus{Enabled: true, Connected: s.dbErr == nil}, s.dbErr
}

func (s stubReporter) GetCacheHealthStatus(context.Context) (structs.DependencyHealthStatus, error) {
	return structs.DependencyHealthStatus{}, nil
}

func newTestRouter(reporter HealthReporter) chi.Router {
	r := chi.NewRouter()
	NewHealthRoutesManager(gecho.NewDefaultLogger(), reporter).RegisterRoutes(r)
	return r
}

func TestHealthRoutes(t *testing.T) {
	tests := []struct {
		name     string
		reporter HealthReporter
		path     string
		want     int
	}{
		{"server", stubReporter{}, "/health/server", http.StatusOK},
		{"database up", stubReporter{}, "/health/database", http.StatusOK},
		{"database down", stubReporter{dbErr: errors.New("refused")}, "/health/database", http.StatusInternalServerError},
		{"cache disabled", stubReporter{}, "/health/cache", http.StatusOK},
		{"metrics", stubReporter{}, "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestRouter(tt.reporter).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
