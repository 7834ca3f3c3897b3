package debug

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type stubInspector map[string]any

func (s stubInspector) GetConnectionStats() map[string]any {
	return s
}

func TestCacheStats(t *testing.T) {
	tests := []struct {
		name  string
		stats stubInspector
		want  int
	}{
		{"configured", stubInspector{"hits": uint32(3)}, http.StatusOK},
		{"disabled", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewDebugRoutesManager(tt.stats).RegisterRoutes(r)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/cache", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
