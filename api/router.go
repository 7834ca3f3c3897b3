package api

import (
	"context"
	"diffly_crawler/api/debug"
	"diffly_crawler/api/health"
	"diffly_crawler/api/middleware"
	"errors"
	"net/http"
	"time"

	"github.com/MonkyMars/gecho"
	"github.com/go-chi/chi/v5"
	chiware "github.com/go-chi/chi/v5/middleware"
)

// App builds the read-only health and metrics router.
func App(logger *gecho.Logger, healthService health.HealthReporter, cacheService debug.CacheInspector) chi.Router {
	r := chi.NewRouter()

	mw := middleware.NewMiddleware(logger)

	// Core infra
	r.Use(chiware.RequestID)
	r.Use(chiware.RealIP)
	r.Use(chiware.Recoverer)

	r.Use(mw.SecurityHeaders())
	r.Use(mw.ReadOnly())

	// Observability
	r.Use(mw.SetupLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware)

	NewRouterManager(
		health.NewHealthRoutesManager(logger, healthService),
		debug.NewDebugRoutesManager(cacheService),
	).RegisterRoutes(r)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		gecho.Success(w,
			gecho.WithMessage("Diffly crawler"),
			gecho.Send(),
		)
	})

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		gecho.NotFound(w,
			gecho.Send(),
		)
	})

	return r
}

// Serve runs the health server on addr until ctx is cancelled.
func Serve(ctx context.Context, logger *gecho.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting health server", gecho.Field("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
