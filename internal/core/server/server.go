package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/health"
	middleware "github.com/mohammed-shakir/wfs-extractor/internal/core/middleware"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/router"
)

type Options struct {
	Addr    string
	Metrics http.Handler
	// Checks back /readyz
	Checks []health.Check
	// empty allows any origin
	CORSOrigins []string
	// extractions run synchronously, so the write timeout bounds a whole job
	WriteTimeout time.Duration
}

// Handler builds the routes of the extraction API.
func Handler(logger *slog.Logger, opts Options, svc router.ExtractionService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestContext(logger))
	r.Use(middleware.CORS(opts.CORSOrigins))

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(2*time.Second, opts.Checks...))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Group(router.Routes(logger, svc))
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, logger *slog.Logger, opts Options, svc router.ExtractionService) error {
	wt := opts.WriteTimeout
	if wt <= 0 {
		wt = 10 * time.Minute
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           Handler(logger, opts, svc),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      wt,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", opts.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
