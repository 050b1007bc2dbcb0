// Package server exposes batch runs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/entrhq/docfetch/pkg/batch"
	"github.com/entrhq/docfetch/pkg/config"
	"github.com/entrhq/docfetch/pkg/logging"
	"github.com/entrhq/docfetch/pkg/metrics"
)

const (
	maxBodyBytes   = 1 << 20
	msgInvalidData = "The 'data' property is required and must be a non-empty array."
)

// Runner executes one batch. *batch.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, identifiers []string) (*batch.Report, error)
}

// Server routes HTTP requests to the batch runner.
type Server struct {
	runner   Runner
	cfg      config.ServerConfig
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	slots    *semaphore.Weighted
	logger   *zap.Logger

	// lifetime bounds running batches; it ends when the server shuts down
	lifetime context.Context
}

// New creates a server. m and gatherer may be nil, which disables HTTP metrics
// and serves /metrics from the default registry.
func New(runner Runner, cfg config.ServerConfig, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	limit := int64(cfg.MaxConcurrentBatches)
	if limit <= 0 {
		limit = 1
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		runner:   runner,
		cfg:      cfg,
		metrics:  m,
		gatherer: gatherer,
		slots:    semaphore.NewWeighted(limit),
		logger:   logger,
		lifetime: context.Background(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
	}

	var static http.Handler
	if s.cfg.StaticDir != "" {
		static = http.FileServer(http.Dir(s.cfg.StaticDir))
	}

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		if static != nil && s.hasIndex() {
			static.ServeHTTP(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "docfetch ok\n")
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/notificaciones", s.handleBatch)
		r.Post("/notifications", s.handleBatch)
	})

	if static != nil {
		r.NotFound(static.ServeHTTP)
	}

	return r
}

// hasIndex reports whether the static directory carries an index page for /.
func (s *Server) hasIndex() bool {
	info, err := os.Stat(filepath.Join(s.cfg.StaticDir, "index.html"))
	return err == nil && !info.IsDir()
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
// Batches in flight see the shutdown as a cancellation at their next item boundary.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lifetime, stop := context.WithCancel(context.Background())
	defer stop()
	s.lifetime = lifetime

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("received shutdown signal")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

type batchResponse struct {
	Message      string   `json:"message"`
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	FailedItems  []string `json:"failedItems"`
	BatchID      string   `json:"batchId"`
	Aborted      bool     `json:"aborted,omitempty"`
	Error        string   `json:"error,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Message: msgInvalidData,
			Error:   err.Error(),
		})
		return
	}

	ids, err := batch.ParseRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Message: msgInvalidData,
			Error:   err.Error(),
		})
		return
	}

	if !s.slots.TryAcquire(1) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Message: "Another batch is already running. Try again later.",
		})
		return
	}
	defer s.slots.Release(1)

	// A dropped client does not stop the batch; a server shutdown does.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	stop := context.AfterFunc(s.lifetime, cancel)
	defer stop()

	start := time.Now()
	report, err := s.runner.Run(ctx, ids)
	logger.Info("batch request finished",
		zap.Int("items", len(ids)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)

	status, resp := respond(report, err)
	writeJSON(w, status, resp)
}

func respond(report *batch.Report, err error) (int, any) {
	var (
		recErr  *batch.RecoveryError
		sessErr *batch.SessionError
	)

	switch {
	case err == nil:
		return http.StatusOK, fromReport(report)
	case errors.Is(err, batch.ErrInvalidInput):
		return http.StatusBadRequest, errorResponse{
			Message: msgInvalidData,
			Error:   err.Error(),
		}
	case report != nil && (errors.As(err, &recErr) || report.Aborted):
		resp := fromReport(report)
		resp.Aborted = true
		resp.Error = err.Error()
		return http.StatusBadGateway, resp
	case errors.As(err, &sessErr):
		return http.StatusBadGateway, errorResponse{
			Message: "Could not open a session on the portal.",
			Error:   err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorResponse{
			Message: "A critical internal error occurred while generating the documents.",
			Error:   err.Error(),
		}
	}
}

func fromReport(r *batch.Report) batchResponse {
	return batchResponse{
		Message:      r.Message,
		SuccessCount: r.SuccessCount,
		FailureCount: r.FailureCount,
		FailedItems:  r.FailedItems,
		BatchID:      r.BatchID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
