package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/metrics"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// RouterConfig wires the HTTP surface. Status is only served when set.
type RouterConfig struct {
	Process  http.HandlerFunc
	Status   http.HandlerFunc
	Checks   map[string]HealthCheck
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewRouter builds the chi router for both binaries
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	r.Get("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/health", healthHandler(cfg.Checks, cfg.Logger))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/process", cfg.Process)
		if cfg.Status != nil {
			r.Get("/runs/{runID}", cfg.Status)
		}
	})

	return r
}

// requestLogger logs and measures every request by route pattern
func requestLogger(logger *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			m.ObserveHTTP(r.Method, route, status, elapsed)
			logger.Debug("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("elapsed", elapsed),
			)
		})
	}
}

func healthHandler(checks map[string]HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "healthy"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
				body[name] = "unhealthy"
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "healthy"
		}
		respondWithJSON(w, status, body)
	}
}
