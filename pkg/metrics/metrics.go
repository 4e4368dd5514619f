// Package metrics exposes the crawler's Prometheus metrics over HTTP.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, crawler, store) and registered via promauto on the default
// registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the crawler.
var Registry = prometheus.DefaultRegisterer

const shutdownTimeout = 5 * time.Second

// Handler returns the mux serving /metrics and /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	return mux
}

// Server serves metrics while a crawl runs.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// Listen binds addr (e.g. ":9090"). Use ":0" for an ephemeral port.
func Listen(addr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Server{
		server: &http.Server{
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks until ctx is done, then shuts the server down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.Addr()).Msg("Metrics server listening")
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - seller_api_requests_total{endpoint, status} (Counter)
//   - seller_api_request_duration_seconds{endpoint} (Histogram)
//   - seller_api_errors_total{class} (Counter): client, server, rate_limit, network, parse
//   - seller_api_retries_total{error_class} (Counter)
//   - seller_api_retry_backoff_seconds{error_class} (Histogram)
//   - seller_api_retry_exhausted_total{error_class} (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - seller_api_cooldowns_total{client_id} (Counter)
//   - seller_api_cooldown_wait_seconds (Histogram)
//   - seller_api_limiter_wait_seconds (Histogram)
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total, catalog_cache_misses_total (Counter)
//   - catalog_cache_size_bytes (Counter): bytes written
//   - catalog_cache_errors_total{operation} (Counter)
//
// Crawl Metrics (internal/crawler):
//   - crawler_units_total{kind, status} (Counter)
//   - crawler_records_written_total{table} (Counter)
//   - crawler_dictionary_pages_total (Counter)
//   - crawler_phase_duration_seconds{phase} (Histogram)
//   - crawler_shards_active{phase} (Gauge)
//
// Store Metrics (internal/store):
//   - store_rows_copied_total{table} (Counter)
//   - store_rows_deduplicated_total{table} (Counter)
//   - store_operation_duration_seconds{operation} (Histogram)
//
// Example Prometheus Queries:
//
//   # Failed units by kind
//   sum by (kind) (rate(crawler_units_total{status="failed"}[5m]))
//
//   # Throttling per credential
//   rate(seller_api_cooldowns_total[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(seller_api_request_duration_seconds_bucket[5m]))
