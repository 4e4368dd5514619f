// Package client provides the seller API HTTP client with per-credential rate
// limiting, response caching, retries and error classification.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ozon-catalog-crawler/pkg/cache"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/catalog"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/logging"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for seller API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seller_api_requests_total",
		Help: "Total seller API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seller_api_request_duration_seconds",
		Help:    "Seller API call duration in seconds by endpoint, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seller_api_errors_total",
		Help: "Total seller API errors by class",
	}, []string{"class"})
)

// Seller API endpoints.
const (
	EndpointCategoryTree       = "/v2/category/tree"
	EndpointCategoryAttributes = "/v3/category/attribute"
	EndpointDictionaryValues   = "/v2/category/attribute/values"
)

// DefaultBaseURL is the production seller API.
const DefaultBaseURL = "https://api-seller.ozon.ru"

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 64 << 20

// maxErrorBody bounds how much of an error body is kept in an APIError.
const maxErrorBody = 512

// Client is the seller API client. It is safe for concurrent use by many
// credentials.
type Client struct {
	httpClient *http.Client
	baseURL    string
	language   string
	retry      RetryPolicy
	tracker    *ratelimit.Tracker
	cache      *cache.Manager
	cacheTTL   time.Duration
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the seller API (REQUIRED).
	BaseURL string

	// Language requested for titles and values.
	Language string

	// Timeout of a single HTTP attempt.
	Timeout time.Duration

	// Retry policy per error class. Nil means DefaultRetryPolicy.
	Retry RetryPolicy

	// Tracker paces requests per credential. Nil means a local tracker with defaults.
	Tracker *ratelimit.Tracker

	// Cache stores category metadata responses. Nil disables caching.
	Cache *cache.Manager

	// CacheTTL is how long cached responses stay valid.
	CacheTTL time.Duration

	// HTTPClient overrides the HTTP client (Timeout is ignored when set).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Language: "RU",
		Timeout:  30 * time.Second,
		Retry:    DefaultRetryPolicy(),
		CacheTTL: 6 * time.Hour,
	}
}

// New creates a new seller API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	if cfg.Cache != nil && cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("cache_ttl must be > 0 when caching is enabled (got %s)", cfg.CacheTTL)
	}

	logger := logging.NewLogger("seller-api-client")

	if cfg.Language == "" {
		cfg.Language = "RU"
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = ratelimit.NewTracker(nil, ratelimit.DefaultRequestsPerSecond, ratelimit.DefaultBurst, logger)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		language:   cfg.Language,
		retry:      cfg.Retry,
		tracker:    cfg.Tracker,
		cache:      cfg.Cache,
		cacheTTL:   cfg.CacheTTL,
		logger:     logger,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// fetch posts body to endpoint and decodes the response. When key is non-nil
// and caching is enabled, a cached body is used if present and a freshly
// decoded body is stored.
func (c *Client) fetch(ctx context.Context, cred catalog.Credential, endpoint string, body any, key *cache.CacheKey, decode func([]byte) error) error {
	useCache := key != nil && c.cache != nil

	if useCache {
		entry, err := c.cache.Get(ctx, *key)
		switch {
		case err == nil:
			if decodeErr := decode(entry.Data); decodeErr == nil {
				c.logger.Debug().Str("endpoint", endpoint).Str("key", key.String()).Msg("Cache hit")
				return nil
			}
			c.logger.Warn().Str("endpoint", endpoint).Msg("Cached response undecodable, refetching")
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	data, err := c.post(ctx, cred, endpoint, body)
	if err != nil {
		return err
	}

	if err := decode(data); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassParse)).Inc()
		return &APIError{
			Endpoint:   endpoint,
			StatusCode: http.StatusOK,
			ErrorClass: ErrorClassParse,
			Message:    err.Error(),
			Err:        ErrParse,
		}
	}

	if useCache {
		if err := c.cache.Set(ctx, *key, cache.NewEntry(data, c.cacheTTL)); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		}
	}

	return nil
}

// post sends body to endpoint with retries and returns the 2xx response body.
func (c *Client) post(ctx context.Context, cred catalog.Credential, endpoint string, body any) ([]byte, error) {
	payload, err := marshalRequest(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	logger := logging.WithCredential(c.logger, cred.ClientID)

	var data []byte
	err = retryWithBackoff(ctx, c.retry, logger, func() error {
		var attemptErr error
		data, attemptErr = c.attempt(ctx, cred, endpoint, payload, logger)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// attempt performs one HTTP round trip.
func (c *Client) attempt(ctx context.Context, cred catalog.Credential, endpoint string, payload []byte, logger zerolog.Logger) ([]byte, error) {
	if err := c.tracker.Wait(ctx, cred.ClientID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Client-Id", cred.ClientID)
	req.Header.Set("Api-Key", cred.APIKey)

	logger.Debug().Str("endpoint", endpoint).Msg("Executing seller API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{
			Endpoint:   endpoint,
			ErrorClass: ErrorClassNetwork,
			Message:    err.Error(),
			Err:        ErrConnection,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body: " + err.Error(),
			Err:        ErrConnection,
		}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	errClass := classifyStatus(resp.StatusCode)
	errorsTotal.WithLabelValues(string(errClass)).Inc()

	logger.Warn().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Str("error_class", string(errClass)).
		Msg("Seller API request error")

	if errClass == ErrorClassRateLimit {
		if err := c.tracker.Cooldown(ctx, cred.ClientID, retryAfter(resp.Header)); err != nil {
			logger.Warn().Err(err).Msg("Failed to record cooldown")
		}
	}

	return nil, &APIError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		ErrorClass: errClass,
		Message:    truncate(string(body), maxErrorBody),
		Err:        ErrBadResponse,
	}
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
// It returns 0 when the header is absent or unusable.
func retryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
