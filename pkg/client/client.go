// Package client provides the authenticated Drata public API client with
// rate limit tracking, 429 retry and multipart upload.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/drata-client/pkg/ratelimit"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the Drata public API host.
const DefaultBaseURL = "https://public-api.drata.com"

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "drata-client/1.0"

// apiPrefix is inserted between the base URL and every request path.
const apiPrefix = "/public"

// Prometheus metrics for Drata client operations.
var (
	drataRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drata_requests_total",
		Help: "Total Drata API requests by method and status",
	}, []string{"method", "status"})

	drataRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "drata_request_duration_seconds",
		Help:    "Drata API request duration in seconds by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	drataErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drata_errors_total",
		Help: "Total Drata API errors by class",
	}, []string{"class"})
)

// Request describes one API call. Body and Query are omitted from the wire
// when they are empty.
type Request struct {
	Method string
	Path   string
	Body   map[string]any
	Query  map[string]any
}

// Item is an opaque Drata entity as decoded from JSON.
type Item = map[string]any

// Requester performs a single API request.
type Requester interface {
	Do(ctx context.Context, req Request) (any, error)
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, req Request) (any, error)

// Do calls f.
func (f RequesterFunc) Do(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Client is the Drata public API client.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	config      Config
	baseURL     string
	logger      zerolog.Logger

	// sleep waits between retry attempts.
	sleep func(ctx context.Context, d time.Duration) error
}

// Config holds the client configuration.
type Config struct {
	// APIKey is the Drata API key sent as a bearer token (REQUIRED).
	APIKey string

	// BaseURL of the Drata API. Defaults to DefaultBaseURL.
	BaseURL string

	// UserAgent header. Defaults to DefaultUserAgent.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// MaxRetries for HTTP 429 responses used by Client.Retrying.
	MaxRetries int

	// RateLimit caps outgoing requests per second. 0 disables the local limiter.
	RateLimit float64
	Burst     int

	// MaxResetWait lets a request wait up to this long for an exhausted rate
	// limit window to reset before it is sent. 0 sends it right away.
	MaxResetWait time.Duration
}

// DefaultConfig returns a default configuration for apiKey.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:     apiKey,
		BaseURL:    DefaultBaseURL,
		UserAgent:  DefaultUserAgent,
		Timeout:    30 * time.Second,
		MaxRetries: DefaultMaxRetries,
		RateLimit:  0,
		Burst:      1,
	}
}

// New creates a new Drata client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base_url must be an absolute http(s) URL (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}

	if cfg.MaxResetWait < 0 {
		return nil, fmt.Errorf("max_reset_wait must be >= 0 (got %s)", cfg.MaxResetWait)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:  cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  log.With().Str("component", "drata-client").Logger(),
		sleep:   sleepContext,
	}

	rlCfg := ratelimit.DefaultConfig()
	rlCfg.RequestsPerSecond = cfg.RateLimit
	rlCfg.Burst = cfg.Burst
	rlCfg.MaxResetWait = cfg.MaxResetWait
	rlCfg.Sleep = func(ctx context.Context, d time.Duration) error {
		return c.sleep(ctx, d)
	}
	c.rateLimiter = ratelimit.NewTracker(rlCfg, log.With().Str("component", "ratelimit").Logger())

	return c, nil
}

// Do performs one request against the Drata public API and returns the
// decoded JSON response. It does not retry.
func (c *Client) Do(ctx context.Context, r Request) (any, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(r.Body) > 0 {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL(r.Path, r.Query), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query map[string]any) (any, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// TestCredentials verifies the API key with a minimal users request.
func (c *Client) TestCredentials(ctx context.Context) error {
	_, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/users",
		Query:  map[string]any{"limit": 1},
	})
	if err != nil {
		return fmt.Errorf("test credentials: %w", err)
	}
	return nil
}

// send executes req with auth headers, the rate limit gate and error mapping.
func (c *Client) send(req *http.Request) (any, error) {
	ctx := req.Context()
	method := req.Method
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		drataRequestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Str("request_id", requestID).
		Msg("Executing Drata request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		drataErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		drataRequestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	if err := c.rateLimiter.UpdateFromHeaders(resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		drataErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		drataRequestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	drataRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newStatusError(resp.StatusCode, data)
		drataErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()

		c.logger.Warn().
			Str("method", method).
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.ErrorClass)).
			Str("request_id", requestID).
			Msg("Drata request error")

		return nil, apiErr
	}

	return decodeBody(data)
}

// decodeBody decodes a 2xx JSON body. Empty bodies decode to an empty Item.
func decodeBody(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Item{}, nil
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return out, nil
}

// endpointURL builds {baseURL}/public{path}?{query}.
func (c *Client) endpointURL(path string, query map[string]any) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		if encoded := encodeQuery(query); encoded != "" {
			u += "?" + encoded
		}
	}
	return u
}

// encodeQuery renders scalars with formatValue and slices as repeated keys.
func encodeQuery(query map[string]any) string {
	values := url.Values{}
	for key, v := range query {
		switch vv := v.(type) {
		case nil:
		case []string:
			for _, s := range vv {
				values.Add(key, s)
			}
		case []any:
			for _, e := range vv {
				values.Add(key, formatValue(e))
			}
		default:
			values.Set(key, formatValue(v))
		}
	}
	return values.Encode()
}

// formatValue renders a parameter value as a query or form string.
func formatValue(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(vv), 'f', -1, 32)
	case time.Time:
		return vv.UTC().Format("2006-01-02T15:04:05.000Z")
	case map[string]any, []any:
		data, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprint(vv)
		}
		return string(data)
	default:
		return fmt.Sprint(vv)
	}
}

// BaseURL returns the configured API base URL without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RateLimitState returns the last observed rate limit window.
func (c *Client) RateLimitState() ratelimit.RateLimitState {
	return c.rateLimiter.GetState()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
