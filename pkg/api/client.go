// Package api provides the core back-office HTTP client with error
// classification, retries, and tolerant response decoding.
//
// The upstream REST API only answers single-field, single-page queries; this
// client is the thin primitive everything else (sweeps, client-side search,
// aggregation, mutation chains) is built on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fiscaliza/backoffice-client/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for back-office client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_requests_total",
		Help: "Total back-office requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_request_duration_seconds",
		Help:    "Back-office request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_errors_total",
		Help: "Total back-office errors by class",
	}, []string{"class"})
)

// Client is the back-office HTTP client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the back-office API, without trailing slash.
	BaseURL string

	// UserAgent sent with every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// Retry configuration for server/network failures.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "backoffice-client/1.0",
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new back-office client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "backoffice-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// ListOptions narrows a collection listing.
type ListOptions struct {
	// Type filters the listing server-side (?type=T). Optional.
	Type string

	// ItemsKey names the array inside the response data. When empty the
	// first array-valued key is used.
	ItemsKey string
}

// ListPage fetches a single page of a collection.
func (c *Client) ListPage(ctx context.Context, collection string, page int, opts ListOptions) (*Page, error) {
	if page < 1 {
		page = 1
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if opts.Type != "" {
		query.Set("type", opts.Type)
	}

	body, err := c.Do(ctx, http.MethodGet, "/"+strings.Trim(collection, "/"), query, nil)
	if err != nil {
		return nil, err
	}

	return decodePage(body, opts.ItemsKey)
}

// SearchPage delegates a narrow search to the server-side search route.
// Used below the client-side search threshold, where a full sweep is not
// worth its cost.
func (c *Client) SearchPage(ctx context.Context, collection, searchQuery string, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	query := url.Values{}
	query.Set("query", searchQuery)
	query.Set("page", strconv.Itoa(page))

	body, err := c.Do(ctx, http.MethodGet, "/"+strings.Trim(collection, "/")+"/search", query, nil)
	if err != nil {
		return nil, err
	}

	return decodePage(body, "")
}

// PageFetcher adapts a collection listing into the collector's fetch
// contract for exhaustive sweeps.
func (c *Client) PageFetcher(collection string, opts ListOptions) pagination.FetchFunc[Record] {
	return func(ctx context.Context, page int) ([]Record, pagination.PageInfo, error) {
		p, err := c.ListPage(ctx, collection, page, opts)
		if err != nil {
			return nil, pagination.PageInfo{}, err
		}
		return p.Items, p.Info, nil
	}
}

// Do performs one HTTP request against the back office and returns the raw
// response body. Server and network failures are retried with backoff;
// any remaining failure is returned as an *APIError carrying its class.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	endpoint := path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	err := retryWithBackoff(ctx, c.config.Retry, func() error {
		var attemptErr error
		body, attemptErr = c.attempt(ctx, method, path, query, payload)
		return attemptErr
	}, classify)

	if err != nil {
		return nil, err
	}
	return body, nil
}

// attempt executes a single HTTP round trip.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	endpoint := path

	reqURL := c.config.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Executing back-office request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := ClassifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Back-office request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    upstreamMessage(data, resp.Status),
		}
	}

	return data, nil
}

// classify maps an error to its class for retry decisions.
func classify(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}

// upstreamMessage extracts the most specific backend message available,
// falling back to the HTTP status line.
func upstreamMessage(body []byte, fallback string) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	return fallback
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
