package pubg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"skirmish/internal/credentials"
	"skirmish/internal/metrics"
)

// Client wraps the game's HTTP API. Every API request leases a credential
// from the pool for exactly one dispatch; telemetry CDN downloads bypass the
// pool because the CDN is unauthenticated and unmetered.
type Client struct {
	httpClient      *http.Client
	telemetryClient *http.Client
	baseURL         string
	platform        string
	pool            *credentials.Pool
	maxRetries      int
}

// Options tune a client beyond its defaults.
type Options struct {
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	MaxRetries      int
}

// New creates an API client bound to one credential pool.
func New(baseURL, platform string, pool *credentials.Pool, opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 120 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	log.Info().
		Str("base_url", baseURL).
		Str("platform", platform).
		Str("pool", pool.Name()).
		Int("pool_size", pool.Size()).
		Int("max_retries", opts.MaxRetries).
		Msg("Initializing API client")

	return &Client{
		httpClient:      &http.Client{Timeout: opts.RequestTimeout},
		telemetryClient: &http.Client{Timeout: opts.DownloadTimeout},
		baseURL:         baseURL,
		platform:        platform,
		pool:            pool,
		maxRetries:      opts.MaxRetries,
	}
}

// Platform returns the shard the client queries.
func (c *Client) Platform() string { return c.platform }

// request performs one authenticated GET with retries. Each attempt leases
// its own credential; a 429 pauses that credential and the next attempt
// rotates to another key.
func (c *Client) request(ctx context.Context, endpoint string) ([]byte, error) {
	requestID := fmt.Sprintf("req_%d", time.Now().UnixNano())
	url := c.baseURL + endpoint

	var lastErr *APIError
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			log.Debug().
				Str("request_id", requestID).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying API request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, apiErr := c.dispatch(ctx, requestID, url)
		if apiErr == nil {
			return body, nil
		}
		lastErr = apiErr

		// Not-found and malformed responses will not improve on retry.
		if apiErr.Kind == NotFound || apiErr.Kind == MalformedResponse {
			break
		}
	}

	log.Error().
		Str("request_id", requestID).
		Str("endpoint", endpoint).
		Err(lastErr).
		Msg("API request failed after retries")
	return nil, lastErr
}

// dispatch leases a credential, sends one request, and records the outcome.
func (c *Client) dispatch(ctx context.Context, requestID, url string) ([]byte, *APIError) {
	waitStart := time.Now()
	cred, err := c.pool.Lease(ctx)
	if err != nil {
		return nil, &APIError{Kind: TransportError, Message: fmt.Sprintf("credential lease: %v", err)}
	}
	waited := time.Since(waitStart)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &APIError{Kind: TransportError, Message: fmt.Sprintf("creating request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+cred.Secret())
	req.Header.Set("Accept", "application/vnd.api+json")

	execStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(c.pool.Name(), "transport").Inc()
		return nil, &APIError{Kind: TransportError, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequests.WithLabelValues(c.pool.Name(), "transport").Inc()
		return nil, &APIError{Kind: TransportError, StatusCode: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		if apiErr.Kind == Throttled {
			c.pool.RecordThrottled(cred)
		}
		metrics.APIRequests.WithLabelValues(c.pool.Name(), fmt.Sprintf("%dxx", resp.StatusCode/100)).Inc()
		log.Warn().
			Str("request_id", requestID).
			Int("status_code", resp.StatusCode).
			Str("kind", string(apiErr.Kind)).
			Msg("API returned error response")
		return nil, apiErr
	}

	metrics.APIRequests.WithLabelValues(c.pool.Name(), "2xx").Inc()
	log.Debug().
		Str("request_id", requestID).
		Int("status_code", resp.StatusCode).
		Int("response_size", len(respBody)).
		Dur("lease_wait", waited).
		Dur("exec_duration", time.Since(execStart)).
		Msg("API request completed")
	return respBody, nil
}
