// Package external is the boundary between the advisor and vendor services:
// the remote yield-model endpoint and the Gemini text model. Outbound HTTP
// flows through BaseClient, which applies circuit breaking, bounded retries
// with backoff, request-ID propagation and error mapping.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"agroia/internal/types"
)

// RetryPolicy bounds the retries of a BaseClient.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy suits short synchronous calls made while a user waits.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    200 * time.Millisecond,
		MaxWait:    2 * time.Second,
	}
}

// BaseClientConfig describes one upstream.
type BaseClientConfig struct {
	// Name identifies the circuit breaker in logs and errors.
	Name      string
	UserAgent string
	Retry     RetryPolicy
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Zero means 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open. Zero means 30s.
	OpenTimeout time.Duration
	// UpstreamCode is the error code reported when the upstream fails.
	UpstreamCode types.ErrorCode
}

// BaseClient wraps an *http.Client with a circuit breaker and retry loop.
type BaseClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	cfg     BaseClientConfig
	sleep   func(ctx context.Context, d time.Duration) error
}

// BaseClientOption customises a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleep replaces the wait between retries. Tests pass a no-op.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) BaseClientOption {
	return func(c *BaseClient) { c.sleep = fn }
}

// WithBreaker shares an existing circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) { c.breaker = cb }
}

// NewBaseClient creates a BaseClient for one upstream.
func NewBaseClient(httpClient *http.Client, cfg BaseClientConfig, opts ...BaseClientOption) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.UpstreamCode == "" {
		cfg.UpstreamCode = types.ErrCodeUpstreamUnavailable
	}

	threshold := cfg.FailureThreshold
	c := &BaseClient{
		client: httpClient,
		cfg:    cfg,
		sleep:  sleepContext,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BreakerState reports the current circuit breaker state.
func (c *BaseClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Do sends req, retrying on network errors, 429 and 5xx. Any other response is
// returned as-is and the caller must close its body. Exhausted retries, an
// open breaker and context cancellation are returned as *types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if id := types.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	if id := types.GetRunID(ctx); id != "" {
		req.Header.Set("X-Run-ID", id)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "read request body", err)
		}
	}

	var (
		lastStatus int
		lastErr    error
	)
	attempts := 1 + c.cfg.Retry.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("%s returned %d", c.cfg.Name, r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err
		lastStatus = 0
		var retryAfter string
		if resp != nil {
			lastStatus = resp.StatusCode
			retryAfter = resp.Header.Get("Retry-After")
			resp.Body.Close()
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < attempts-1 {
			if err := c.sleep(ctx, c.backoff(attempt, retryAfter)); err != nil {
				lastErr = err
				break
			}
		}
	}

	return nil, c.mapError(ctx, lastStatus, lastErr)
}

// backoff honours a numeric Retry-After header, otherwise uses exponential
// backoff with jitter clamped to [MinWait, MaxWait].
func (c *BaseClient) backoff(attempt int, retryAfter string) time.Duration {
	p := c.cfg.Retry
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		return min(time.Duration(secs)*time.Second, p.MaxWait)
	}
	ceiling := math.Min(float64(p.MinWait)*math.Pow(2, float64(attempt)), float64(p.MaxWait))
	floor := float64(p.MinWait)
	if ceiling <= floor {
		return p.MinWait
	}
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}

func (c *BaseClient) mapError(ctx context.Context, status int, err error) *types.AppError {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s circuit breaker is open", c.cfg.Name), err)
	case status == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s rate limit exceeded", c.cfg.Name), err)
	case ctx.Err() != nil:
		return types.NewAppError(c.cfg.UpstreamCode,
			fmt.Sprintf("%s call cancelled", c.cfg.Name), ctx.Err())
	case status >= 500:
		return types.NewAppError(c.cfg.UpstreamCode,
			fmt.Sprintf("%s returned %d after retries", c.cfg.Name, status), err)
	default:
		return types.NewAppError(c.cfg.UpstreamCode,
			fmt.Sprintf("%s request failed", c.cfg.Name), err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
