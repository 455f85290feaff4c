// Package fetch performs upstream GET requests with a per-attempt timeout,
// bounded retries, and classified failures.
//
// Retry policy:
//
//	timeout / network failure -> wait RetryDelay, retry
//	429                       -> wait Retry-After (or RateLimitBackoff), retry
//	other 4xx, 5xx, bad JSON  -> fail immediately
//
// Every path is bounded by the same counter: at most Retries+1 attempts.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/newsfeed/internal/metrics"
)

// maxBodyBytes bounds how much of a response is read into memory.
const maxBodyBytes = 8 << 20

// Config defines timeout and retry behavior.
type Config struct {
	Timeout          time.Duration `yaml:"timeout"`
	Retries          int           `yaml:"retries"` // 0 = default, negative = no retries
	RetryDelay       time.Duration `yaml:"retry_delay"`
	RateLimitBackoff time.Duration `yaml:"rate_limit_backoff"`
	UserAgent        string        `yaml:"user_agent"`
}

// DefaultConfig mirrors the mobile client: 12s per attempt, 2 retries,
// 300ms between transient failures, 1.2s when a 429 carries no hint.
var DefaultConfig = Config{
	Timeout:          12 * time.Second,
	Retries:          2,
	RetryDelay:       300 * time.Millisecond,
	RateLimitBackoff: 1200 * time.Millisecond,
	UserAgent:        "newsfeed/1.0",
}

// Request is a resolved GET request: the full URL plus any headers that
// affect the response.
type Request struct {
	URL    string
	Header http.Header
}

// Doer is the subset of *http.Client used by the executor.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Executor runs requests against the upstream with retry.
type Executor struct {
	cfg     Config
	client  Doer
	limiter *HostLimiter
	monitor *Monitor
	log     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor. Zero fields in cfg fall back to
// DefaultConfig; a negative Retries disables retrying.
func NewExecutor(cfg Config) *Executor {
	cfg = cfg.WithDefaults()
	return &Executor{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		monitor: NewMonitor(),
		log:     slog.Default().With("component", "fetch"),
		sleep:   sleepCtx,
	}
}

// WithDefaults fills zero fields from DefaultConfig. A negative Retries is
// kept so that repeated calls stay stable.
func (c Config) WithDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultConfig.Timeout
	}
	if c.Retries == 0 {
		c.Retries = DefaultConfig.Retries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultConfig.RetryDelay
	}
	if c.RateLimitBackoff <= 0 {
		c.RateLimitBackoff = DefaultConfig.RateLimitBackoff
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultConfig.UserAgent
	}
	return c
}

// SetClient replaces the HTTP client.
func (e *Executor) SetClient(d Doer) {
	e.client = d
}

// SetLimiter enables client-side pacing before each attempt.
func (e *Executor) SetLimiter(l *HostLimiter) {
	e.limiter = l
}

// Monitor returns the upstream health monitor fed by this executor.
func (e *Executor) Monitor() *Monitor {
	return e.monitor
}

// Config returns the effective configuration.
func (e *Executor) Config() Config {
	return e.cfg
}

// Execute performs req, retrying transient failures. On success it returns
// the raw JSON body. On failure the returned error is always an *Error.
func (e *Executor) Execute(ctx context.Context, req Request) ([]byte, error) {
	attempts := max(e.cfg.Retries, 0) + 1
	var lastErr *Error

	for attempt := 1; attempt <= attempts; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx, req.URL); err != nil {
				return nil, Classify(0, nil, nil, err)
			}
		}

		body, ferr := e.attempt(ctx, req)
		if ferr == nil {
			return body, nil
		}
		lastErr = ferr

		// The caller gave up; its cancellation wins over the attempt's failure.
		if err := ctx.Err(); err != nil {
			return nil, Classify(0, nil, nil, err)
		}

		if !ferr.Kind.Retryable() || attempt == attempts {
			break
		}

		delay := e.backoff(ferr)
		metrics.FetchRetries.WithLabelValues(ferr.Kind.String()).Inc()
		e.log.Warn("Retrying upstream request",
			"attempt", attempt,
			"max_attempts", attempts,
			"kind", ferr.Kind.String(),
			"delay", delay,
		)

		if err := e.sleep(ctx, delay); err != nil {
			return nil, Classify(0, nil, nil, err)
		}
	}

	return nil, lastErr
}

func (e *Executor) backoff(ferr *Error) time.Duration {
	if ferr.Kind == KindRateLimit {
		if ferr.RetryAfter > 0 {
			return ferr.RetryAfter
		}
		return e.cfg.RateLimitBackoff
	}
	return e.cfg.RetryDelay
}

// attempt makes exactly one round trip bounded by cfg.Timeout.
func (e *Executor) attempt(ctx context.Context, req Request) ([]byte, *Error) {
	actx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(actx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &Error{Kind: KindBadRequest, Message: "invalid request url", Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", e.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, e.fail(Classify(0, nil, nil, err), start)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, e.fail(Classify(0, nil, nil, err), start)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, e.fail(Classify(resp.StatusCode, resp.Header, body, nil), start)
	}

	if !json.Valid(body) {
		return nil, e.fail(&Error{
			Kind:    KindUnknown,
			Message: "invalid JSON response",
			Status:  resp.StatusCode,
		}, start)
	}

	latency := time.Since(start)
	e.monitor.RecordSuccess(latency)
	metrics.FetchAttempts.WithLabelValues("ok").Inc()
	metrics.FetchLatency.Observe(latency.Seconds())
	e.log.Debug("Upstream request ok", "status", resp.StatusCode, "bytes", len(body), "latency", latency)

	return body, nil
}

func (e *Executor) fail(ferr *Error, start time.Time) *Error {
	latency := time.Since(start)
	e.monitor.RecordFailure(ferr, latency)
	metrics.FetchAttempts.WithLabelValues(ferr.Kind.String()).Inc()
	metrics.FetchLatency.Observe(latency.Seconds())
	e.log.Debug("Upstream attempt failed", "kind", ferr.Kind.String(), "status", ferr.Status, "error", ferr.Message)
	return ferr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
