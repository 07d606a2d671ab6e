// Package peeringdb talks to the PeeringDB REST API and its public cache
// server.
package peeringdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/xelth-com/pdbsync/internal/logging"
	"github.com/xelth-com/pdbsync/internal/metrics"
	"github.com/xelth-com/pdbsync/internal/resource"
)

const (
	maxErrorBodySize = 64 * 1024

	defaultTimeout     = 60 * time.Second
	defaultRetryDelay  = time.Second
	maxRetryDelay      = 60 * time.Second
	defaultMaxAttempts = 10

	breakerFailures = 5
	breakerTimeout  = 30 * time.Second
)

// ErrAuthConflict is returned when both an API key and basic auth
// credentials are configured.
const ErrAuthConflict = fatalError("cannot use both API key and basic auth")

// fatalError marks configuration problems that no retry or later row can
// get past.
type fatalError string

func (e fatalError) Error() string { return string(e) }

func (fatalError) Fatal() bool { return true }

// ErrRateLimited matches responses with HTTP status 429.
const ErrRateLimited = errors.ConstError("rate limited")

var incompatibleRE = regexp.MustCompile(`client version is incompatible`)

// CompatibilityError means the server refuses this client version. Every
// further request would fail the same way.
type CompatibilityError struct {
	Message string
}

func (e *CompatibilityError) Error() string {
	return "peeringdb: " + e.Message
}

func (e *CompatibilityError) Fatal() bool { return true }

// StatusError is a non-200 answer from the API.
type StatusError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("error fetching %s: %d: %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("error fetching %s: %d", e.URL, e.StatusCode)
}

// Fatal reports whether the credentials were refused.
func (e *StatusError) Fatal() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Is lets errors.Is classify status errors: 429 matches ErrRateLimited,
// 404 matches errors.NotFound and 401/403 match errors.Unauthorized.
func (e *StatusError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return target == ErrRateLimited
	case http.StatusNotFound:
		return target == errors.NotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return target == errors.Unauthorized
	}
	return false
}

// Config holds the connection settings of a Client.
type Config struct {
	URL       string
	User      string
	Password  string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
	// RateLimit caps requests per minute; 0 disables throttling.
	RateLimit int
}

// Client performs authenticated GET requests against the API. Requests
// answered with 429 are retried with doubling delays capped at one minute.
type Client struct {
	cfg         Config
	http        *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[[]byte]
	clock       clock.Clock
	retryDelay  time.Duration
	maxAttempts int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock sets the clock used for retry delays.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithRetry sets the first retry delay and the number of attempts.
func WithRetry(delay time.Duration, attempts int) Option {
	return func(c *Client) {
		c.retryDelay = delay
		c.maxAttempts = attempts
	}
}

// NewClient creates a client for the API rooted at cfg.URL.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(float64(cfg.RateLimit) / 60)
	}

	c := &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(limit, 1),
		clock:       clock.WallClock,
		retryDelay:  defaultRetryDelay,
		maxAttempts: defaultMaxAttempts,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "peeringdb-api",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		// Only transport failures and server errors count against the
		// breaker.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < http.StatusInternalServerError
			}
			var ce *CompatibilityError
			return err == nil || errors.As(err, &ce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the API root.
func (c *Client) URL() string { return c.cfg.URL }

// List fetches GET <url>/<tag>?<params> and returns the "data" rows.
func (c *Client) List(ctx context.Context, tag string, params url.Values) ([]resource.Row, error) {
	u := c.cfg.URL + "/" + tag
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	body, err := c.get(ctx, "api", u, true)
	if err != nil {
		return nil, err
	}
	return decodeData(body)
}

// Download fetches a URL without credentials, e.g. a cache file.
func (c *Client) Download(ctx context.Context, u string) ([]byte, error) {
	return c.get(ctx, "cache", u, false)
}

type envelope struct {
	Data []resource.Row `json:"data"`
	Meta struct {
		Error string `json:"error"`
	} `json:"meta"`
}

func decodeData(body []byte) ([]resource.Row, error) {
	var env envelope
	if err := gojson.Unmarshal(body, &env); err != nil {
		return nil, errors.Annotate(err, "decoding response")
	}
	if env.Data == nil {
		env.Data = []resource.Row{}
	}
	return env.Data, nil
}

func (c *Client) newRequest(ctx context.Context, u string, auth bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if !auth {
		return req, nil
	}
	if c.cfg.APIKey != "" && c.cfg.User != "" {
		return nil, ErrAuthConflict
	}
	switch {
	case c.cfg.APIKey != "":
		req.Header.Set("Authorization", "Api-Key "+c.cfg.APIKey)
	case c.cfg.User != "":
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}
	return req, nil
}

func (c *Client) get(ctx context.Context, source, u string, auth bool) ([]byte, error) {
	req, err := c.newRequest(ctx, u, auth)
	if err != nil {
		return nil, err
	}

	var body []byte
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			b, err := c.breaker.Execute(func() ([]byte, error) {
				return c.do(req, source)
			})
			body = b
			return err
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, ErrRateLimited)
		},
		NotifyFunc: func(err error, attempt int) {
			metrics.APIRetries.Inc()
			logging.Warn().Err(err).Int("attempt", attempt).Str("url", u).Msg("Rate limited, backing off")
		},
		Attempts:    c.maxAttempts,
		Delay:       c.retryDelay,
		MaxDelay:    maxRetryDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			err = retry.LastError(err)
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) do(req *http.Request, source string) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(source, 0, time.Since(start))
		return nil, errors.Annotatef(err, "requesting %s", req.URL)
	}
	defer resp.Body.Close()
	metrics.RecordAPIRequest(source, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		return body, errors.Annotatef(err, "reading %s", req.URL)
	}

	body := readBodyForError(resp.Body)
	msg := errorMessage(body)
	if resp.StatusCode == http.StatusBadRequest && incompatibleRE.MatchString(msg) {
		return nil, &CompatibilityError{Message: msg}
	}
	if resp.StatusCode == http.StatusUnauthorized && msg != "" {
		msg = "authentication failed: " + msg
	}
	return nil, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String(), Message: msg}
}

// errorMessage extracts meta.error from an API error body, falling back to
// the raw text.
func errorMessage(body []byte) string {
	var env envelope
	if err := gojson.Unmarshal(body, &env); err == nil && env.Meta.Error != "" {
		return env.Meta.Error
	}
	return strings.TrimSpace(string(body))
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
