// Package httpds fetches datasets over HTTP, so a listing export published on
// a web server can be loaded the same way as a local file.
//
// A fetch is a single GET. Transport errors, 408, 429 and 5xx responses are
// retried with exponential backoff (or the server's Retry-After, when it asks
// for less than the cap); any other non-2xx status fails at once.
package httpds

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Config configures the dataset client. Zero values get defaults: 30s
// timeout, no retries, 200ms initial backoff, 5s backoff cap.
type Config struct {
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first one.
	MaxRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// UserAgent is sent with every request when set.
	UserAgent string

	// Transport replaces the default transport (tests).
	Transport http.RoundTripper
}

// Client downloads datasets with retries.
type Client struct {
	hc        *http.Client
	retries   int
	initial   time.Duration
	max       time.Duration
	userAgent string
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	rt := cfg.Transport
	if rt == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec // opt-in per job
		rt = tr
	}
	return &Client{
		hc:        &http.Client{Timeout: cfg.Timeout, Transport: rt},
		retries:   cfg.MaxRetries,
		initial:   cfg.InitialBackoff,
		max:       cfg.MaxBackoff,
		userAgent: cfg.UserAgent,
	}
}

// StatusError is a final non-2xx answer for a dataset URL.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpds: get %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Fetch GETs url and returns the body of the first 2xx response. The caller
// closes it.
func (c *Client) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if url == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}
	var lastErr error
	for attempt := 0; ; attempt++ {
		body, wait, err := c.try(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if wait < 0 || attempt >= c.retries {
			return nil, lastErr
		}
		if wait == 0 {
			wait = c.backoff(attempt)
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// try performs one GET. A negative wait means the error is final; zero means
// retry after the regular backoff.
func (c *Client) try(ctx context.Context, url string) (io.ReadCloser, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return nil, -1, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("httpds: build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, -1, ctx.Err()
		}
		return nil, 0, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp.Body, 0, nil
	}
	_ = resp.Body.Close()

	serr := &StatusError{URL: url, Code: resp.StatusCode}
	if !retryable(resp.StatusCode) {
		return nil, -1, serr
	}
	return nil, c.retryAfter(resp.Header.Get("Retry-After")), serr
}

func retryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500 && code <= 599
}

// backoff is initial * 2^attempt, capped.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.initial
	for i := 0; i < attempt && d < c.max; i++ {
		d *= 2
	}
	if d > c.max {
		return c.max
	}
	return d
}

// retryAfter honours a delay-seconds Retry-After below the backoff cap.
// HTTP-date values and larger delays fall back to the regular backoff.
func (c *Client) retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > c.max {
		return 0
	}
	return d
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
