// Package linkcheck probes external URLs for reachability.
package linkcheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const userAgent = "speclint-linkcheck/1"

// Checker issues HEAD requests, falling back to GET when a server rejects
// HEAD, and retries transient failures.
type Checker struct {
	httpClient *http.Client
	workers    int
	retries    int
	backoff    func(attempt int) time.Duration
	log        *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Checker) { ch.httpClient = c }
}

// WithRetries sets the retry budget and backoff.
func WithRetries(n int, backoff func(int) time.Duration) Option {
	return func(ch *Checker) {
		ch.retries = n
		if backoff != nil {
			ch.backoff = backoff
		}
	}
}

func New(timeout time.Duration, workers int, log *slog.Logger, opts ...Option) *Checker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if workers <= 0 {
		workers = 8
	}
	c := &Checker{
		httpClient: &http.Client{Timeout: timeout},
		workers:    workers,
		retries:    MaxRetries,
		backoff:    Backoff,
		log:        log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Check probes every URL. The result has one entry per URL; a nil error
// means reachable.
func (c *Checker) Check(ctx context.Context, urls []string) map[string]error {
	results := make(map[string]error, len(urls))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			err := c.checkWithRetry(ctx, u)
			if err != nil {
				c.log.Debug("link unreachable", "url", u, "error", err)
			}
			mu.Lock()
			results[u] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Checker) checkWithRetry(ctx context.Context, url string) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if !IsRetryable(lastErr) {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}
		lastErr = c.probe(ctx, url)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Checker) probe(ctx context.Context, url string) error {
	status, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		return err
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented || status == http.StatusForbidden {
		status, err = c.do(ctx, http.MethodGet, url)
		if err != nil {
			return err
		}
	}
	switch {
	case status < 400:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return &RetryableError{StatusCode: status}
	default:
		return fmt.Errorf("status %d", status)
	}
}

func (c *Checker) do(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

// Close releases idle connections.
func (c *Checker) Close() {
	c.httpClient.CloseIdleConnections()
}
