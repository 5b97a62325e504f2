// Package crawler discovers the outgoing links of a set of pages with a
// single HTTP fetch each. It never follows the links it finds.
package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/urlnorm"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/resilience"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Crawler fetches pages politely: a shared token bucket spaces out
// requests and at most Workers fetches run at once.
type Crawler struct {
	client    *http.Client
	cfg       config.CrawlerConfig
	limiter   *rate.Limiter
	logger    *slog.Logger
	onOutcome func(outcome string)
}

// Option customises a Crawler.
type Option func(*Crawler)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cr *Crawler) { cr.client = c }
}

// WithOutcomeHook registers a callback invoked with "ok" or "failed" after
// every fetch.
func WithOutcomeHook(fn func(outcome string)) Option {
	return func(cr *Crawler) { cr.onOutcome = fn }
}

// New creates a Crawler. Zero config values fall back to one worker, no
// rate limit, a 10s timeout and a 5 MiB body cap.
func New(cfg config.CrawlerConfig, opts ...Option) *Crawler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 << 20
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c := &Crawler{
		client:  &http.Client{},
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  slog.Default().With("component", "crawler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect fetches every URL and returns once all fetches have finished.
// Individual failures are recorded in the returned Discovery values.
func (c *Crawler) Collect(ctx context.Context, urls []string) map[string]graph.Discovery {
	results := make(map[string]graph.Discovery, len(urls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, u := range urls {
		g.Go(func() error {
			d := c.Fetch(gctx, u)
			mu.Lock()
			results[u] = d
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Fetch retrieves one page and extracts its links. Any failure (timeout,
// network error, non-2xx status, oversized or unparseable body) is
// returned as Discovery.Err.
func (c *Crawler) Fetch(ctx context.Context, pageURL string) graph.Discovery {
	start := time.Now()
	var links []string
	err := c.limiter.Wait(ctx)
	if err == nil {
		err = resilience.WithTimeout(ctx, c.cfg.Timeout, "fetch "+pageURL, func(ctx context.Context) error {
			var ferr error
			links, ferr = c.fetch(ctx, pageURL)
			return ferr
		})
	}

	outcome := "ok"
	if err != nil {
		outcome = "failed"
		err = fmt.Errorf("%w: %s: %v", apperrors.ErrCrawlFailed, pageURL, err)
		c.logger.Warn("fetch failed", "url", pageURL, "error", err, "elapsed", time.Since(start))
	} else {
		c.logger.Debug("fetched", "url", pageURL, "links", len(links), "elapsed", time.Since(start))
	}
	if c.onOutcome != nil {
		c.onOutcome(outcome)
	}
	if err != nil {
		return graph.Discovery{Err: err}
	}
	return graph.Discovery{Links: links}
}

func (c *Crawler) fetch(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html, text/markdown;q=0.9, */*;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", c.cfg.MaxBodyBytes)
	}

	base := resp.Request.URL
	if base == nil {
		if base, err = url.Parse(pageURL); err != nil {
			return nil, err
		}
	}

	var links []string
	if isMarkdown(resp.Header.Get("Content-Type"), base) {
		links = extractMarkdown(body, base)
	} else {
		links, err = extractHTML(body, base)
		if err != nil {
			return nil, fmt.Errorf("parsing html: %w", err)
		}
	}
	return urlnorm.Dedupe(links), nil
}
