// Package ranking turns a ranking request into a response: it validates
// the input, obtains the link graph (by crawling or from a supplied
// matrix), runs PageRank, HITS and the metrics engine, and packages the
// results in rank order.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/diag"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/hits"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/netmetrics"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/urlnorm"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/tracing"
	"github.com/google/uuid"
)

// Error messages shown to API callers.
const (
	MsgNoData      = "No data provided"
	MsgNoURLs      = "No URLs provided"
	MsgNoValidURLs = "No valid URLs provided"
)

// Crawler discovers the outgoing links of every URL. All fetches must have
// finished when Collect returns.
type Crawler interface {
	Collect(ctx context.Context, urls []string) map[string]graph.Discovery
}

// ResponseCache memoizes matrix-mode responses.
type ResponseCache interface {
	GetOrCompute(ctx context.Context, key string, compute func() (*Response, error)) (*Response, bool, error)
}

// Sink receives a summary of every successful run. Implementations must
// not block; failures are theirs to log.
type Sink interface {
	Record(ctx context.Context, s Summary)
}

// Option configures a Service.
type Option func(*Service)

// WithCrawler sets the link collector used for crawl-mode requests.
func WithCrawler(c Crawler) Option {
	return func(s *Service) { s.crawler = c }
}

// WithCache enables response caching for matrix-mode requests.
func WithCache(c ResponseCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithSinks appends sinks that receive a summary of every completed run.
func WithSinks(sinks ...Sink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithMetrics records request and graph metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithReporter adds a reporter that receives engine events alongside the
// request-scoped log reporter.
func WithReporter(r diag.Reporter) Option {
	return func(s *Service) { s.reporter = r }
}

// Service runs ranking requests. It is safe for concurrent use; every
// request owns its graph and vectors.
type Service struct {
	cfg      config.RankConfig
	crawler  Crawler
	cache    ResponseCache
	sinks    []Sink
	metrics  *metrics.Metrics
	reporter diag.Reporter
	logger   *slog.Logger
}

// NewService creates a Service with the given defaults.
func NewService(cfg config.RankConfig, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		logger: slog.Default().With("component", "ranking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type params struct {
	rank rank.Params
	hits int
}

// Rank validates req, computes rankings and metrics, and notifies the
// sinks. Caller mistakes are returned as ErrInvalidInput; anything else is
// wrapped in ErrInternal.
func (s *Service) Rank(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx, root := tracing.StartSpan(ctx, "rank", runID)
	log := logger.FromContext(ctx).With("component", "ranking", "run_id", runID)

	mode := ModeCrawl
	if req != nil && req.AdjacencyMatrix != nil {
		mode = ModeMatrix
	}

	resp, err := s.rank(ctx, req, mode, runID, log)
	root.End()
	elapsed := time.Since(start)

	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, apperrors.ErrInvalidInput):
			result = "invalid"
			log.Info("ranking request rejected", "mode", mode, "error", err)
		case errors.Is(err, apperrors.ErrTimeout):
			result = "timeout"
			log.Warn("ranking abandoned", "mode", mode, "error", err)
		default:
			log.Error("ranking failed", "mode", mode, "error", err)
		}
		s.observe(mode, result, elapsed)
		return nil, err
	}

	resp.TimingsMS = root.Timings()
	result := "ok"
	if resp.Cached {
		result = "cached"
	}
	s.observe(mode, result, elapsed)
	s.observeGraph(resp)
	root.SetAttr("nodes", len(resp.URLs))
	root.Log(log)

	sum := summarize(resp, elapsed)
	for _, sink := range s.sinks {
		sink.Record(ctx, sum)
	}
	log.Info("ranking complete",
		"mode", mode,
		"nodes", sum.Nodes,
		"edges", sum.Edges,
		"iterations", resp.Iterations,
		"converged", resp.Converged,
		"cached", resp.Cached,
		"elapsed", elapsed,
	)
	return resp, nil
}

func (s *Service) rank(ctx context.Context, req *Request, mode Mode, runID string, log *slog.Logger) (*Response, error) {
	if req == nil {
		return nil, apperrors.Invalid(MsgNoData)
	}
	if len(req.URLs) == 0 {
		return nil, apperrors.Invalid(MsgNoURLs)
	}
	p, err := s.resolveParams(req)
	if err != nil {
		return nil, err
	}

	reporter := diag.Reporter(diag.NewLogReporter(log))
	if s.reporter != nil {
		reporter = diag.Multi{reporter, s.reporter}
	}

	if mode == ModeMatrix {
		return s.rankMatrix(ctx, req, p, runID, reporter)
	}
	return s.rankCrawl(ctx, req, p, runID, reporter)
}

func (s *Service) resolveParams(req *Request) (params, error) {
	p := params{
		rank: rank.Params{
			Damping:       orDefault(s.cfg.DefaultDamping, rank.DefaultDamping),
			MaxIterations: orDefaultInt(s.cfg.DefaultMaxIterations, rank.DefaultMaxIterations),
			Tolerance:     orDefault(s.cfg.Tolerance, rank.DefaultTolerance),
		},
		hits: orDefaultInt(s.cfg.HITSIterations, hits.DefaultIterations),
	}
	if req.DampingFactor != nil {
		p.rank.Damping = *req.DampingFactor
	}
	if req.MaxIterations != nil {
		p.rank.MaxIterations = *req.MaxIterations
	}
	if req.Tolerance != nil {
		p.rank.Tolerance = *req.Tolerance
	}
	if req.HITSIterations != nil {
		p.hits = *req.HITSIterations
	}
	if err := p.rank.Validate(); err != nil {
		return p, err
	}
	if p.hits <= 0 {
		return p, apperrors.Invalid("hits iterations must be positive, got %d", p.hits)
	}
	return p, nil
}

func (s *Service) checkSize(n int) error {
	if s.cfg.MaxNodes > 0 && n > s.cfg.MaxNodes {
		return apperrors.Invalid("too many nodes: %d exceeds the limit of %d", n, s.cfg.MaxNodes)
	}
	return nil
}

func (s *Service) rankMatrix(ctx context.Context, req *Request, p params, runID string, r diag.Reporter) (*Response, error) {
	seen := make(map[string]struct{}, len(req.URLs))
	for i, label := range req.URLs {
		if label == "" {
			return nil, apperrors.Invalid("node label %d is empty", i)
		}
		if _, dup := seen[label]; dup {
			return nil, apperrors.Invalid("duplicate node label %q", label)
		}
		seen[label] = struct{}{}
	}
	if err := s.checkSize(len(req.URLs)); err != nil {
		return nil, err
	}
	if len(req.AdjacencyMatrix) != len(req.URLs) {
		return nil, apperrors.Invalid("matrix dimension %d does not match %d nodes", len(req.AdjacencyMatrix), len(req.URLs))
	}

	_, span := tracing.StartChildSpan(ctx, "build")
	adj, err := graph.FromMatrix(req.AdjacencyMatrix)
	if err == nil {
		adj, err = adj.WithNodes(req.URLs)
	}
	span.End()
	if err != nil {
		return nil, err
	}

	compute := func() (*Response, error) {
		return s.compute(ctx, adj, p, ModeMatrix, r)
	}
	if s.cache == nil {
		resp, err := compute()
		if err != nil {
			return nil, err
		}
		resp.RunID = runID
		return resp, nil
	}

	key, err := cacheKey(req.URLs, req.AdjacencyMatrix, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
	}
	shared, cached, err := s.cache.GetOrCompute(ctx, key, compute)
	if err != nil {
		return nil, err
	}
	// The cached value may be shared with concurrent callers.
	resp := *shared
	resp.RunID = runID
	resp.Cached = cached
	return &resp, nil
}

func (s *Service) rankCrawl(ctx context.Context, req *Request, p params, runID string, r diag.Reporter) (*Response, error) {
	nodes := urlnorm.Prepare(req.URLs)
	if len(nodes) == 0 {
		return nil, apperrors.Invalid(MsgNoValidURLs)
	}
	if err := s.checkSize(len(nodes)); err != nil {
		return nil, err
	}
	if s.crawler == nil {
		return nil, fmt.Errorf("%w: crawl mode requested but no crawler is configured", apperrors.ErrInternal)
	}

	crawlCtx, span := tracing.StartChildSpan(ctx, "crawl")
	discovered := s.crawler.Collect(crawlCtx, nodes)
	span.End()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: crawl of %d urls interrupted: %v", apperrors.ErrTimeout, len(nodes), err)
	}

	var failures map[string]string
	for _, n := range nodes {
		if d := discovered[n]; d.Err != nil {
			if failures == nil {
				failures = make(map[string]string)
			}
			failures[n] = d.Err.Error()
		}
	}
	span.SetAttr("failures", len(failures))

	_, span = tracing.StartChildSpan(ctx, "build")
	adj, err := graph.Build(nodes, graph.FromMap(discovered), r)
	span.End()
	if err != nil {
		return nil, err
	}

	resp, err := s.compute(ctx, adj, p, ModeCrawl, r)
	if err != nil {
		return nil, err
	}
	resp.RunID = runID
	resp.CrawlFailures = failures
	return resp, nil
}

// compute runs the three engines over adj and assembles the response.
func (s *Service) compute(ctx context.Context, adj *graph.Adjacency, p params, mode Mode, r diag.Reporter) (*Response, error) {
	_, span := tracing.StartChildSpan(ctx, "pagerank")
	pr, err := rank.PageRank(adj, p.rank, r)
	span.End()
	if err != nil {
		return nil, err
	}
	span.SetAttr("iterations", pr.Iterations)

	_, span = tracing.StartChildSpan(ctx, "hits")
	hs, err := hits.Compute(adj, p.hits, r)
	span.End()
	if err != nil {
		return nil, err
	}

	_, span = tracing.StartChildSpan(ctx, "metrics")
	rec, err := netmetrics.Compute(adj, hs)
	if err == nil {
		rec, err = rec.Reordered(pr.Order)
	}
	span.End()
	if err != nil {
		return nil, fmt.Errorf("%w: computing metrics: %v", apperrors.ErrInternal, err)
	}
	for i := range rec.HubScores {
		rec.HubScores[i] = round6(rec.HubScores[i])
		rec.AuthorityScores[i] = round6(rec.AuthorityScores[i])
	}

	results := make([]Result, len(pr.Scores))
	for k, sc := range pr.Scores {
		results[k] = Result{URL: sc.Node, Rank: sc.Score}
	}
	return &Response{
		Mode:            mode,
		Results:         results,
		DampingFactor:   p.rank.Damping,
		MaxIterations:   p.rank.MaxIterations,
		Tolerance:       p.rank.Tolerance,
		Iterations:      pr.Iterations,
		Converged:       pr.Converged,
		URLs:            adj.Nodes(),
		AdjacencyMatrix: adj.Matrix(),
		Metrics:         rec,
	}, nil
}

func (s *Service) observe(mode Mode, result string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RankRequestsTotal.WithLabelValues(string(mode), result).Inc()
	s.metrics.RankLatency.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}

// observeGraph records per-run graph statistics.
func (s *Service) observeGraph(resp *Response) {
	if s.metrics == nil || resp.Metrics == nil {
		return
	}
	s.metrics.GraphNodes.Observe(float64(resp.Metrics.TotalNodes))
	s.metrics.GraphEdges.Observe(float64(resp.Metrics.TotalEdges))
	s.metrics.PageRankIterations.Observe(float64(resp.Iterations))
	if !resp.Converged {
		s.metrics.NonConvergedTotal.Inc()
	}
}

func summarize(resp *Response, elapsed time.Duration) Summary {
	sum := Summary{
		RunID:         resp.RunID,
		Mode:          resp.Mode,
		Nodes:         len(resp.URLs),
		Damping:       resp.DampingFactor,
		MaxIterations: resp.MaxIterations,
		Iterations:    resp.Iterations,
		Converged:     resp.Converged,
		CrawlFailures: len(resp.CrawlFailures),
		Cached:        resp.Cached,
		Latency:       elapsed,
		FinishedAt:    time.Now().UTC(),
	}
	if resp.Metrics != nil {
		sum.Edges = resp.Metrics.TotalEdges
	}
	if len(resp.Results) > 0 {
		sum.TopNode = resp.Results[0].URL
		sum.TopScore = resp.Results[0].Rank
	}
	return sum
}

func cacheKey(labels []string, matrix [][]float64, p params) (string, error) {
	return cache.Key("rank/v1", labels, matrix, p.rank.Damping, p.rank.MaxIterations, p.rank.Tolerance, p.hits)
}

func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

func orDefault(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

func orDefaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
