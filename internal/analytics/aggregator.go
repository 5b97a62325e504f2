package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/logger"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalRuns        int64            `json:"total_runs"`
	RunsByMode       map[string]int64 `json:"runs_by_mode"`
	CachedRuns       int64            `json:"cached_runs"`
	NonConvergedRuns int64            `json:"non_converged_runs"`
	CrawlFailures    int64            `json:"crawl_failures"`
	AvgNodes         float64          `json:"avg_nodes"`
	AvgEdges         float64          `json:"avg_edges"`
	AvgIterations    float64          `json:"avg_iterations"`
	AvgLatencyMs     float64          `json:"avg_latency_ms"`
	P50LatencyMs     int64            `json:"p50_latency_ms"`
	P95LatencyMs     int64            `json:"p95_latency_ms"`
	P99LatencyMs     int64            `json:"p99_latency_ms"`
	TopRankedNodes   []NodeCount      `json:"top_ranked_nodes"`
	RunsPerMinute    float64          `json:"runs_per_minute"`
}

// NodeCount is how often a node came out on top.
type NodeCount struct {
	Node  string `json:"node"`
	Count int64  `json:"count"`
}

// Aggregator folds rank events into running statistics. Events arrive from
// a Kafka consumer or directly through Observe.
type Aggregator struct {
	mu           sync.RWMutex
	totalRuns    int64
	runsByMode   map[string]int64
	cachedRuns   int64
	nonConverged int64
	crawlFails   int64
	sumNodes     int64
	sumEdges     int64
	sumIters     int64
	latencies    []int64
	latencyNext  int
	topCounts    map[string]int64
	startTime    time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. consumer may be nil when events are
// fed through Observe only.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		runsByMode: make(map[string]int64),
		latencies:  make([]int64, 0, 1024),
		topCounts:  make(map[string]int64),
		startTime:  time.Now(),
		consumer:   consumer,
		logger:     slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start consumes events until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		return nil
	}
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent decodes rank events for the Kafka consumer. Undecodable
// messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RankEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode rank event", "key", string(key), "error", err)
			return nil
		}
		if event.Type != EventRank {
			agg.logger.Debug("ignoring event", "type", event.Type)
			return nil
		}
		agg.Observe(event)
		return nil
	}
}

// Record implements ranking.Sink for deployments without Kafka, folding
// runs in directly.
func (a *Aggregator) Record(ctx context.Context, s ranking.Summary) {
	a.Observe(EventFromSummary(s, logger.RequestIDFromContext(ctx)))
}

// Observe folds one event into the statistics.
func (a *Aggregator) Observe(event RankEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalRuns++
	a.runsByMode[event.Mode]++
	if event.Cached {
		a.cachedRuns++
	}
	if !event.Converged {
		a.nonConverged++
	}
	a.crawlFails += int64(event.CrawlFailures)
	a.sumNodes += int64(event.Nodes)
	a.sumEdges += int64(event.Edges)
	a.sumIters += int64(event.Iterations)
	if event.TopNode != "" {
		a.topCounts[event.TopNode]++
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.latencyNext] = event.LatencyMs
		a.latencyNext = (a.latencyNext + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRuns:        a.totalRuns,
		RunsByMode:       make(map[string]int64, len(a.runsByMode)),
		CachedRuns:       a.cachedRuns,
		NonConvergedRuns: a.nonConverged,
		CrawlFailures:    a.crawlFails,
	}
	for mode, n := range a.runsByMode {
		stats.RunsByMode[mode] = n
	}
	if a.totalRuns > 0 {
		total := float64(a.totalRuns)
		stats.AvgNodes = float64(a.sumNodes) / total
		stats.AvgEdges = float64(a.sumEdges) / total
		stats.AvgIterations = float64(a.sumIters) / total
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopRankedNodes = topN(a.topCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.RunsPerMinute = float64(stats.TotalRuns) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent nodes, ties broken by name so the
// output is stable.
func topN(counts map[string]int64, n int) []NodeCount {
	result := make([]NodeCount, 0, len(counts))
	for node, count := range counts {
		result = append(result, NodeCount{Node: node, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Node < result[j].Node
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
