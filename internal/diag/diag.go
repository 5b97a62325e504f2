// Package diag defines the observer the graph and ranking engines report
// to. Engines never log directly; callers inject a Reporter.
package diag

import (
	"log/slog"
	"sync"
)

// Reporter receives engine events. Implementations must be safe for use by
// a single request goroutine; Recorder is additionally safe for concurrent use.
type Reporter interface {
	EdgeAdded(from, to string)
	DiscoveryFailed(node string, err error)
	DanglingNodes(nodes []string)
	PageRankFinished(iterations int, residual float64, converged bool)
	HITSFinished(iterations int, zeroNormRounds int)
}

// Nop discards every event.
type Nop struct{}

func (Nop) EdgeAdded(string, string) {}
func (Nop) DiscoveryFailed(string, error) {}
func (Nop) DanglingNodes([]string) {}
func (Nop) PageRankFinished(int, float64, bool) {}
func (Nop) HITSFinished(int, int) {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop{}
	}
	return r
}

// LogReporter writes events to a structured logger. Edge events go to
// debug level; failures and non-convergence are warnings.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger.With("component", "engine")}
}

func (l *LogReporter) EdgeAdded(from, to string) {
	l.logger.Debug("edge added", "from", from, "to", to)
}

func (l *LogReporter) DiscoveryFailed(node string, err error) {
	l.logger.Warn("link discovery failed", "node", node, "error", err)
}

func (l *LogReporter) DanglingNodes(nodes []string) {
	if len(nodes) > 0 {
		l.logger.Debug("dangling nodes", "count", len(nodes), "nodes", nodes)
	}
}

func (l *LogReporter) PageRankFinished(iterations int, residual float64, converged bool) {
	if !converged {
		l.logger.Warn("pagerank did not converge", "iterations", iterations, "residual", residual)
		return
	}
	l.logger.Debug("pagerank converged", "iterations", iterations, "residual", residual)
}

func (l *LogReporter) HITSFinished(iterations int, zeroNormRounds int) {
	l.logger.Debug("hits finished", "iterations", iterations, "zero_norm_rounds", zeroNormRounds)
}

// Recorder keeps every event in memory for assertions.
type Recorder struct {
	mu             sync.Mutex
	Edges          [][2]string
	Failures       map[string]error
	Dangling       []string
	PRIterations   int
	PRResidual     float64
	PRConverged    bool
	HITSIterations int
	ZeroNormRounds int
}

func (r *Recorder) EdgeAdded(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Edges = append(r.Edges, [2]string{from, to})
}

func (r *Recorder) DiscoveryFailed(node string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Failures == nil {
		r.Failures = make(map[string]error)
	}
	r.Failures[node] = err
}

func (r *Recorder) DanglingNodes(nodes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Dangling = append([]string(nil), nodes...)
}

func (r *Recorder) PageRankFinished(iterations int, residual float64, converged bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PRIterations, r.PRResidual, r.PRConverged = iterations, residual, converged
}

func (r *Recorder) HITSFinished(iterations int, zeroNormRounds int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.HITSIterations, r.ZeroNormRounds = iterations, zeroNormRounds
}

// Multi fans events out to several reporters.
type Multi []Reporter

func (m Multi) EdgeAdded(from, to string) {
	for _, r := range m {
		r.EdgeAdded(from, to)
	}
}

func (m Multi) DiscoveryFailed(node string, err error) {
	for _, r := range m {
		r.DiscoveryFailed(node, err)
	}
}

func (m Multi) DanglingNodes(nodes []string) {
	for _, r := range m {
		r.DanglingNodes(nodes)
	}
}

func (m Multi) PageRankFinished(iterations int, residual float64, converged bool) {
	for _, r := range m {
		r.PageRankFinished(iterations, residual, converged)
	}
}

func (m Multi) HITSFinished(iterations int, zeroNormRounds int) {
	for _, r := range m {
		r.HITSFinished(iterations, zeroNormRounds)
	}
}
