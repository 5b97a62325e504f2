// Package analytics publishes a summary event for every ranking run to
// Kafka and aggregates consumed events into service-level statistics.
package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/ranking"
)

type EventType string

const EventRank EventType = "rank"

// RankEvent is the wire form of a finished ranking run.
type RankEvent struct {
	Type          EventType `json:"type"`
	RunID         string    `json:"run_id"`
	RequestID     string    `json:"request_id,omitempty"`
	Mode          string    `json:"mode"`
	Nodes         int       `json:"nodes"`
	Edges         int       `json:"edges"`
	Damping       float64   `json:"damping"`
	Iterations    int       `json:"iterations"`
	Converged     bool      `json:"converged"`
	TopNode       string    `json:"top_node"`
	TopScore      float64   `json:"top_score"`
	CrawlFailures int       `json:"crawl_failures"`
	Cached        bool      `json:"cached"`
	LatencyMs     int64     `json:"latency_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventFromSummary converts a run summary into its event form.
func EventFromSummary(s ranking.Summary, requestID string) RankEvent {
	return RankEvent{
		Type:          EventRank,
		RunID:         s.RunID,
		RequestID:     requestID,
		Mode:          string(s.Mode),
		Nodes:         s.Nodes,
		Edges:         s.Edges,
		Damping:       s.Damping,
		Iterations:    s.Iterations,
		Converged:     s.Converged,
		TopNode:       s.TopNode,
		TopScore:      s.TopScore,
		CrawlFailures: s.CrawlFailures,
		Cached:        s.Cached,
		LatencyMs:     s.Latency.Milliseconds(),
		Timestamp:     s.FinishedAt,
	}
}
