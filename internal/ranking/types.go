package ranking

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/netmetrics"
)

// Mode names how the link graph was obtained.
type Mode string

const (
	ModeCrawl  Mode = "crawl"
	ModeMatrix Mode = "matrix"
)

// Request is a ranking request. Optional numeric fields fall back to the
// configured defaults when nil. A non-nil AdjacencyMatrix selects matrix
// mode, in which URLs are opaque labels and nothing is fetched.
type Request struct {
	URLs            []string    `json:"urls"`
	DampingFactor   *float64    `json:"damping_factor,omitempty"`
	MaxIterations   *int        `json:"max_iterations,omitempty"`
	Tolerance       *float64    `json:"tolerance,omitempty"`
	HITSIterations  *int        `json:"hits_iterations,omitempty"`
	AdjacencyMatrix [][]float64 `json:"adjacency_matrix,omitempty"`
}

// Result is one ranked node.
type Result struct {
	URL  string  `json:"url"`
	Rank float64 `json:"rank"`
}

// Response is the assembled output of a ranking run. Per-node metric
// arrays follow the order of Results.
type Response struct {
	RunID           string             `json:"run_id"`
	Mode            Mode               `json:"mode"`
	Results         []Result           `json:"results"`
	DampingFactor   float64            `json:"damping_factor"`
	MaxIterations   int                `json:"max_iterations"`
	Tolerance       float64            `json:"tolerance"`
	Iterations      int                `json:"iterations"`
	Converged       bool               `json:"converged"`
	URLs            []string           `json:"urls"`
	AdjacencyMatrix [][]float64        `json:"adjacency_matrix"`
	Metrics         *netmetrics.Record `json:"metrics"`
	CrawlFailures   map[string]string  `json:"crawl_failures,omitempty"`
	Cached          bool               `json:"cached"`
	TimingsMS       map[string]float64 `json:"timings_ms,omitempty"`
}

// Summary describes a finished run for the audit and analytics sinks.
type Summary struct {
	RunID         string
	Mode          Mode
	Nodes         int
	Edges         int
	Damping       float64
	MaxIterations int
	Iterations    int
	Converged     bool
	TopNode       string
	TopScore      float64
	CrawlFailures int
	Cached        bool
	Latency       time.Duration
	FinishedAt    time.Time
}
