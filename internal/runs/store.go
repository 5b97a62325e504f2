// Package runs keeps an audit log of ranking runs in PostgreSQL. Rows are
// write-once summaries; nothing is ever read back into a computation.
package runs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/resilience"
)

const schema = `CREATE TABLE IF NOT EXISTS rank_runs (
	id             UUID PRIMARY KEY,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	mode           TEXT NOT NULL,
	node_count     INTEGER NOT NULL,
	edge_count     INTEGER NOT NULL,
	damping        DOUBLE PRECISION NOT NULL,
	max_iterations INTEGER NOT NULL,
	iterations     INTEGER NOT NULL,
	converged      BOOLEAN NOT NULL,
	top_node       TEXT NOT NULL DEFAULT '',
	cached         BOOLEAN NOT NULL DEFAULT FALSE,
	latency_ms     BIGINT NOT NULL
)`

const index = `CREATE INDEX IF NOT EXISTS rank_runs_created_at_idx ON rank_runs (created_at DESC)`

const maxListLimit = 500

// Run is one persisted run summary.
type Run struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Mode          string    `json:"mode"`
	NodeCount     int       `json:"node_count"`
	EdgeCount     int       `json:"edge_count"`
	Damping       float64   `json:"damping"`
	MaxIterations int       `json:"max_iterations"`
	Iterations    int       `json:"iterations"`
	Converged     bool      `json:"converged"`
	TopNode       string    `json:"top_node"`
	Cached        bool      `json:"cached"`
	LatencyMs     int64     `json:"latency_ms"`
}

// FromSummary converts a ranking summary into a row.
func FromSummary(s ranking.Summary) Run {
	return Run{
		ID:            s.RunID,
		CreatedAt:     s.FinishedAt,
		Mode:          string(s.Mode),
		NodeCount:     s.Nodes,
		EdgeCount:     s.Edges,
		Damping:       s.Damping,
		MaxIterations: s.MaxIterations,
		Iterations:    s.Iterations,
		Converged:     s.Converged,
		TopNode:       s.TopNode,
		Cached:        s.Cached,
		LatencyMs:     s.Latency.Milliseconds(),
	}
}

// Store writes and lists runs. Writes go through a circuit breaker so a
// failing database stops costing request latency.
type Store struct {
	db           *postgres.Client
	breaker      *resilience.CircuitBreaker
	writeTimeout time.Duration
	pending      sync.WaitGroup
	logger       *slog.Logger
}

// NewStore wraps db. breaker may be nil for a default one.
func NewStore(db *postgres.Client, breaker *resilience.CircuitBreaker) *Store {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("rank-runs", resilience.CircuitBreakerConfig{})
	}
	return &Store{
		db:           db,
		breaker:      breaker,
		writeTimeout: 3 * time.Second,
		logger:       slog.Default().With("component", "run-store"),
	}
}

// Migrate creates the table and index when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.Migrate(ctx, schema, index); err != nil {
		return fmt.Errorf("migrating rank_runs: %w", err)
	}
	return nil
}

// Save inserts one run.
func (s *Store) Save(ctx context.Context, run Run) error {
	return s.breaker.Execute(func() error {
		_, err := s.db.DB.ExecContext(ctx,
			`INSERT INTO rank_runs
				(id, created_at, mode, node_count, edge_count, damping, max_iterations,
				 iterations, converged, top_node, cached, latency_ms)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (id) DO NOTHING`,
			run.ID, run.CreatedAt, run.Mode, run.NodeCount, run.EdgeCount, run.Damping,
			run.MaxIterations, run.Iterations, run.Converged, run.TopNode, run.Cached, run.LatencyMs,
		)
		if err != nil {
			return fmt.Errorf("inserting run %s: %w", run.ID, err)
		}
		return nil
	})
}

// Record implements ranking.Sink. The insert runs in the background,
// detached from the request's cancellation.
func (s *Store) Record(ctx context.Context, sum ranking.Summary) {
	run := FromSummary(sum)
	bg := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		wctx, cancel := context.WithTimeout(bg, s.writeTimeout)
		defer cancel()
		if err := s.Save(wctx, run); err != nil {
			s.logger.Warn("failed to record run", "run_id", run.ID, "error", err)
		}
	}()
}

// Wait blocks until background writes started by Record have finished.
func (s *Store) Wait() {
	s.pending.Wait()
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Run, error) {
	if limit <= 0 || limit > maxListLimit {
		return nil, apperrors.Invalid("limit must be between 1 and %d", maxListLimit)
	}
	if offset < 0 {
		return nil, apperrors.Invalid("offset must not be negative")
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, created_at, mode, node_count, edge_count, damping, max_iterations,
		        iterations, converged, top_node, cached, latency_ms
		   FROM rank_runs
		  ORDER BY created_at DESC
		  LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: listing runs: %v", apperrors.ErrUnavailable, err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Mode, &r.NodeCount, &r.EdgeCount, &r.Damping,
			&r.MaxIterations, &r.Iterations, &r.Converged, &r.TopNode, &r.Cached, &r.LatencyMs); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
