// Package rank implements damped power-iteration PageRank over a link
// graph, with explicit redistribution of dangling-node mass.
package rank

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/diag"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/graph"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultDamping       = 0.85
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-6
)

// Params controls the power iteration.
type Params struct {
	Damping       float64
	MaxIterations int
	Tolerance     float64
}

// DefaultParams returns damping 0.85, 100 iterations, tolerance 1e-6.
func DefaultParams() Params {
	return Params{
		Damping:       DefaultDamping,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

// Validate rejects parameters outside their domains.
func (p Params) Validate() error {
	if !(p.Damping > 0 && p.Damping < 1) {
		return apperrors.Invalid("damping factor must be in (0, 1), got %v", p.Damping)
	}
	if p.MaxIterations <= 0 {
		return apperrors.Invalid("max iterations must be positive, got %d", p.MaxIterations)
	}
	if !(p.Tolerance > 0) {
		return apperrors.Invalid("tolerance must be positive, got %v", p.Tolerance)
	}
	return nil
}

// Score is one node's rank.
type Score struct {
	Node  string
	Index int
	Score float64
}

// Result holds the stationary distribution.
type Result struct {
	// Scores sorted by score descending; ties keep input order.
	Scores []Score
	// Vector is indexed by canonical node position and sums to 1.
	Vector []float64
	// Order[k] is the canonical index of the k-th ranked node.
	Order      []int
	Iterations int
	Residual   float64
	Converged  bool
}

// PageRank computes the damped stationary distribution of adj. An
// exhausted iteration budget is not an error: the last vector is returned
// with Converged false.
func PageRank(adj *graph.Adjacency, p Params, r diag.Reporter) (*Result, error) {
	if adj == nil || adj.Len() == 0 {
		return nil, apperrors.Invalid("pagerank requires at least one node")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r = diag.OrNop(r)

	n := adj.Len()
	nodes := adj.Nodes()
	out := adj.OutWeights()

	var dangling []int
	danglingNames := make([]string, 0)
	for i, s := range out {
		if s == 0 {
			dangling = append(dangling, i)
			danglingNames = append(danglingNames, nodes[i])
		}
	}
	r.DanglingNodes(danglingNames)

	uniform := 1 / float64(n)
	vec := make([]float64, n)
	for i := range vec {
		vec[i] = uniform
	}

	if adj.TotalWeight() == 0 {
		r.PageRankFinished(0, 0, true)
		return assemble(nodes, vec, 0, 0, true), nil
	}

	// Row-stochastic transition matrix; dangling rows stay zero and their
	// mass is spread uniformly below.
	trans := mat.DenseCopyOf(adj.Dense())
	for i, s := range out {
		if s > 0 {
			row := trans.RawRowView(i)
			floats.Scale(1/s, row)
		}
	}

	d := p.Damping
	teleport := (1 - d) / float64(n)
	cur := mat.NewVecDense(n, vec)
	flow := mat.NewVecDense(n, nil)
	next := make([]float64, n)

	var (
		iterations int
		residual   float64
		converged  bool
	)
	for iterations < p.MaxIterations {
		iterations++

		flow.MulVec(trans.T(), cur)
		var danglingMass float64
		for _, i := range dangling {
			danglingMass += cur.AtVec(i)
		}
		spread := danglingMass / float64(n)
		for j := 0; j < n; j++ {
			next[j] = teleport + d*(flow.AtVec(j)+spread)
		}
		floats.Scale(1/floats.Sum(next), next)

		prev := cur.RawVector().Data
		residual = floats.Distance(next, prev, 1)
		copy(prev, next)
		if residual < p.Tolerance {
			converged = true
			break
		}
	}

	r.PageRankFinished(iterations, residual, converged)
	return assemble(nodes, cur.RawVector().Data, iterations, residual, converged), nil
}

func assemble(nodes []string, vec []float64, iterations int, residual float64, converged bool) *Result {
	n := len(nodes)
	res := &Result{
		Scores:     make([]Score, n),
		Vector:     append([]float64(nil), vec...),
		Order:      make([]int, n),
		Iterations: iterations,
		Residual:   residual,
		Converged:  converged,
	}
	for i := range res.Order {
		res.Order[i] = i
	}
	sort.SliceStable(res.Order, func(a, b int) bool {
		return res.Vector[res.Order[a]] > res.Vector[res.Order[b]]
	})
	for k, i := range res.Order {
		res.Scores[k] = Score{Node: nodes[i], Index: i, Score: res.Vector[i]}
	}
	return res
}
