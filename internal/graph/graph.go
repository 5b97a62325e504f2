// Package graph builds the directed link graph the ranking engines run on.
// Row i of the adjacency holds node i's outgoing links; column j its
// incoming ones. Node order is the caller's input order and is canonical
// for every vector derived from the graph.
package graph

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/diag"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Discovery is the outcome of fetching one node's outgoing links. A non-nil
// Err means the fetch failed; the node is then treated as having no links.
type Discovery struct {
	Links []string
	Err   error
}

// Lookup returns the discovery result for a node identifier.
type Lookup func(node string) Discovery

// FromMap adapts precomputed discovery results into a Lookup. Missing
// nodes discover nothing.
func FromMap(results map[string]Discovery) Lookup {
	return func(node string) Discovery {
		return results[node]
	}
}

// Adjacency is an immutable n×n weighted link matrix with its node labels.
type Adjacency struct {
	nodes []string
	m     *mat.Dense
}

// Build discovers links for every node and records an edge i→j whenever
// node i links to node j's exact identifier. Links outside the node set
// are dropped; duplicate links collapse to a single edge of weight 1.
func Build(nodes []string, lookup Lookup, r diag.Reporter) (*Adjacency, error) {
	if len(nodes) == 0 {
		return nil, apperrors.Invalid("graph requires at least one node")
	}
	r = diag.OrNop(r)

	index := make(map[string]int, len(nodes))
	for i, node := range nodes {
		if _, dup := index[node]; !dup {
			index[node] = i
		}
	}

	n := len(nodes)
	m := mat.NewDense(n, n, nil)
	for i, node := range nodes {
		d := lookup(node)
		if d.Err != nil {
			r.DiscoveryFailed(node, d.Err)
			continue
		}
		for _, link := range d.Links {
			j, ok := index[link]
			if !ok || m.At(i, j) > 0 {
				continue
			}
			m.Set(i, j, 1)
			r.EdgeAdded(node, nodes[j])
		}
	}
	return &Adjacency{nodes: append([]string(nil), nodes...), m: m}, nil
}

// FromMatrix accepts a caller-supplied square matrix of non-negative finite
// weights. Labels are attached with WithNodes.
func FromMatrix(rows [][]float64) (*Adjacency, error) {
	n := len(rows)
	if n == 0 {
		return nil, apperrors.Invalid("adjacency matrix is empty")
	}
	data := make([]float64, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, apperrors.Invalid("adjacency matrix must be square: row %d has %d entries, want %d", i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, apperrors.Invalid("adjacency matrix entry [%d][%d] is not finite", i, j)
			}
			if v < 0 {
				return nil, apperrors.Invalid("adjacency matrix entry [%d][%d] is negative", i, j)
			}
		}
		data = append(data, row...)
	}
	nodes := make([]string, n)
	for i := range nodes {
		nodes[i] = fmt.Sprintf("node-%d", i)
	}
	return &Adjacency{nodes: nodes, m: mat.NewDense(n, n, data)}, nil
}

// WithNodes returns a copy of a labelled with nodes, which must match its
// dimension.
func (a *Adjacency) WithNodes(nodes []string) (*Adjacency, error) {
	if len(nodes) != a.Len() {
		return nil, apperrors.Invalid("matrix dimension %d does not match %d nodes", a.Len(), len(nodes))
	}
	return &Adjacency{nodes: append([]string(nil), nodes...), m: a.m}, nil
}

// Len returns the number of nodes.
func (a *Adjacency) Len() int {
	return len(a.nodes)
}

// Nodes returns a copy of the node labels in canonical order.
func (a *Adjacency) Nodes() []string {
	return append([]string(nil), a.nodes...)
}

// At returns the weight of edge i→j.
func (a *Adjacency) At(i, j int) float64 {
	return a.m.At(i, j)
}

// Dense exposes the underlying matrix read-only.
func (a *Adjacency) Dense() mat.Matrix {
	return a.m
}

// OutWeights returns the row sums.
func (a *Adjacency) OutWeights() []float64 {
	n := a.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = mat.Sum(a.m.RowView(i))
	}
	return out
}

// TotalWeight returns the sum of all edge weights.
func (a *Adjacency) TotalWeight() float64 {
	return mat.Sum(a.m)
}

// Matrix returns the adjacency as nested slices.
func (a *Adjacency) Matrix() [][]float64 {
	n := a.Len()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, a.m)
	}
	return rows
}
