// Package netmetrics derives descriptive statistics from a link graph:
// degrees, density, clustering, hub/authority heuristics and strongly
// connected components.
package netmetrics

import (
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/hits"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

const (
	// prominenceRatio is the fraction of the maximum degree a node needs to
	// be listed as a hub or authority.
	prominenceRatio = 0.7
	maxProminent    = 5
)

// HubEntry is a node with prominent out-degree.
type HubEntry struct {
	URL       string  `json:"url"`
	OutDegree float64 `json:"out_degree"`
	Score     float64 `json:"score"`
}

// AuthorityEntry is a node with prominent in-degree.
type AuthorityEntry struct {
	URL      string  `json:"url"`
	InDegree float64 `json:"in_degree"`
	Score    float64 `json:"score"`
}

// Record is the metrics payload. Per-node slices are in canonical order
// until Reordered is applied. Degrees are weight sums, so they equal link
// counts for 0/1 matrices; TotalEdges always counts positive entries.
type Record struct {
	TotalNodes             int              `json:"total_nodes"`
	TotalEdges             int              `json:"total_edges"`
	Density                float64          `json:"density"`
	AvgClustering          float64          `json:"avg_clustering_coefficient"`
	AvgInDegree            float64          `json:"avg_in_degree"`
	AvgOutDegree           float64          `json:"avg_out_degree"`
	InDegree               []float64        `json:"in_degree"`
	OutDegree              []float64        `json:"out_degree"`
	HubScores              []float64        `json:"hub_scores"`
	AuthorityScores        []float64        `json:"authority_scores"`
	Hubs                   []HubEntry       `json:"hubs"`
	Authorities            []AuthorityEntry `json:"authorities"`
	StronglyConnectedNodes int              `json:"strongly_connected_nodes"`
	DanglingNodes          int              `json:"dangling_nodes"`
	IsolatedNodes          int              `json:"isolated_nodes"`
	SCCCount               int              `json:"scc_count"`
	LargestSCCSize         int              `json:"largest_scc_size"`
	DegreeDistribution     map[string]int   `json:"degree_distribution"`
	ClusteringCoefficients []float64        `json:"clustering_coefficients"`
}

// Compute derives the metrics record for adj. scores may be nil, in which
// case the HITS arrays are zero.
func Compute(adj *graph.Adjacency, scores *hits.Scores) (*Record, error) {
	if adj == nil || adj.Len() == 0 {
		return nil, apperrors.Invalid("metrics require at least one node")
	}
	n := adj.Len()
	if scores != nil && (len(scores.Hubs) != n || len(scores.Authorities) != n) {
		return nil, apperrors.Invalid("hits vectors have %d/%d entries, want %d", len(scores.Hubs), len(scores.Authorities), n)
	}
	nodes := adj.Nodes()

	rec := &Record{
		TotalNodes:         n,
		InDegree:           make([]float64, n),
		OutDegree:          make([]float64, n),
		HubScores:          make([]float64, n),
		AuthorityScores:    make([]float64, n),
		DegreeDistribution: make(map[string]int),
	}
	if scores != nil {
		copy(rec.HubScores, scores.Hubs)
		copy(rec.AuthorityScores, scores.Authorities)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			w := adj.At(i, j)
			if w > 0 {
				rec.OutDegree[i] += w
				rec.InDegree[j] += w
				rec.TotalEdges++
			}
		}
	}

	if n > 1 {
		rec.Density = float64(rec.TotalEdges) / float64(n*(n-1))
	}
	var sumIn, sumOut float64
	for i := 0; i < n; i++ {
		sumIn += rec.InDegree[i]
		sumOut += rec.OutDegree[i]
		rec.DegreeDistribution[DegreeKey(rec.InDegree[i])]++

		in, out := rec.InDegree[i], rec.OutDegree[i]
		switch {
		case in > 0 && out > 0:
			rec.StronglyConnectedNodes++
		case in == 0 && out == 0:
			rec.IsolatedNodes++
		}
		if out == 0 {
			rec.DanglingNodes++
		}
	}
	rec.AvgInDegree = sumIn / float64(n)
	rec.AvgOutDegree = sumOut / float64(n)

	rec.Hubs = prominentHubs(nodes, rec.OutDegree)
	rec.Authorities = prominentAuthorities(nodes, rec.InDegree)

	rec.ClusteringCoefficients = clustering(adj)
	var sumCC float64
	for _, c := range rec.ClusteringCoefficients {
		sumCC += c
	}
	rec.AvgClustering = sumCC / float64(n)

	rec.SCCCount, rec.LargestSCCSize = components(adj)
	return rec, nil
}

// DegreeKey formats a degree as a degree_distribution key: "2" for a
// whole number, "2.5" otherwise.
func DegreeKey(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

type prominent struct {
	index  int
	degree float64
	score  float64
}

// topByDegree returns up to maxProminent nodes whose degree is at least
// prominenceRatio of the maximum, by score descending with ties in input
// order. A graph whose maximum degree is zero has none.
func topByDegree(degree []float64) []prominent {
	var peak float64
	for _, d := range degree {
		if d > peak {
			peak = d
		}
	}
	if peak == 0 {
		return nil
	}
	var out []prominent
	for i, d := range degree {
		if d >= prominenceRatio*peak {
			out = append(out, prominent{index: i, degree: d, score: d / peak})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].score > out[b].score })
	if len(out) > maxProminent {
		out = out[:maxProminent]
	}
	return out
}

func prominentHubs(nodes []string, out []float64) []HubEntry {
	top := topByDegree(out)
	entries := make([]HubEntry, 0, len(top))
	for _, p := range top {
		entries = append(entries, HubEntry{URL: nodes[p.index], OutDegree: p.degree, Score: p.score})
	}
	return entries
}

func prominentAuthorities(nodes []string, in []float64) []AuthorityEntry {
	top := topByDegree(in)
	entries := make([]AuthorityEntry, 0, len(top))
	for _, p := range top {
		entries = append(entries, AuthorityEntry{URL: nodes[p.index], InDegree: p.degree, Score: p.score})
	}
	return entries
}

// clustering computes, for each node, the fraction of ordered pairs of
// distinct out-neighbours (j, m) with an edge j→m. Nodes with fewer than
// two out-neighbours score 0. A self-loop makes a node its own neighbour.
func clustering(adj *graph.Adjacency) []float64 {
	n := adj.Len()
	cc := make([]float64, n)
	for i := 0; i < n; i++ {
		var nbrs []int
		for j := 0; j < n; j++ {
			if adj.At(i, j) > 0 {
				nbrs = append(nbrs, j)
			}
		}
		k := len(nbrs)
		if k < 2 {
			continue
		}
		links := 0
		for _, j := range nbrs {
			for _, m := range nbrs {
				if j != m && adj.At(j, m) > 0 {
					links++
				}
			}
		}
		cc[i] = float64(links) / float64(k*(k-1))
	}
	return cc
}

// components counts strongly connected components with Tarjan's
// algorithm. Self-loops are skipped; every node is its own component at
// minimum.
func components(adj *graph.Adjacency) (count, largest int) {
	n := adj.Len()
	g := simple.NewDirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && adj.At(i, j) > 0 {
				g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
			}
		}
	}
	sccs := topo.TarjanSCC(g)
	for _, c := range sccs {
		if len(c) > largest {
			largest = len(c)
		}
	}
	return len(sccs), largest
}

// Reordered returns a copy whose per-node slices follow order, where
// order[k] is the canonical index of the k-th entry. Aggregates are shared.
func (r *Record) Reordered(order []int) (*Record, error) {
	n := r.TotalNodes
	if len(order) != n {
		return nil, apperrors.Invalid("order has %d entries, want %d", len(order), n)
	}
	seen := make([]bool, n)
	for _, i := range order {
		if i < 0 || i >= n || seen[i] {
			return nil, apperrors.Invalid("order is not a permutation of %d nodes", n)
		}
		seen[i] = true
	}

	out := *r
	out.InDegree = permuteFloats(r.InDegree, order)
	out.OutDegree = permuteFloats(r.OutDegree, order)
	out.HubScores = permuteFloats(r.HubScores, order)
	out.AuthorityScores = permuteFloats(r.AuthorityScores, order)
	out.ClusteringCoefficients = permuteFloats(r.ClusteringCoefficients, order)
	return &out, nil
}

func permuteFloats(src []float64, order []int) []float64 {
	dst := make([]float64, len(order))
	for k, i := range order {
		dst[k] = src[i]
	}
	return dst
}
