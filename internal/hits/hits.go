// Package hits computes Kleinberg hub and authority scores by fixed-round
// mutual power iteration.
package hits

import (
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/diag"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/graph"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const DefaultIterations = 100

// Scores holds hub and authority vectors in canonical node order.
type Scores struct {
	Hubs        []float64
	Authorities []float64
	// ZeroNormRounds counts rounds in which either vector had zero norm
	// and kept its previous values.
	ZeroNormRounds int
}

// Compute runs exactly iterations rounds starting from all-ones vectors.
// Each round sets authority = Aᵀ·hub and hub = A·authority, both from the
// previous round's vectors, and scales each to unit Euclidean norm. A vector whose norm is zero keeps its
// previous values, so an edgeless graph stays at all ones.
func Compute(adj *graph.Adjacency, iterations int, r diag.Reporter) (*Scores, error) {
	if adj == nil || adj.Len() == 0 {
		return nil, apperrors.Invalid("hits requires at least one node")
	}
	if iterations <= 0 {
		return nil, apperrors.Invalid("hits iterations must be positive, got %d", iterations)
	}
	r = diag.OrNop(r)

	n := adj.Len()
	a := adj.Dense()
	hub := ones(n)
	auth := ones(n)
	nextAuth := mat.NewVecDense(n, nil)
	nextHub := mat.NewVecDense(n, nil)

	zeroRounds := 0
	for k := 0; k < iterations; k++ {
		zero := false

		nextAuth.MulVec(a.T(), hub)
		nextHub.MulVec(a, auth)

		if normalize(nextAuth) {
			auth.CopyVec(nextAuth)
		} else {
			zero = true
		}
		if normalize(nextHub) {
			hub.CopyVec(nextHub)
		} else {
			zero = true
		}

		if zero {
			zeroRounds++
		}
	}

	r.HITSFinished(iterations, zeroRounds)
	return &Scores{
		Hubs:           append([]float64(nil), hub.RawVector().Data...),
		Authorities:    append([]float64(nil), auth.RawVector().Data...),
		ZeroNormRounds: zeroRounds,
	}, nil
}

func ones(n int) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = 1
	}
	return mat.NewVecDense(n, data)
}

// normalize scales v to unit L2 norm in place and reports whether the norm
// was positive.
func normalize(v *mat.VecDense) bool {
	data := v.RawVector().Data
	norm := floats.Norm(data, 2)
	if norm == 0 {
		return false
	}
	floats.Scale(1/norm, data)
	return true
}
