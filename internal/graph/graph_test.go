package graph

import (
	"errors"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/diag"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
)

func TestBuild(t *testing.T) {
	nodes := []string{"https://a.example/", "https://b.example/", "https://c.example/"}
	errTimeout := errors.New("timeout")
	lookup := FromMap(map[string]Discovery{
		"https://a.example/": {Links: []string{
			"https://b.example/",
			"https://b.example/",        // duplicate collapses
			"https://outside.example/", // not in node set
			"https://a.example/",       // self-loop kept
		}},
		"https://b.example/": {Err: errTimeout},
		// c is missing from the map: no links, dangling
	})

	rec := &diag.Recorder{}
	adj, err := Build(nodes, lookup, rec)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	want := [][]float64{
		{1, 1, 0},
		{0, 0, 0},
		{0, 0, 0},
	}
	got := adj.Matrix()
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("adj[%d][%d] = %v, want %v", i, j, got[i][j], want[i][j])
			}
		}
	}
	if len(rec.Edges) != 2 {
		t.Errorf("edge events = %v, want 2", rec.Edges)
	}
	if !errors.Is(rec.Failures["https://b.example/"], errTimeout) {
		t.Errorf("failure for b = %v, want timeout", rec.Failures["https://b.example/"])
	}
	if adj.TotalWeight() != 2 {
		t.Errorf("TotalWeight() = %v, want 2", adj.TotalWeight())
	}
}

func TestBuildEmpty(t *testing.T) {
	_, err := Build(nil, FromMap(nil), nil)
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("Build(nil) = %v, want ErrInvalidInput", err)
	}
}

func TestBuildMatrixIsCopy(t *testing.T) {
	adj, err := Build([]string{"a", "b"}, FromMap(map[string]Discovery{"a": {Links: []string{"b"}}}), nil)
	if err != nil {
		t.Fatal(err)
	}
	rows := adj.Matrix()
	rows[0][1] = 42
	if adj.At(0, 1) != 1 {
		t.Error("mutating Matrix() output changed the adjacency")
	}
}

func TestFromMatrix(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]float64
		wantErr bool
	}{
		{"valid", [][]float64{{0, 1}, {0.5, 0}}, false},
		{"empty", nil, true},
		{"not square", [][]float64{{0, 1}, {1}}, true},
		{"negative", [][]float64{{0, -1}, {1, 0}}, true},
		{"nan", [][]float64{{0, math.NaN()}, {1, 0}}, true},
		{"inf", [][]float64{{0, math.Inf(1)}, {1, 0}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, err := FromMatrix(tt.rows)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrInvalidInput) {
					t.Fatalf("FromMatrix() = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromMatrix() error: %v", err)
			}
			if adj.Len() != len(tt.rows) {
				t.Errorf("Len() = %d, want %d", adj.Len(), len(tt.rows))
			}
		})
	}
}

func TestWithNodes(t *testing.T) {
	adj, err := FromMatrix([][]float64{{0, 1}, {1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := adj.WithNodes([]string{"x"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("WithNodes(1 label) = %v, want ErrInvalidInput", err)
	}
	labelled, err := adj.WithNodes([]string{"x", "y"})
	if err != nil {
		t.Fatal(err)
	}
	if got := labelled.Nodes(); got[0] != "x" || got[1] != "y" {
		t.Errorf("Nodes() = %v", got)
	}
	if got := labelled.OutWeights(); got[0] != 1 || got[1] != 1 {
		t.Errorf("OutWeights() = %v", got)
	}
}
