package hits

import (
	"errors"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/diag"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/graph"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
)

func adjacency(t *testing.T, rows [][]float64) *graph.Adjacency {
	t.Helper()
	adj, err := graph.FromMatrix(rows)
	if err != nil {
		t.Fatalf("FromMatrix() error: %v", err)
	}
	return adj
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		rows     [][]float64
		wantHub  []float64
		wantAuth []float64
	}{
		{
			name:     "star",
			rows:     [][]float64{{0, 1, 1, 1}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			wantHub:  []float64{1, 0, 0, 0},
			wantAuth: []float64{0, 1 / math.Sqrt(3), 1 / math.Sqrt(3), 1 / math.Sqrt(3)},
		},
		{
			name:     "transitive triangle",
			rows:     [][]float64{{0, 1, 1}, {0, 0, 1}, {0, 0, 0}},
			wantHub:  []float64{0.850651, 0.525731, 0},
			wantAuth: []float64{0, 0.525731, 0.850651},
		},
		{
			name:     "edgeless stays at ones",
			rows:     [][]float64{{0, 0}, {0, 0}},
			wantHub:  []float64{1, 1},
			wantAuth: []float64{1, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(adjacency(t, tt.rows), DefaultIterations, nil)
			if err != nil {
				t.Fatalf("Compute() error: %v", err)
			}
			for i := range tt.wantHub {
				if math.Abs(got.Hubs[i]-tt.wantHub[i]) > 1e-6 {
					t.Errorf("hub[%d] = %v, want %v", i, got.Hubs[i], tt.wantHub[i])
				}
				if math.Abs(got.Authorities[i]-tt.wantAuth[i]) > 1e-6 {
					t.Errorf("authority[%d] = %v, want %v", i, got.Authorities[i], tt.wantAuth[i])
				}
			}
		})
	}
}

func TestComputeSimultaneousUpdate(t *testing.T) {
	// One round on a→b, a→c, b→c. The hub update reads the all-ones
	// authority vector, not the authority computed earlier in the round.
	got, err := Compute(adjacency(t, [][]float64{{0, 1, 1}, {0, 0, 1}, {0, 0, 0}}), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	s5 := math.Sqrt(5)
	wantHub := []float64{2 / s5, 1 / s5, 0}
	wantAuth := []float64{0, 1 / s5, 2 / s5}
	for i := range wantHub {
		if math.Abs(got.Hubs[i]-wantHub[i]) > 1e-12 {
			t.Errorf("hub[%d] = %v, want %v", i, got.Hubs[i], wantHub[i])
		}
		if math.Abs(got.Authorities[i]-wantAuth[i]) > 1e-12 {
			t.Errorf("authority[%d] = %v, want %v", i, got.Authorities[i], wantAuth[i])
		}
	}
}

func TestComputeUnitNorm(t *testing.T) {
	got, err := Compute(adjacency(t, [][]float64{
		{0, 1, 1, 0},
		{1, 0, 1, 0},
		{0, 0, 0, 1},
		{1, 0, 0, 0},
	}), 50, nil)
	if err != nil {
		t.Fatal(err)
	}
	for name, v := range map[string][]float64{"hub": got.Hubs, "authority": got.Authorities} {
		var sq float64
		for _, x := range v {
			if x < 0 {
				t.Errorf("%s has negative entry %v", name, x)
			}
			sq += x * x
		}
		if math.Abs(math.Sqrt(sq)-1) > 1e-9 {
			t.Errorf("%s norm = %v, want 1", name, math.Sqrt(sq))
		}
	}
}

func TestComputeReportsZeroNormRounds(t *testing.T) {
	rec := &diag.Recorder{}
	got, err := Compute(adjacency(t, [][]float64{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}), 7, rec)
	if err != nil {
		t.Fatal(err)
	}
	if got.ZeroNormRounds != 7 || rec.ZeroNormRounds != 7 || rec.HITSIterations != 7 {
		t.Errorf("zero rounds = %d, recorder = %+v", got.ZeroNormRounds, rec)
	}
}

func TestComputeInvalidInput(t *testing.T) {
	if _, err := Compute(nil, 10, nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Compute(nil) = %v, want ErrInvalidInput", err)
	}
	if _, err := Compute(adjacency(t, [][]float64{{0}}), 0, nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Compute(iterations 0) = %v, want ErrInvalidInput", err)
	}
}
