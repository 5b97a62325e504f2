package diag

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestMultiFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	var r Reporter = Multi{a, b}

	r.EdgeAdded("x", "y")
	r.DiscoveryFailed("z", errors.New("timeout"))
	r.DanglingNodes([]string{"y"})
	r.PageRankFinished(12, 1e-7, true)
	r.HITSFinished(100, 3)

	for i, rec := range []*Recorder{a, b} {
		if len(rec.Edges) != 1 || rec.Edges[0] != [2]string{"x", "y"} {
			t.Errorf("recorder %d edges = %v", i, rec.Edges)
		}
		if rec.Failures["z"] == nil {
			t.Errorf("recorder %d missing failure", i)
		}
		if rec.PRIterations != 12 || !rec.PRConverged || rec.ZeroNormRounds != 3 {
			t.Errorf("recorder %d = %+v", i, rec)
		}
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(Nop); !ok {
		t.Error("OrNop(nil) should return Nop")
	}
	rec := &Recorder{}
	if OrNop(rec) != Reporter(rec) {
		t.Error("OrNop should pass a reporter through")
	}
}

func TestLogReporterWarnsOnNonConvergence(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	r.PageRankFinished(10, 0.5, true)
	if buf.Len() != 0 {
		t.Errorf("converged run logged at warn: %s", buf.String())
	}
	r.PageRankFinished(100, 0.5, false)
	if !strings.Contains(buf.String(), "pagerank did not converge") {
		t.Errorf("missing warning, got %q", buf.String())
	}
}
