package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "rank", "run-1")

	_, crawl := StartChildSpan(ctx, "crawl")
	time.Sleep(2 * time.Millisecond)
	crawl.End()

	_, pr := StartChildSpan(ctx, "pagerank")
	pr.SetAttr("iterations", 12)
	pr.End()
	root.End()

	if len(root.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(root.Children))
	}
	if crawl.TraceID != "run-1" {
		t.Errorf("child trace id = %q, want run-1", crawl.TraceID)
	}
	timings := root.Timings()
	if timings["crawl"] <= 0 {
		t.Errorf("crawl timing = %v, want > 0", timings["crawl"])
	}
	if _, ok := timings["pagerank"]; !ok {
		t.Error("missing pagerank timing")
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	for _, want := range []string{"span=rank", "span=crawl", "iterations=12"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestChildWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	span.End()
	if span.TraceID != "" {
		t.Errorf("orphan trace id = %q, want empty", span.TraceID)
	}
}
