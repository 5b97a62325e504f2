package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body>
			<a href="/about">About</a>
			<a href="docs/readme.md#intro">Docs</a>
			<a href="https://External.example:443/">Ext</a>
			<a href="#top">Top</a>
			<a href="mailto:x@example.com">Mail</a>
			<a href="/about">About again</a>
			<a>no href</a>
		</body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<head><base href="/sub/"></head><a href="page">p</a>`)
	})
	mux.HandleFunc("/docs/readme.md", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		fmt.Fprint(w, "# Readme\n\nSee [home](/) and [guide](guide.md) or <https://auto.example/x>.\n\n[anchor](#x)\n")
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<a href="/%s">ua</a>`, url.PathEscape(r.UserAgent()))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 4096))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() config.CrawlerConfig {
	return config.CrawlerConfig{
		Timeout:      time.Second,
		UserAgent:    "LinkRankTest",
		Workers:      1,
		MaxBodyBytes: 1 << 20,
	}
}

func TestFetchHTML(t *testing.T) {
	srv := newSite(t)
	c := New(testConfig())

	d := c.Fetch(context.Background(), srv.URL+"/")
	if d.Err != nil {
		t.Fatalf("Fetch() error: %v", d.Err)
	}
	want := []string{
		srv.URL + "/about",
		srv.URL + "/docs/readme.md",
		"https://external.example/",
	}
	if len(d.Links) != len(want) {
		t.Fatalf("links = %v, want %v", d.Links, want)
	}
	for i := range want {
		if d.Links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, d.Links[i], want[i])
		}
	}
}

func TestFetchHonoursBaseElement(t *testing.T) {
	srv := newSite(t)
	d := New(testConfig()).Fetch(context.Background(), srv.URL+"/about")
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	if len(d.Links) != 1 || d.Links[0] != srv.URL+"/sub/page" {
		t.Errorf("links = %v, want [%s/sub/page]", d.Links, srv.URL)
	}
}

func TestFetchMarkdown(t *testing.T) {
	srv := newSite(t)
	d := New(testConfig()).Fetch(context.Background(), srv.URL+"/docs/readme.md")
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	want := []string{srv.URL + "/", srv.URL + "/docs/guide.md", "https://auto.example/x"}
	if len(d.Links) != len(want) {
		t.Fatalf("links = %v, want %v", d.Links, want)
	}
	for i := range want {
		if d.Links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, d.Links[i], want[i])
		}
	}
}

func TestFetchSendsUserAgent(t *testing.T) {
	srv := newSite(t)
	d := New(testConfig()).Fetch(context.Background(), srv.URL+"/ua")
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	if len(d.Links) != 1 || d.Links[0] != srv.URL+"/LinkRankTest" {
		t.Errorf("links = %v, want user agent echoed", d.Links)
	}
}

func TestFetchFailures(t *testing.T) {
	srv := newSite(t)
	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.MaxBodyBytes = 1024

	var mu sync.Mutex
	outcomes := map[string]int{}
	c := New(cfg, WithOutcomeHook(func(o string) {
		mu.Lock()
		outcomes[o]++
		mu.Unlock()
	}))

	tests := []struct {
		name string
		url  string
	}{
		{"not found", srv.URL + "/missing"},
		{"timeout", srv.URL + "/slow"},
		{"too large", srv.URL + "/big"},
		{"unreachable", "http://127.0.0.1:1/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Fetch(context.Background(), tt.url)
			if !errors.Is(d.Err, apperrors.ErrCrawlFailed) {
				t.Errorf("Fetch() err = %v, want ErrCrawlFailed", d.Err)
			}
			if len(d.Links) != 0 {
				t.Errorf("links = %v, want none", d.Links)
			}
		})
	}
	if outcomes["failed"] != len(tests) {
		t.Errorf("failed outcomes = %d, want %d", outcomes["failed"], len(tests))
	}
}

func TestCollect(t *testing.T) {
	srv := newSite(t)
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			cfg := testConfig()
			cfg.Workers = workers
			urls := []string{srv.URL + "/", srv.URL + "/about", srv.URL + "/missing"}
			got := New(cfg).Collect(context.Background(), urls)

			keys := make([]string, 0, len(got))
			for k := range got {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) != 3 {
				t.Fatalf("results for %v, want all three urls", keys)
			}
			if got[srv.URL+"/"].Err != nil || len(got[srv.URL+"/"].Links) != 3 {
				t.Errorf("root discovery = %+v", got[srv.URL+"/"])
			}
			if got[srv.URL+"/missing"].Err == nil {
				t.Error("missing page should fail")
			}
		})
	}
}

func TestCollectRespectsCancellation(t *testing.T) {
	srv := newSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := New(testConfig()).Collect(ctx, []string{srv.URL + "/"})
	if got[srv.URL+"/"].Err == nil {
		t.Error("cancelled collect should report failure")
	}
}
