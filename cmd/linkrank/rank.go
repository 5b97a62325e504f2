package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/ranking"
)

var rankCmd = &cobra.Command{
	Use:   "rank [url...]",
	Short: "Rank URLs or an adjacency matrix",
	Long: `Rank the given URLs by crawling one hop of links from each, or rank the
request read from --file. The request file uses the HTTP API's JSON body:
{"urls": [...], "adjacency_matrix": [[...]], "damping_factor": 0.85}.`,
	RunE: runRank,
}

func init() {
	f := rankCmd.Flags()
	f.StringP("file", "f", "", `request JSON file ("-" for stdin)`)
	f.Float64("damping", 0, "damping factor (configured default when 0)")
	f.Int("max-iterations", 0, "PageRank iteration cap (configured default when 0)")
	f.Float64("tolerance", 0, "L1 convergence tolerance (configured default when 0)")
	f.StringP("output", "o", "table", "output format: table or json")
	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	req, err := buildRequest(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc := ranking.NewService(cfg.Rank, ranking.WithCrawler(crawler.New(cfg.Crawler)))
	resp, err := svc.Rank(ctx, req)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "table":
		return printTable(cmd.OutOrStdout(), resp)
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func buildRequest(cmd *cobra.Command, args []string) (*ranking.Request, error) {
	var req ranking.Request
	path, _ := cmd.Flags().GetString("file")
	switch {
	case path != "":
		var r io.Reader = cmd.InOrStdin()
		if path != "-" {
			file, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer file.Close()
			r = file
		}
		if err := json.NewDecoder(r).Decode(&req); err != nil {
			return nil, fmt.Errorf("decoding request: %w", err)
		}
		req.URLs = append(req.URLs, args...)
	case len(args) > 0:
		req.URLs = args
	default:
		return nil, fmt.Errorf("give URLs as arguments or a request with --file")
	}

	if cmd.Flags().Changed("damping") {
		v, _ := cmd.Flags().GetFloat64("damping")
		req.DampingFactor = &v
	}
	if cmd.Flags().Changed("max-iterations") {
		v, _ := cmd.Flags().GetInt("max-iterations")
		req.MaxIterations = &v
	}
	if cmd.Flags().Changed("tolerance") {
		v, _ := cmd.Flags().GetFloat64("tolerance")
		req.Tolerance = &v
	}
	return &req, nil
}

func printTable(w io.Writer, resp *ranking.Response) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRANK\tIN\tOUT\tHUB\tAUTHORITY\tURL")
	m := resp.Metrics
	for i, r := range resp.Results {
		fmt.Fprintf(tw, "%d\t%.6f\t%g\t%g\t%.4f\t%.4f\t%s\n",
			i+1, r.Rank, m.InDegree[i], m.OutDegree[i], m.HubScores[i], m.AuthorityScores[i], r.URL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	status := "converged"
	if !resp.Converged {
		status = "did not converge"
	}
	fmt.Fprintf(w, "\n%d nodes, %d edges, density %.4f, %d strongly connected components\n",
		m.TotalNodes, m.TotalEdges, m.Density, m.SCCCount)
	fmt.Fprintf(w, "PageRank %s after %d iterations (damping %.2f)\n", status, resp.Iterations, resp.DampingFactor)
	for url, reason := range resp.CrawlFailures {
		fmt.Fprintf(w, "crawl failed: %s: %s\n", url, reason)
	}
	return nil
}
