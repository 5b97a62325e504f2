package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/runs"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/postgres"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent ranking runs from the run history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := runs.NewStore(db, nil).List(ctx, limit, 0)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tMODE\tNODES\tEDGES\tITER\tCONVERGED\tCACHED\tLATENCY\tTOP")
		for _, r := range list {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%t\t%t\t%dms\t%s\n",
				r.CreatedAt.Format(time.RFC3339), r.Mode, r.NodeCount, r.EdgeCount,
				r.Iterations, r.Converged, r.Cached, r.LatencyMs, r.TopNode)
		}
		return tw.Flush()
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}
