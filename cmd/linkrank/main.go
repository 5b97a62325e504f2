// Command linkrank ranks a link graph from the command line, sharing the
// service's configuration and engines.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "linkrank",
	Short:         "Rank web pages by link structure",
	Long:          "linkrank computes PageRank, HITS and network metrics for a set of URLs or a supplied adjacency matrix.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (defaults plus LR_* environment overrides when empty)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
}

// loadConfig reads the --config file and configures text logging on stderr.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level, _ := cmd.Flags().GetString("log-level")
	slog.SetDefault(logger.New(level, "text", os.Stderr))
	return cfg, nil
}
