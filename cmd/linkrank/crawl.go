package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/urlnorm"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Print the normalized links found on a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		page, err := urlnorm.Normalize(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		d := crawler.New(cfg.Crawler).Fetch(ctx, page)
		if d.Err != nil {
			return d.Err
		}
		for _, link := range d.Links {
			fmt.Fprintln(cmd.OutOrStdout(), link)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}
