package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/dwellist/internal/crawler"
)

// newCrawlCmd creates the 'crawl' subcommand, which performs one discovery run.
func newCrawlCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one discovery pass and merge new listings into the dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of search results to walk (overrides search.listings_to_scrape)")
	return cmd
}

func runCrawl(cmd *cobra.Command, limit int) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	engine, err := appInstance.Engine(limit, nil)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	summary, err := engine.Run(cmd.Context())
	printSummary(cmd, summary)
	switch {
	case errors.Is(err, crawler.ErrSearchUnavailable):
		return fmt.Errorf("search results could not be fetched: %w", err)
	case err != nil && !errors.Is(err, context.Canceled):
		return fmt.Errorf("run crawler: %w", err)
	}

	appInstance.Logger().Info("crawl command finished", zap.String("run_id", summary.RunID))
	return nil
}

func printSummary(cmd *cobra.Command, s crawler.RunSummary) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "run %s: %d pages, %d new, %d already logged, %d unavailable, %d failed, %d rows (%s)\n",
		s.RunID, s.Pages, s.New, s.AlreadyLogged, s.Unavailable, s.Failed, s.Rows, s.Duration.Round(time.Millisecond))
	if s.Anomalies > 0 {
		_, _ = fmt.Fprintf(out, "warning: %d listings were dropped as already logged more than once\n", s.Anomalies)
	}
}
