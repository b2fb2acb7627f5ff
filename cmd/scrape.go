package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joblens/jobscraper/internal/scraper"
)

func newScrapeCmd() *cobra.Command {
	var (
		site     string
		query    string
		location string
		pages    int
		maxJobs  int
		output   string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one crawl and print the result envelope",
		Long: `Runs a single crawl against one job board and writes the JSON result
envelope to stdout or a file. An aborted run still produces an envelope;
the abort reason is carried inside it.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			env, err := a.Service.Scrape(cmd.Context(), scraper.ScrapeRequest{
				Site:     site,
				Query:    query,
				Location: location,
				MaxPages: pages,
				MaxJobs:  maxJobs,
			})
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			if env.Aborted() {
				a.Logger.Warn("run aborted", zap.String("reason", env.AbortReason))
			}

			out := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(env); err != nil {
				return fmt.Errorf("write envelope: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "generic-search", "job board to scrape")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search keywords (required)")
	cmd.Flags().StringVarP(&location, "location", "l", "", "search location")
	cmd.Flags().IntVar(&pages, "pages", 3, "result pages to walk")
	cmd.Flags().IntVar(&maxJobs, "max-jobs", 0, "cap on extracted jobs for this run (0 uses the configured default)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the envelope to a file instead of stdout")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}
