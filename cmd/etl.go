package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/visitum/visitum-cli/internal/clean"
	"github.com/visitum/visitum-cli/internal/enrich"
	"github.com/visitum/visitum-cli/internal/pipeline"
	"github.com/visitum/visitum-cli/internal/resilience"
	"github.com/visitum/visitum-cli/pkg/geonames"
	"github.com/visitum/visitum-cli/pkg/wikipedia"
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Run the full museum ETL pipeline",
	Long:  "Fetches the museum table, cleans and filters it, enriches records with city populations, saves them to the store, and writes the enriched CSV.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Geonames.Username == "" {
			return eris.New("geonames username is required (VISITUM_GEONAMES_USERNAME)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		page, _ := cmd.Flags().GetString("page")
		if page == "" {
			page = cfg.Wikipedia.Page
		}
		exportPath, _ := cmd.Flags().GetString("export")
		if exportPath == "" {
			exportPath = cfg.Export.Path
		}

		rules := enrich.DefaultRules()
		if cfg.Geonames.RulesFile != "" {
			extra, err := enrich.LoadRules(cfg.Geonames.RulesFile)
			if err != nil {
				return err
			}
			rules = append(rules, extra...)
		}

		lookup := geonames.NewClient(cfg.Geonames.Username,
			geonames.WithBaseURL(cfg.Geonames.BaseURL),
			geonames.WithRateLimit(cfg.Geonames.RateLimit),
			geonames.WithRetry(resilience.RetryConfig{
				MaxAttempts: cfg.Geonames.MaxRetries,
				Delay:       cfg.Geonames.RetryDelay,
			}),
		)

		sourceOpts := []wikipedia.Option{wikipedia.WithBaseURL(cfg.Wikipedia.BaseURL)}
		if cfg.Wikipedia.UserAgent != "" {
			sourceOpts = append(sourceOpts, wikipedia.WithUserAgent(cfg.Wikipedia.UserAgent))
		}

		p := pipeline.New(
			wikipedia.NewClient(sourceOpts...),
			clean.New(cfg.Clean),
			enrich.New(enrich.NewResolver(lookup, rules), cfg.Enrich),
			st,
			pipeline.Options{
				Page:       page,
				TableHint:  cfg.Wikipedia.TableHint,
				ExportPath: exportPath,
			},
		)

		result, err := p.Run(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	etlCmd.Flags().String("page", "", "encyclopedia page to fetch (default from config)")
	etlCmd.Flags().String("export", "", "enriched CSV output path (default from config)")
	rootCmd.AddCommand(etlCmd)
}
