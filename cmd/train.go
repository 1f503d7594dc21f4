package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/visitum/visitum-cli/internal/regress"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the population → visitors regression on stored data",
	Long:  "Reads (population, visitors_count) pairs from the store, excluding museums whose city has no known population, and fits a single-feature linear regression.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		features, err := st.ModelFeatures(ctx)
		if err != nil {
			return err
		}
		if len(features) == 0 {
			return eris.New("no training data in store, run `visitum etl` first")
		}

		model, err := regress.Fit(features, cfg.Regress)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(model)
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}
