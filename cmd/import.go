package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visitum/visitum-cli/internal/export"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a previously exported enriched CSV into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return eris.New("--file is required")
		}

		records, err := export.ReadFile(file)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return eris.Errorf("no records in %s", file)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		saved, err := st.SaveEnriched(ctx, records)
		if err != nil {
			return err
		}

		zap.L().Info("import: csv loaded",
			zap.String("file", file),
			zap.Int("records", len(records)),
			zap.Int("saved", saved),
		)
		fmt.Fprintf(os.Stdout, "Imported %d of %d records from %s\n", saved, len(records), file)
		return nil
	},
}

func init() {
	importCmd.Flags().String("file", "", "enriched CSV file to import")
	rootCmd.AddCommand(importCmd)
}
