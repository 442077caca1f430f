package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/i474232898/wine-region-evaluator/internal/common"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch missing daily climate data for all regions once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.Ingest(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.Skipped {
			fmt.Fprintf(out, "Ingestion skipped: %s\n", res.Reason)
			return nil
		}
		fmt.Fprintf(out, "Ingested %s..%s for %d regions: %d fetched, %d new (run %s)\n",
			res.From.Format(common.DateLayout), res.To.Format(common.DateLayout),
			res.Regions, res.Fetched, res.Inserted, res.RunID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
