package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
	"github.com/i474232898/wine-region-evaluator/internal/seed"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the initial wine regions when none exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		regions, err := loadSeedRegions(seedFile)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Service.SeedRegions(ctx, regions)
		if err != nil {
			return err
		}

		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Regions already exist, skipping seeding")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully created %d regions\n", n)
		return nil
	},
}

func loadSeedRegions(path string) ([]climate.Region, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.Load(path)
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML file with regions (default: built-in Australian regions)")
	rootCmd.AddCommand(seedCmd)
}
