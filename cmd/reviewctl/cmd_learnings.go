package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/bootstrap"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/config"
)

var learningsCmd = &cobra.Command{
	Use:   "learnings",
	Short: "Manage reviewer learnings",
}

var learningsSeedCmd = &cobra.Command{
	Use:   "seed <learnings.yaml>",
	Short: "Store learnings in the configured database and vector index",
	Args:  cobra.ExactArgs(1),
	RunE:  runLearningsSeed,
}

func init() {
	learningsCmd.AddCommand(learningsSeedCmd)
}

func runLearningsSeed(cmd *cobra.Command, args []string) error {
	learnings, err := loadLearnings(args[0])
	if err != nil {
		return err
	}
	cfg := config.Load()
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is not set; seeded learnings would not outlive this process")
	}
	app, err := bootstrap.New(cmd.Context(), cfg, service)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	n, err := app.Seeder.Seed(cmd.Context(), learnings)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d learnings\n", n)
	return nil
}
