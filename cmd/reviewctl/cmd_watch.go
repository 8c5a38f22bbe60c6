package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/bootstrap"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/config"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/queue/nats"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print review-completed notifications until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if cfg.NATSURL == "" {
		return fmt.Errorf("NATS_URL is not set")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, service)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	return app.Notifier.SubscribeReviewCompleted(ctx, func(_ context.Context, ev nats.ReviewCompleted) error {
		_, err := fmt.Fprintf(out, "%s %s status=%s score=%.2f blocking=%d missing=%d\n",
			ev.FinishedAt.Format("2006-01-02T15:04:05Z07:00"), ev.TaskID, ev.Verdict.Status,
			ev.Verdict.CompletenessScore, len(ev.Verdict.BlockingIssues), len(ev.Verdict.MissingDocuments))
		return err
	})
}
