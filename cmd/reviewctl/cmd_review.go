package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/bootstrap"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/config"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/ports"
)

var reviewFlags struct {
	contextFile   string
	learningsFile string
	jsonEvents    bool
}

var reviewCmd = &cobra.Command{
	Use:   "review --context ctx.yaml <file>...",
	Short: "Run a full review and stream its progress",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReview,
}

func init() {
	f := reviewCmd.Flags()
	f.StringVar(&reviewFlags.contextFile, "context", "", "YAML file with the return context (required)")
	f.StringVar(&reviewFlags.learningsFile, "learnings", "", "YAML file with reviewer learnings to seed first")
	f.BoolVar(&reviewFlags.jsonEvents, "json", false, "print progress events as JSON lines")

	_ = reviewCmd.MarkFlagRequired("context")
}

var errReviewFailed = errors.New("review failed")

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	returnCtx, err := loadReturnContext(reviewFlags.contextFile)
	if err != nil {
		return err
	}

	cfg := config.Load()
	app, err := bootstrap.New(ctx, cfg, service)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	if reviewFlags.learningsFile != "" {
		learnings, err := loadLearnings(reviewFlags.learningsFile)
		if err != nil {
			return err
		}
		if _, err := app.Seeder.Seed(ctx, learnings); err != nil {
			return fmt.Errorf("seed learnings: %w", err)
		}
	}

	uploads, closeAll, err := openUploads(args)
	if err != nil {
		return err
	}
	task, err := app.IngestUC.Submit(ctx, returnCtx, uploads)
	closeAll()
	if err != nil {
		return fmt.Errorf("submit review: %w", err)
	}
	defer app.IngestUC.Wait()

	ch, ok := app.Registry.Get(task.ID)
	if !ok {
		return fmt.Errorf("no progress channel for task %s", task.ID)
	}
	sub, err := ch.Subscribe()
	if err != nil {
		return err
	}

	var terminal domain.ProgressEvent
	err = sub.Stream(ctx, cfg.KeepaliveInterval(), func(ev domain.ProgressEvent) error {
		terminal = ev
		return writeEvent(out, ev, reviewFlags.jsonEvents)
	}, nil)
	if err != nil {
		return fmt.Errorf("stream progress: %w", err)
	}
	app.Registry.Release(task.ID)

	if terminal.Stage == domain.StageError {
		return fmt.Errorf("%w: %v", errReviewFailed, terminal.Detail["error"])
	}
	return printVerdict(ctx, out, app, task.ID)
}

func printVerdict(ctx context.Context, out io.Writer, app *bootstrap.App, taskID string) error {
	stored, err := app.Repo.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load review: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(stored)
}

func writeEvent(w io.Writer, ev domain.ProgressEvent, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(ev)
	}
	_, err := fmt.Fprintf(w, "%s [%5.1f%%] %-20s %s\n", ev.Timestamp.Local().Format(time.TimeOnly), ev.Progress, ev.Stage, ev.Message)
	return err
}

func loadReturnContext(path string) (domain.ReturnContext, error) {
	var rc domain.ReturnContext
	raw, err := os.ReadFile(path)
	if err != nil {
		return rc, fmt.Errorf("read return context: %w", err)
	}
	if err := yaml.Unmarshal(raw, &rc); err != nil {
		return rc, fmt.Errorf("parse return context %s: %w", path, err)
	}
	return rc, nil
}

type learningsFile struct {
	Learnings []domain.Learning `yaml:"learnings"`
}

func loadLearnings(path string) ([]domain.Learning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read learnings: %w", err)
	}
	var file learningsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse learnings %s: %w", path, err)
	}
	return file.Learnings, nil
}

// openUploads opens every path; the returned func closes whatever was opened.
func openUploads(paths []string) ([]ports.Upload, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	uploads := make([]ports.Upload, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open %s: %w", path, err)
		}
		files = append(files, f)
		uploads = append(uploads, ports.Upload{Filename: filepath.Base(path), Body: f})
	}
	return uploads, closeAll, nil
}
