package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/extractor/content"
)

var normalizeFlags struct {
	full bool
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file>...",
	Short: "Show the analyzable form of source documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNormalize,
}

func init() {
	normalizeCmd.Flags().BoolVar(&normalizeFlags.full, "full", false, "print the full extracted text")
}

type normalizeReport struct {
	File      string   `json:"file"`
	Kind      string   `json:"kind"`
	PageCount int      `json:"page_count"`
	TextChars int      `json:"text_chars"`
	Text      string   `json:"text,omitempty"`
	Images    []string `json:"images,omitempty"`
}

func runNormalize(cmd *cobra.Command, args []string) error {
	normalizer := content.NewNormalizer(content.Options{})
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	for _, path := range args {
		result, err := normalizer.Normalize(cmd.Context(), path, filepath.Base(path))
		if err != nil {
			return fmt.Errorf("normalize %s: %w", path, err)
		}
		report := normalizeReport{
			File:      path,
			Kind:      string(result.Kind),
			PageCount: result.PageCount,
			TextChars: len(result.Text),
			Text:      previewText(result.Text, normalizeFlags.full),
		}
		for _, img := range result.Images {
			report.Images = append(report.Images, img.Path)
		}
		if err := enc.Encode(report); err != nil {
			return err
		}
	}
	return nil
}

func previewText(text string, full bool) string {
	const limit = 400
	if full || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
