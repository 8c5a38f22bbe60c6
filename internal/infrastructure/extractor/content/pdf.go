package content

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

func (n *Normalizer) normalizePDF(ctx context.Context, path string) (domain.NormalizedContent, error) {
	text, pages, err := extractPDFText(path)
	if err != nil {
		return domain.NormalizedContent{}, domain.WrapError(domain.ErrCorruptInput, "read pdf", err)
	}

	if !n.heuristics.IsScanned(text) {
		return domain.NormalizedContent{
			Kind:      domain.ContentDigitalPDF,
			Text:      text,
			PageCount: pages,
		}, nil
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	images, err := n.rasterizer.Rasterize(ctx, path, filepath.Dir(path), stem)
	if err != nil {
		return domain.NormalizedContent{}, fmt.Errorf("rasterize scanned pdf: %w", err)
	}
	slog.Info("pdf_rasterized",
		"path", path,
		"pages", len(images),
		"text_chars", len(strings.TrimSpace(text)),
	)

	if len(images) > pages {
		pages = len(images)
	}
	return domain.NormalizedContent{
		Kind:      domain.ContentScannedPDF,
		Images:    images,
		PageCount: pages,
	}, nil
}

// extractPDFText returns the plain text of every page joined by newlines.
// Pages whose text layer cannot be decoded contribute nothing.
func extractPDFText(path string) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf decoder panic: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	pages = reader.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("pdf_page_text_failed", "path", path, "page", i, "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(pageText)
	}
	return b.String(), pages, nil
}
