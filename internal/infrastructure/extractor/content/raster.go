package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	dcimage "github.com/JaimeStill/document-context/pkg/image"
	"golang.org/x/sync/errgroup"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

// RasterDPI renders pages at 300/72 of the default PDF resolution.
const RasterDPI = 300

// Rasterizer renders every page of a PDF into an image file under outDir.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outDir, stem string) ([]domain.ImageRef, error)
}

type ImageMagickRasterizer struct {
	dpi     int
	workers int
}

func NewImageMagickRasterizer(dpi, workers int) *ImageMagickRasterizer {
	if dpi <= 0 {
		dpi = RasterDPI
	}
	return &ImageMagickRasterizer{dpi: dpi, workers: workers}
}

func (r *ImageMagickRasterizer) Rasterize(ctx context.Context, pdfPath, outDir, stem string) ([]domain.ImageRef, error) {
	pdfDoc, err := document.OpenPDF(pdfPath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCorruptInput, "open pdf", err)
	}
	defer pdfDoc.Close()

	renderer, err := dcimage.NewImageMagickRenderer(config.ImageConfig{
		Format:  "png",
		DPI:     r.dpi,
		Options: map[string]any{"background": "white"},
	})
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	allPages, err := pdfDoc.ExtractAllPages()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCorruptInput, "extract pages", err)
	}

	refs := make([]domain.ImageRef, len(allPages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workerCount(len(allPages)))

	for i, page := range allPages {
		pageNum := i + 1
		imgPath := filepath.Join(outDir, fmt.Sprintf("%s-page-%d.png", stem, pageNum))
		refs[i] = domain.ImageRef{Path: imgPath, MediaType: "image/png"}

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			data, err := page.ToImage(renderer, nil)
			if err != nil {
				return fmt.Errorf("render page %d: %w", pageNum, err)
			}
			if err := os.WriteFile(imgPath, data, 0o600); err != nil {
				return fmt.Errorf("write page %d image: %w", pageNum, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *ImageMagickRasterizer) workerCount(pages int) int {
	limit := r.workers
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return max(min(limit, pages), 1)
}
