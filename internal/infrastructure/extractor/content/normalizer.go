// Package content turns stored uploads into text or page images that the
// analysis service can read.
package content

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

const defaultXLSRowCap = 500

type format string

const (
	formatPDF  format = "pdf"
	formatPNG  format = "png"
	formatJPEG format = "jpeg"
	formatXLSX format = "xlsx"
	formatXLS  format = "xls"
	formatCSV  format = "csv"
)

var extensions = map[string]format{
	".pdf":  formatPDF,
	".png":  formatPNG,
	".jpg":  formatJPEG,
	".jpeg": formatJPEG,
	".xlsx": formatXLSX,
	".xls":  formatXLS,
	".csv":  formatCSV,
}

// Supported reports whether the file extension of name can be normalized.
func Supported(name string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

type Options struct {
	Heuristics ScanHeuristics
	Rasterizer Rasterizer
	XLSRowCap  int
}

type Normalizer struct {
	heuristics ScanHeuristics
	rasterizer Rasterizer
	xlsRowCap  int
}

func NewNormalizer(opts Options) *Normalizer {
	heuristics := opts.Heuristics
	if heuristics == (ScanHeuristics{}) {
		heuristics = DefaultScanHeuristics()
	}
	rasterizer := opts.Rasterizer
	if rasterizer == nil {
		rasterizer = NewImageMagickRasterizer(RasterDPI, 0)
	}
	rowCap := opts.XLSRowCap
	if rowCap <= 0 {
		rowCap = defaultXLSRowCap
	}
	return &Normalizer{
		heuristics: heuristics,
		rasterizer: rasterizer,
		xlsRowCap:  rowCap,
	}
}

func (n *Normalizer) Supports(filename string) bool {
	return Supported(filename)
}

func (n *Normalizer) Normalize(ctx context.Context, path, filename string) (domain.NormalizedContent, error) {
	name := filename
	if name == "" {
		name = path
	}
	ext := strings.ToLower(filepath.Ext(name))
	kind, ok := extensions[ext]
	if !ok {
		return domain.NormalizedContent{}, domain.WrapError(domain.ErrUnsupportedFormat, "normalize", fmt.Errorf("extension %q", ext))
	}

	switch kind {
	case formatPDF:
		return n.normalizePDF(ctx, path)
	case formatPNG, formatJPEG:
		return normalizeImage(path, kind)
	case formatXLSX:
		return normalizeXLSX(path)
	case formatXLS:
		return normalizeXLS(path, n.xlsRowCap)
	case formatCSV:
		return normalizeCSV(path, strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	default:
		return domain.NormalizedContent{}, domain.WrapError(domain.ErrUnsupportedFormat, "normalize", fmt.Errorf("extension %q", ext))
	}
}
