package content

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

func normalizeImage(path string, kind format) (domain.NormalizedContent, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.NormalizedContent{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		return domain.NormalizedContent{}, domain.WrapError(domain.ErrCorruptInput, "decode image", err)
	}

	mediaType := "image/png"
	if kind == formatJPEG {
		mediaType = "image/jpeg"
	}
	return domain.NormalizedContent{
		Kind:      domain.ContentImage,
		Images:    []domain.ImageRef{{Path: path, MediaType: mediaType}},
		PageCount: 1,
	}, nil
}
