package ollama

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"

	"golang.org/x/image/draw"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

const (
	MaxImageEdge      = 1568
	OversizedImageLen = 5 * 1024 * 1024
)

// fitWithin returns the largest size with the same aspect ratio that fits
// in a maxEdge square. Images already inside the box keep their size.
func fitWithin(width, height, maxEdge int) (int, int) {
	if width <= maxEdge && height <= maxEdge {
		return width, height
	}
	scale := float64(maxEdge) / float64(max(width, height))
	w := max(int(float64(width)*scale+0.5), 1)
	h := max(int(float64(height)*scale+0.5), 1)
	return min(w, maxEdge), min(h, maxEdge)
}

// prepareImage loads ref, downscales it when needed, and returns the payload
// in base64 as the generate endpoint expects.
func prepareImage(ref domain.ImageRef, maxEdge int) (string, error) {
	raw, err := ref.Bytes()
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", ref.Path, err)
	}

	payload, err := downscale(raw, maxEdge)
	if err != nil {
		return "", domain.WrapError(domain.ErrCorruptInput, "prepare image "+ref.Path, err)
	}
	if len(payload) > OversizedImageLen {
		slog.Warn("oversized_image",
			"path", ref.Path,
			"bytes", len(payload),
			"limit_bytes", OversizedImageLen,
		)
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

func downscale(raw []byte, maxEdge int) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxEdge)
	if w == bounds.Dx() && h == bounds.Dy() {
		return raw, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("encode resized %s: %w", format, err)
	}
	slog.Debug("image_downscaled",
		"from_width", bounds.Dx(),
		"from_height", bounds.Dy(),
		"to_width", w,
		"to_height", h,
	)
	return buf.Bytes(), nil
}
