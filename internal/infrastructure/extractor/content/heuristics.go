package content

import (
	"strings"
	"unicode/utf8"
)

// ScanHeuristics decides when a PDF text layer is too thin or too garbled to
// trust. The defaults are tuning constants, not correctness invariants.
type ScanHeuristics struct {
	MinChars         int
	MinWords         int
	LongWordChars    int
	MaxLongWordRatio float64
}

func DefaultScanHeuristics() ScanHeuristics {
	return ScanHeuristics{
		MinChars:         200,
		MinWords:         20,
		LongWordChars:    15,
		MaxLongWordRatio: 0.3,
	}
}

// IsScanned reports whether text extracted from a PDF should be discarded in
// favour of page images.
func (h ScanHeuristics) IsScanned(text string) bool {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < h.MinChars {
		return true
	}

	words := strings.Fields(trimmed)
	if len(words) < h.MinWords {
		return true
	}

	long := 0
	for _, w := range words {
		if utf8.RuneCountInString(w) > h.LongWordChars {
			long++
		}
	}
	return float64(long)/float64(len(words)) > h.MaxLongWordRatio
}
