package content

import (
	"strings"
	"testing"
)

func words(n int, word string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = word
	}
	return strings.Join(parts, " ")
}

func TestIsScanned(t *testing.T) {
	h := DefaultScanHeuristics()
	cases := []struct {
		name string
		text string
		want bool
	}{
		{name: "empty", text: "", want: true},
		{name: "short text under 200 chars", text: words(30, "rent"), want: true},
		{name: "few long words", text: words(15, "depreciationschedule"), want: true},
		{name: "normal prose", text: words(40, "statement"), want: false},
		{name: "garbled text layer", text: words(20, "interest") + " " + words(10, "qwxzvbnmlkjhgfdsaq"), want: true},
		{name: "long words at threshold", text: words(21, "interest") + " " + words(9, "qwxzvbnmlkjhgfdsaq"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := h.IsScanned(tc.text); got != tc.want {
				t.Fatalf("IsScanned() = %v, want %v (chars=%d words=%d)", got, tc.want, len(tc.text), len(strings.Fields(tc.text)))
			}
		})
	}
}
