package ollama

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

var fencePattern = regexp.MustCompile("(?s)^```[A-Za-z0-9_+-]*[ \\t]*\\n?(.*?)\\n?[ \\t]*```$")

// StripFence removes one enclosing markdown code fence, with or without a
// language tag. Unfenced input is returned trimmed.
func StripFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// decodeObject parses the single JSON object carried by a model response.
// Anything besides one optional fence around that object is malformed.
func decodeObject(raw string, out any) error {
	body := StripFence(raw)
	if body == "" {
		return domain.WrapError(domain.ErrMalformedResponse, "decode response", fmt.Errorf("empty payload"))
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return domain.WrapError(domain.ErrMalformedResponse, "decode response", err)
	}
	return nil
}

type classificationPayload struct {
	DocumentType    string         `json:"document_type"`
	Confidence      *float64       `json:"confidence"`
	Reasoning       string         `json:"reasoning"`
	Flags           []string       `json:"flags"`
	ExtractedFields map[string]any `json:"extracted_fields"`
}

func decodeClassification(raw string) (domain.ClassificationResult, error) {
	var payload classificationPayload
	if err := decodeObject(raw, &payload); err != nil {
		return domain.ClassificationResult{}, err
	}

	docType := domain.DocumentType(strings.ToLower(strings.TrimSpace(payload.DocumentType)))
	if docType == "" {
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrMalformedResponse, "validate classification", fmt.Errorf("document_type missing"))
	}

	flags := normalizeFlags(payload.Flags)
	if !docType.Valid() {
		flags = appendFlag(flags, domain.FlagUnknownDocumentType)
		docType = domain.DocOther
	}

	confidence := 0.0
	if payload.Confidence != nil {
		confidence = clamp01(*payload.Confidence)
	}

	return domain.ClassificationResult{
		DocumentType:    docType,
		Confidence:      confidence,
		Reasoning:       strings.TrimSpace(payload.Reasoning),
		Flags:           flags,
		ExtractedFields: normalizeFields(payload.ExtractedFields),
	}, nil
}

func decodeReview(raw string) (domain.ReviewDraft, error) {
	var draft domain.ReviewDraft
	if err := decodeObject(raw, &draft); err != nil {
		return domain.ReviewDraft{}, err
	}
	draft.Status = strings.ToLower(strings.TrimSpace(draft.Status))
	switch domain.ReviewStatus(draft.Status) {
	case "", domain.ReviewComplete, domain.ReviewIncomplete, domain.ReviewBlocked:
	default:
		return domain.ReviewDraft{}, domain.WrapError(domain.ErrMalformedResponse, "validate review", fmt.Errorf("unknown status %q", draft.Status))
	}
	if draft.CompletenessScore != nil && math.IsNaN(*draft.CompletenessScore) {
		draft.CompletenessScore = nil
	}
	return draft, nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func normalizeFlags(flags []string) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		out = appendFlag(out, f)
	}
	return out
}

func appendFlag(flags []string, flag string) []string {
	for _, f := range flags {
		if f == flag {
			return flags
		}
	}
	return append(flags, flag)
}

var moneyKeyParts = []string{"amount", "total", "balance", "price", "premium", "fee", "cost", "levy", "payment"}

func isMoneyField(key string) bool {
	for _, part := range moneyKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func isDateField(key string) bool {
	return strings.Contains(key, "date")
}

// normalizeFields flattens model output into strings. Money is rendered
// with two decimals and dates as YYYY-MM-DD when they can be parsed.
func normalizeFields(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, rawKey := range keys {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		value := fields[rawKey]
		if key == "" || value == nil {
			continue
		}
		switch {
		case isMoneyField(key):
			out[key] = formatMoney(value)
		case isDateField(key):
			out[key] = formatDate(value)
		default:
			out[key] = formatScalar(value)
		}
	}
	return out
}

func formatScalar(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func formatMoney(value any) string {
	switch v := value.(type) {
	case float64:
		return fmt.Sprintf("%.2f", v)
	case string:
		if amount, ok := parseMoney(v); ok {
			return fmt.Sprintf("%.2f", amount)
		}
		return strings.TrimSpace(v)
	default:
		return formatScalar(v)
	}
}

func parseMoney(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.NewReplacer("NZD", "", "$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		amount = -amount
	}
	return amount, true
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2 January 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

func formatDate(value any) string {
	s, ok := value.(string)
	if !ok {
		return formatScalar(value)
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
