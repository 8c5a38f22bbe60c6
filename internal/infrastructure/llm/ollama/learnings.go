package ollama

import (
	"fmt"
	"strings"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

const (
	DefaultLearningMinScore = 0.3
	maxGuidanceLearnings    = 12
)

var financialCategories = map[string]struct{}{
	"transaction":        {},
	"transactions":       {},
	"bank":               {},
	"bank_statement":     {},
	"expense":            {},
	"expenses":           {},
	"income":             {},
	"rental_income":      {},
	"interest":           {},
	"rates":              {},
	"insurance":          {},
	"loan":               {},
	"mortgage":           {},
	"rent":               {},
	"depreciation":       {},
	"body_corporate":     {},
	"property_manager":   {},
	"repairs":            {},
	"gst":                {},
	"settlement":         {},
	"document_review":    {},
	"classification":     {},
	"compliance":         {},
	"code_compliance":    {},
	"address_validation": {},
}

var recognizedScenarios = map[string]struct{}{
	"mortgage_payments":          {},
	"interest_deductibility":     {},
	"personal_insurance":         {},
	"landlord_insurance":         {},
	"address_mismatch":           {},
	"transfer_between_accounts":  {},
	"owner_occupied_period":      {},
	"bond_refund":                {},
	"rates_apportionment":        {},
	"settlement_adjustments":     {},
	"new_build_ccc":              {},
	"body_corporate_levy":        {},
	"property_manager_fees":      {},
	"private_use_apportionment":  {},
	"capital_vs_revenue_repairs": {},
}

var financialKeywords = []string{
	"bank", "loan", "mortgage", "interest", "rates", "insurance", "rent",
	"expense", "income", "transaction", "deposit", "withdrawal", "settlement",
	"levy", "depreciation",
}

func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(tag)
}

func isRecognizedScenario(scenario string) bool {
	_, ok := recognizedScenarios[normalizeTag(scenario)]
	return ok
}

func isFinancialCategory(category string) bool {
	_, ok := financialCategories[normalizeTag(category)]
	return ok
}

func hasFinancialKeyword(l domain.Learning) bool {
	content := strings.ToLower(l.Content)
	for _, kw := range financialKeywords {
		if strings.Contains(content, kw) {
			return true
		}
		for _, k := range l.Keywords {
			if strings.Contains(strings.ToLower(k), kw) {
				return true
			}
		}
	}
	return false
}

// FilterLearnings keeps feedback records relevant to financial document
// review that either score at least minScore or carry a known scenario.
// Input order is preserved.
func FilterLearnings(learnings []domain.Learning, minScore float64) []domain.Learning {
	out := make([]domain.Learning, 0, len(learnings))
	for _, l := range learnings {
		if strings.TrimSpace(l.Content) == "" {
			continue
		}
		recognized := isRecognizedScenario(l.Scenario)
		relevant := recognized || isFinancialCategory(l.Category) || hasFinancialKeyword(l)
		if !relevant {
			continue
		}
		if l.Score >= minScore || recognized {
			out = append(out, l)
		}
	}
	return out
}

// buildLearningGuidance renders the filtered learnings as prompt context.
func buildLearningGuidance(learnings []domain.Learning) string {
	if len(learnings) == 0 {
		return ""
	}
	if len(learnings) > maxGuidanceLearnings {
		learnings = learnings[:maxGuidanceLearnings]
	}

	var b strings.Builder
	b.WriteString("## Reviewer learnings\n")
	b.WriteString("Accountants reviewed similar documents before. When a document matches a learning:\n")
	b.WriteString("- a LEGITIMATE learning means the pattern was accepted: do not raise the related flag.\n")
	b.WriteString("- a FLAGGED learning means the pattern was confirmed as a problem: keep the related flag.\n\n")
	for i, l := range learnings {
		kind := strings.ToUpper(string(l.Kind))
		if kind == "" {
			kind = strings.ToUpper(string(domain.LearningFlagged))
		}
		fmt.Fprintf(&b, "%d. [%s] category=%s", i+1, kind, normalizeTag(l.Category))
		if l.Scenario != "" {
			fmt.Fprintf(&b, " scenario=%s", normalizeTag(l.Scenario))
		}
		fmt.Fprintf(&b, "\n   %s\n", strings.TrimSpace(l.Content))
	}
	return b.String()
}
