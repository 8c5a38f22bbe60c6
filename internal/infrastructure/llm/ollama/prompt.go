package ollama

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

const maxDocumentChars = 60000

func describeReturn(rc domain.ReturnContext) string {
	gst := "no"
	if rc.GSTRegistered {
		gst = "yes"
	}
	propertyType := string(rc.PropertyType)
	if propertyType == "" {
		propertyType = string(domain.PropertyExisting)
	}
	return fmt.Sprintf(`Client: %s
Property address: %s
Tax year: %s
Property type: %s
GST registered: %s
Year of ownership: %d`,
		rc.ClientName, rc.PropertyAddress, rc.TaxYear, propertyType, gst, rc.YearOfOwnership)
}

func documentTypeList() string {
	types := domain.DocumentTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func classificationSystemPrompt(rc domain.ReturnContext) string {
	return `You review source documents for a New Zealand residential rental property tax return.

Return details:
` + describeReturn(rc) + `

Rules:
- Insurance must be a landlord or rental policy. A "home and contents" or other personal policy gets flag "personal_insurance_not_landlord".
- Settlement statements, code compliance certificates and insurance policies must name the property address above. A different address gets flag "address_mismatch".
- Bank statements that show regular loan or mortgage repayments get flag "mortgage_payments_detected".
- Documents that are unreadable, unrelated to the property, or for another client are "invalid".`
}

func buildClassificationPrompt(content domain.NormalizedContent, learnings []domain.Learning) string {
	var b strings.Builder
	b.WriteString(`Classify the document and extract its key fields.
Return a strict JSON object with keys:
document_type (one of: ` + documentTypeList() + `),
confidence (number from 0 to 1), reasoning (string), flags (array of strings),
extracted_fields (object of field name to value; use numbers for amounts and YYYY-MM-DD for dates;
include "property_address" when the document names one and "issue_date" for certificates).
No markdown, no extra keys.
`)

	if guidance := buildLearningGuidance(learnings); guidance != "" {
		b.WriteString("\n")
		b.WriteString(guidance)
	}

	switch {
	case content.HasText():
		text := content.Text
		if len(text) > maxDocumentChars {
			text = text[:maxDocumentChars] + "\n[truncated]"
		}
		fmt.Fprintf(&b, "\nDocument (%s, %d page(s)):\n%s\n", content.Kind, content.PageCount, text)
	case content.HasImages():
		fmt.Fprintf(&b, "\nThe document is attached as %d page image(s) (%s).\n", len(content.Images), content.Kind)
	}
	return b.String()
}

func reviewSystemPrompt(rc domain.ReturnContext) string {
	return `You are a senior accountant checking whether a rental property tax return has every supporting document it needs.

Return details:
` + describeReturn(rc)
}

// buildDocumentDigest renders every summary in a stable textual form.
func buildDocumentDigest(summaries []domain.DocumentSummary) string {
	if len(summaries) == 0 {
		return "(no documents)\n"
	}
	var b strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, s.Filename, s.DocumentType)
		if len(s.Flags) > 0 {
			fmt.Fprintf(&b, "    flags: %s\n", strings.Join(s.Flags, ", "))
		}
		keys := make([]string, 0, len(s.ExtractedFields))
		for k := range s.ExtractedFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "    %s: %s\n", k, s.ExtractedFields[k])
		}
	}
	return b.String()
}

func buildReviewPrompt(summaries []domain.DocumentSummary, rules domain.ReviewRules) string {
	var b strings.Builder
	b.WriteString("Documents provided:\n")
	b.WriteString(buildDocumentDigest(summaries))

	if len(rules.RequiredDocuments) > 0 {
		b.WriteString("\nRequired documents:\n")
		for _, req := range rules.RequiredDocuments {
			state := "missing"
			if req.Present {
				state = "present"
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", req.Type, state, req.Reason)
		}
	}
	if len(rules.HardViolations) > 0 {
		b.WriteString("\nConfirmed blocking issues:\n")
		for _, v := range rules.HardViolations {
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}
	if !rules.ComplianceCutoff.IsZero() {
		fmt.Fprintf(&b, "\nCode compliance certificates must be issued after %s; earlier or undated certificates do not satisfy the requirement.\n", rules.ComplianceCutoff.Format("2006-01-02"))
	}

	b.WriteString(`
Judge completeness. Return a strict JSON object with keys:
status ("complete", "incomplete" or "blocked"), completeness_score (number from 0 to 1),
missing_documents (array of objects with type, required, impact, action),
blocking_issues (array of strings), recommendations (array of strings), summary (string).
Status is "blocked" only when blocking_issues is not empty. No markdown, no extra keys.`)
	return b.String()
}
