package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/ports"
)

// DefaultComplianceCutoff is the date a new-build code compliance certificate
// must be issued after.
var DefaultComplianceCutoff = time.Date(2020, time.March, 27, 0, 0, 0, 0, time.UTC)

// ReviewAggregator turns per-document summaries into a single verdict.
type ReviewAggregator struct {
	analyzer ports.DocumentAnalyzer
	cutoff   time.Time
}

func NewReviewAggregator(analyzer ports.DocumentAnalyzer, cutoff time.Time) *ReviewAggregator {
	if cutoff.IsZero() {
		cutoff = DefaultComplianceCutoff
	}
	return &ReviewAggregator{analyzer: analyzer, cutoff: cutoff}
}

// Rules derives the deterministic requirements for a return.
func (a *ReviewAggregator) Rules(summaries []domain.DocumentSummary, returnCtx domain.ReturnContext) domain.ReviewRules {
	return BuildReviewRules(summaries, returnCtx, a.cutoff)
}

// Review asks the analysis service for a holistic judgment and reconciles it
// with rules. Any failure of the review call is fatal.
func (a *ReviewAggregator) Review(
	ctx context.Context,
	summaries []domain.DocumentSummary,
	returnCtx domain.ReturnContext,
	rules domain.ReviewRules,
) (domain.ReviewVerdict, error) {
	draft, err := a.analyzer.ReviewAll(ctx, summaries, returnCtx, rules)
	if err != nil {
		return domain.ReviewVerdict{}, domain.WrapError(domain.ErrAggregationFailure, "review documents", err)
	}
	return Reconcile(draft, rules, len(summaries)), nil
}

func BuildReviewRules(summaries []domain.DocumentSummary, returnCtx domain.ReturnContext, cutoff time.Time) domain.ReviewRules {
	present := make(map[domain.DocumentType]bool, len(summaries))
	for _, s := range summaries {
		present[s.DocumentType] = true
	}
	newBuild := returnCtx.PropertyType == domain.PropertyNewBuild
	if newBuild {
		// Only a certificate issued after the cutoff satisfies the requirement.
		present[domain.DocCodeComplianceCert] = hasValidCertificate(summaries, cutoff)
	}

	rules := domain.ReviewRules{
		RequiredDocuments: []domain.DocumentRequirement{},
		HardViolations:    []string{},
		ComplianceCutoff:  cutoff,
	}
	require := func(docType domain.DocumentType, reason string, blocking bool) {
		rules.RequiredDocuments = append(rules.RequiredDocuments, domain.DocumentRequirement{
			Type:     docType,
			Reason:   reason,
			Present:  present[docType],
			Blocking: blocking,
		})
		if blocking && !present[docType] {
			rules.HardViolations = append(rules.HardViolations,
				fmt.Sprintf("Missing %s: %s", humanize(docType), reason))
		}
	}

	require(domain.DocBankStatement, "bank statements evidence rental income and expenses", false)
	if hasLoanEvidence(summaries) {
		require(domain.DocLoanStatement, "loan activity found, interest must be verified from the lender", false)
	}
	if returnCtx.YearOfOwnership == 1 {
		require(domain.DocSettlementStatement, "first year of ownership needs the purchase settlement statement", true)
	}
	if newBuild {
		require(domain.DocCodeComplianceCert, "new builds need a code compliance certificate for interest deductibility", false)
	}

	for _, s := range summaries {
		if s.HasFlag(domain.FlagPersonalInsuranceNotLandlord) {
			rules.HardViolations = append(rules.HardViolations,
				fmt.Sprintf("%s is a personal home and contents policy, not landlord insurance", s.Filename))
		}
		if addressChecked(s.DocumentType) && addressMismatch(s, returnCtx.PropertyAddress) {
			rules.HardViolations = append(rules.HardViolations,
				fmt.Sprintf("%s (%s) does not match the property address %q", s.Filename, humanize(s.DocumentType), returnCtx.PropertyAddress))
		}
		if newBuild && s.DocumentType == domain.DocCodeComplianceCert {
			if issued, ok := parseISODate(s.ExtractedFields["issue_date"]); ok && !issued.After(cutoff) {
				rules.HardViolations = append(rules.HardViolations,
					fmt.Sprintf("%s was issued %s, not after %s", s.Filename, issued.Format("2006-01-02"), cutoff.Format("2006-01-02")))
			}
		}
	}
	return rules
}

// Reconcile merges the service draft with the deterministic rules. Status is
// recomputed so that it is blocked exactly when blocking issues exist.
func Reconcile(draft domain.ReviewDraft, rules domain.ReviewRules, documentCount int) domain.ReviewVerdict {
	presentTypes := make(map[domain.DocumentType]bool)
	for _, req := range rules.RequiredDocuments {
		if req.Present {
			presentTypes[req.Type] = true
		}
	}

	missing := []domain.MissingDocument{}
	seenMissing := make(map[domain.DocumentType]bool)
	for _, req := range rules.RequiredDocuments {
		if req.Present || seenMissing[req.Type] {
			continue
		}
		seenMissing[req.Type] = true
		missing = append(missing, domain.MissingDocument{
			Type:     req.Type,
			Required: true,
			Impact:   req.Reason,
			Action:   fmt.Sprintf("Request the %s from the client", humanize(req.Type)),
		})
	}
	for _, m := range draft.MissingDocuments {
		if m.Type == "" || presentTypes[m.Type] || seenMissing[m.Type] {
			continue
		}
		seenMissing[m.Type] = true
		missing = append(missing, m)
	}

	blocking := dedupeText(append(append([]string{}, rules.HardViolations...), draft.BlockingIssues...))

	score := requirementRatio(rules.RequiredDocuments)
	if draft.CompletenessScore != nil {
		score = clampScore(*draft.CompletenessScore)
	}

	status := domain.ReviewComplete
	switch {
	case len(blocking) > 0:
		status = domain.ReviewBlocked
	case hasRequiredMissing(missing):
		status = domain.ReviewIncomplete
	}

	summary := strings.TrimSpace(draft.Summary)
	if summary == "" {
		summary = fmt.Sprintf("%d document(s) reviewed: %s with %d missing document(s) and %d blocking issue(s).",
			documentCount, status, len(missing), len(blocking))
	}

	return domain.ReviewVerdict{
		Status:            status,
		CompletenessScore: score,
		MissingDocuments:  missing,
		BlockingIssues:    blocking,
		Recommendations:   dedupeText(draft.Recommendations),
		Summary:           summary,
	}
}

func hasLoanEvidence(summaries []domain.DocumentSummary) bool {
	for _, s := range summaries {
		if s.DocumentType == domain.DocLoanStatement || s.HasFlag(domain.FlagMortgagePayments) {
			return true
		}
		if s.DocumentType != domain.DocSettlementStatement {
			continue
		}
		for key, value := range s.ExtractedFields {
			if (strings.Contains(key, "loan") || strings.Contains(key, "mortgage")) && isMeaningful(value) {
				return true
			}
		}
	}
	return false
}

func isMeaningful(value string) bool {
	v := strings.TrimSpace(value)
	return v != "" && v != "0" && v != "0.00" && !strings.EqualFold(v, "none") && !strings.EqualFold(v, "false")
}

func addressChecked(t domain.DocumentType) bool {
	switch t {
	case domain.DocSettlementStatement, domain.DocCodeComplianceCert, domain.DocInsurancePolicy:
		return true
	default:
		return false
	}
}

func addressMismatch(s domain.DocumentSummary, propertyAddress string) bool {
	if s.HasFlag(domain.FlagAddressMismatch) {
		return true
	}
	extracted := s.ExtractedFields["property_address"]
	if extracted == "" {
		extracted = s.ExtractedFields["address"]
	}
	if strings.TrimSpace(extracted) == "" || strings.TrimSpace(propertyAddress) == "" {
		return false
	}
	return !SameAddress(extracted, propertyAddress)
}

var addressAbbreviations = strings.NewReplacer(
	" street", " st", " road", " rd", " avenue", " ave", " place", " pl",
	" drive", " dr", " crescent", " cres", " terrace", " tce", " lane", " ln",
)

func normalizeAddress(addr string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(addr) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	return strings.TrimSpace(addressAbbreviations.Replace(" " + strings.Join(fields, " ")))
}

// SameAddress reports whether two addresses name the same property. A
// shorter form that prefixes the longer one (no suburb or city) matches.
func SameAddress(a, b string) bool {
	na, nb := normalizeAddress(a), normalizeAddress(b)
	if na == "" || nb == "" {
		return false
	}
	if len(na) > len(nb) {
		na, nb = nb, na
	}
	return nb == na || strings.HasPrefix(nb, na+" ")
}

// hasValidCertificate reports whether any certificate carries a parseable issue
// date strictly after cutoff. Undated certificates do not count.
func hasValidCertificate(summaries []domain.DocumentSummary, cutoff time.Time) bool {
	for _, s := range summaries {
		if s.DocumentType != domain.DocCodeComplianceCert {
			continue
		}
		if issued, ok := parseISODate(s.ExtractedFields["issue_date"]); ok && issued.After(cutoff) {
			return true
		}
	}
	return false
}

func parseISODate(value string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	return t, err == nil
}

func requirementRatio(reqs []domain.DocumentRequirement) float64 {
	if len(reqs) == 0 {
		return 1
	}
	present := 0
	for _, r := range reqs {
		if r.Present {
			present++
		}
	}
	return float64(present) / float64(len(reqs))
}

func hasRequiredMissing(missing []domain.MissingDocument) bool {
	for _, m := range missing {
		if m.Required {
			return true
		}
	}
	return false
}

func clampScore(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func dedupeText(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func humanize(t domain.DocumentType) string {
	return strings.ReplaceAll(string(t), "_", " ")
}
