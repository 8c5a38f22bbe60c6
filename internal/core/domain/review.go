package domain

import "time"

type PropertyType string

const (
	PropertyExisting PropertyType = "existing"
	PropertyNewBuild PropertyType = "new_build"
)

// ReturnContext is the return-level metadata that frames every analysis call.
type ReturnContext struct {
	ClientName      string       `json:"client_name" yaml:"client_name"`
	PropertyAddress string       `json:"property_address" yaml:"property_address"`
	TaxYear         string       `json:"tax_year" yaml:"tax_year"`
	PropertyType    PropertyType `json:"property_type" yaml:"property_type"`
	GSTRegistered   bool         `json:"gst_registered" yaml:"gst_registered"`
	YearOfOwnership int          `json:"year_of_ownership" yaml:"year_of_ownership"`
}

type ReviewStatus string

const (
	ReviewComplete   ReviewStatus = "complete"
	ReviewIncomplete ReviewStatus = "incomplete"
	ReviewBlocked    ReviewStatus = "blocked"
)

type MissingDocument struct {
	Type     DocumentType `json:"type"`
	Required bool         `json:"required"`
	Impact   string       `json:"impact"`
	Action   string       `json:"action"`
}

// ReviewVerdict is the single completeness judgment produced per pipeline run.
type ReviewVerdict struct {
	Status            ReviewStatus      `json:"status"`
	CompletenessScore float64           `json:"completeness_score"`
	MissingDocuments  []MissingDocument `json:"missing_documents"`
	BlockingIssues    []string          `json:"blocking_issues"`
	Recommendations   []string          `json:"recommendations"`
	Summary           string            `json:"summary"`
}

// ReviewDraft is the raw structured review returned by the analysis service,
// before it is reconciled with deterministic policy.
type ReviewDraft struct {
	Status            string            `json:"status"`
	CompletenessScore *float64          `json:"completeness_score"`
	MissingDocuments  []MissingDocument `json:"missing_documents"`
	BlockingIssues    []string          `json:"blocking_issues"`
	Recommendations   []string          `json:"recommendations"`
	Summary           string            `json:"summary"`
}

// ReviewRules are the deterministic requirements handed to the review call.
type ReviewRules struct {
	RequiredDocuments []DocumentRequirement `json:"required_documents"`
	HardViolations    []string              `json:"hard_violations"`
	ComplianceCutoff  time.Time             `json:"compliance_cutoff"`
}

type DocumentRequirement struct {
	Type     DocumentType `json:"type"`
	Reason   string       `json:"reason"`
	Present  bool         `json:"present"`
	Blocking bool         `json:"blocking"`
}
