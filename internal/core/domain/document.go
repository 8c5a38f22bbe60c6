package domain

import (
	"os"
	"strings"
	"time"
)

// StoredFile is an uploaded file as persisted by the ingestion boundary.
type StoredFile struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

type ContentKind string

const (
	ContentDigitalPDF  ContentKind = "digital_pdf"
	ContentScannedPDF  ContentKind = "scanned_pdf"
	ContentImage       ContentKind = "image"
	ContentSpreadsheet ContentKind = "spreadsheet"
	ContentCSV         ContentKind = "csv"
)

// ImageRef points at an image on disk that can be sent to the analysis service.
type ImageRef struct {
	Path      string `json:"path"`
	MediaType string `json:"media_type"`
}

func (r ImageRef) Bytes() ([]byte, error) {
	return os.ReadFile(r.Path)
}

// NormalizedContent is the analyzable form of a stored file. Exactly one of
// Text and Images is populated; both empty signals an extraction failure.
type NormalizedContent struct {
	Kind      ContentKind `json:"kind"`
	Text      string      `json:"text,omitempty"`
	Images    []ImageRef  `json:"images,omitempty"`
	PageCount int         `json:"page_count"`
}

func (c NormalizedContent) HasText() bool {
	return strings.TrimSpace(c.Text) != ""
}

func (c NormalizedContent) HasImages() bool {
	return len(c.Images) > 0
}

func (c NormalizedContent) IsEmpty() bool {
	return !c.HasText() && !c.HasImages()
}

type DocumentType string

const (
	DocBankStatement            DocumentType = "bank_statement"
	DocLoanStatement            DocumentType = "loan_statement"
	DocSettlementStatement      DocumentType = "settlement_statement"
	DocInsurancePolicy          DocumentType = "insurance_policy"
	DocCodeComplianceCert       DocumentType = "code_compliance_certificate"
	DocRatesNotice              DocumentType = "rates_notice"
	DocPropertyManagerStatement DocumentType = "property_manager_statement"
	DocDepreciationSchedule     DocumentType = "depreciation_schedule"
	DocBodyCorporateLevy        DocumentType = "body_corporate_levy"
	DocInvoice                  DocumentType = "invoice"
	DocTenancyAgreement         DocumentType = "tenancy_agreement"
	DocOther                    DocumentType = "other"
	DocInvalid                  DocumentType = "invalid"
)

var documentTypes = map[DocumentType]struct{}{
	DocBankStatement:            {},
	DocLoanStatement:            {},
	DocSettlementStatement:      {},
	DocInsurancePolicy:          {},
	DocCodeComplianceCert:       {},
	DocRatesNotice:              {},
	DocPropertyManagerStatement: {},
	DocDepreciationSchedule:     {},
	DocBodyCorporateLevy:        {},
	DocInvoice:                  {},
	DocTenancyAgreement:         {},
	DocOther:                    {},
	DocInvalid:                  {},
}

func (t DocumentType) Valid() bool {
	_, ok := documentTypes[t]
	return ok
}

// DocumentTypes lists the closed enumeration in a stable order for prompts.
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocBankStatement, DocLoanStatement, DocSettlementStatement, DocInsurancePolicy,
		DocCodeComplianceCert, DocRatesNotice, DocPropertyManagerStatement, DocDepreciationSchedule,
		DocBodyCorporateLevy, DocInvoice, DocTenancyAgreement, DocOther, DocInvalid,
	}
}

// Flag tokens produced by classification and review.
const (
	FlagClassificationError          = "classification_error"
	FlagPersonalInsuranceNotLandlord = "personal_insurance_not_landlord"
	FlagAddressMismatch              = "address_mismatch"
	FlagMortgagePayments             = "mortgage_payments_detected"
	FlagUnknownDocumentType          = "unknown_document_type"
)

type ClassificationResult struct {
	DocumentType    DocumentType      `json:"document_type"`
	Confidence      float64           `json:"confidence"`
	Reasoning       string            `json:"reasoning"`
	Flags           []string          `json:"flags"`
	ExtractedFields map[string]string `json:"extracted_fields"`
}

// FallbackClassification is the placeholder used whenever a document could not
// be classified.
func FallbackClassification(reason string) ClassificationResult {
	return ClassificationResult{
		DocumentType:    DocOther,
		Confidence:      0,
		Reasoning:       reason,
		Flags:           []string{FlagClassificationError},
		ExtractedFields: map[string]string{},
	}
}

func (r ClassificationResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// DocumentSummary is the review-facing projection of a classified document.
type DocumentSummary struct {
	Filename        string            `json:"filename"`
	DocumentType    DocumentType      `json:"document_type"`
	ExtractedFields map[string]string `json:"extracted_fields"`
	Flags           []string          `json:"flags"`
}

func SummarizeDocument(filename string, result ClassificationResult) DocumentSummary {
	return DocumentSummary{
		Filename:        filename,
		DocumentType:    result.DocumentType,
		ExtractedFields: result.ExtractedFields,
		Flags:           result.Flags,
	}
}

func (s DocumentSummary) HasFlag(flag string) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AnalyzedDocument couples a stored file with its classification outcome.
type AnalyzedDocument struct {
	File           StoredFile           `json:"file"`
	ContentKind    ContentKind          `json:"content_kind,omitempty"`
	Classification ClassificationResult `json:"classification"`
	Error          string               `json:"error,omitempty"`
}
