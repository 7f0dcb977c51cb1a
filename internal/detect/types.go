// Package detect compares canonical field values across the documents of a
// deal and reports disagreements as findings with severities, candidate
// fixes, and an overall readiness score.
package detect

import (
	"github.com/lodret/concord/internal/model"
)

// Category classifies what kind of disagreement a finding describes.
type Category string

// Finding categories.
const (
	CategoryPriceMismatch   Category = "PRICE_MISMATCH"
	CategoryQtyMismatch     Category = "QTY_MISMATCH"
	CategoryBuyerMismatch   Category = "BUYER_MISMATCH"
	CategoryTermsMismatch   Category = "TERMS_MISMATCH"
	CategoryTotalMismatch   Category = "TOTAL_MISMATCH"
	CategoryArithmeticError Category = "ARITHMETIC_ERROR"
)

// Severity ranks how strongly a finding gates submission.
type Severity string

// Severity levels. A document set is submission-safe only when it has zero
// BLOCKING findings, independent of its score.
const (
	SeverityBlocking Severity = "BLOCKING"
	SeverityWarning  Severity = "WARNING"
)

// Penalty points per finding. Flat per severity: a one-cent price mismatch
// invalidates the set for submission just as a $500 one does, so magnitude
// never scales the penalty.
const (
	PenaltyBlocking = 12
	PenaltyWarning  = 4
)

// DetectedValue is one document's value for the disputed field.
type DetectedValue struct {
	Doc       model.DocKey `json:"doc"`
	FieldPath string       `json:"fieldPath"`
	Value     string       `json:"value"`
}

// FixAction is one candidate resolution for a finding. Its actions form a
// single atomic choice: apply them all or none.
type FixAction struct {
	Label   string
	Actions []Action
}

// Finding is one detected disagreement or arithmetic error.
type Finding struct {
	ID               string          `json:"id"`
	Category         Category        `json:"category"`
	Severity         Severity        `json:"severity"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	FieldPath        string          `json:"fieldPath"`
	DetectedValues   []DetectedValue `json:"detectedValues"`
	RecommendedValue string          `json:"recommendedValue,omitempty"`
	FixActions       []FixAction     `json:"-"`
}

// Summary aggregates the readiness of a document set. BlockingCount,
// WarningCount, and OKCount together account for every checked field
// instance; OKCount counts agreeing fields, not absence of checks.
type Summary struct {
	Score         int `json:"score"`
	BlockingCount int `json:"blockingCount"`
	WarningCount  int `json:"warningCount"`
	OKCount       int `json:"okCount"`
}

// SubmissionSafe reports whether the set can ship to the buyer.
func (s Summary) SubmissionSafe() bool {
	return s.BlockingCount == 0
}

// MissingDoc flags a stage-required document absent from the set. Missing
// documents never contribute to blocking or warning counts; they only feed
// the readiness banner.
type MissingDoc struct {
	Doc        model.DocKey `json:"doc"`
	Suggestion string       `json:"suggestion"`
}

// LineCell is one document's view of an aligned line item.
type LineCell struct {
	Present   bool   `json:"present"`
	Qty       string `json:"qty,omitempty"`
	UnitPrice string `json:"unitPrice,omitempty"`
	Amount    string `json:"amount,omitempty"`
}

// ItemRow is one aligned line item across documents.
type ItemRow struct {
	Label string                    `json:"label"`
	Cells map[model.DocKey]LineCell `json:"cells"`
}

// ItemDiff is the aligned per-line view consumed by the report UI.
type ItemDiff struct {
	Rows []ItemRow `json:"rows"`
}

// TotalEntry compares one document's declared total against the sum of its
// own line items.
type TotalEntry struct {
	Declared   string `json:"declared"`
	Computed   string `json:"computed,omitempty"`
	Computable bool   `json:"computable"`
	Matches    bool   `json:"matches"`
}

// TotalsDiff is the per-document arithmetic view.
type TotalsDiff map[model.DocKey]TotalEntry

// CrossCheckResult is the full outcome of one detection pass.
type CrossCheckResult struct {
	Summary     Summary      `json:"summary"`
	Findings    []Finding    `json:"findings"`
	MissingDocs []MissingDoc `json:"missingDocs"`
	ItemDiff    ItemDiff     `json:"itemDiff"`
	TotalsDiff  TotalsDiff   `json:"totalsDiff"`
}

// FindingByID returns the finding with the given id, if present.
func (r *CrossCheckResult) FindingByID(id string) (Finding, bool) {
	for _, f := range r.Findings {
		if f.ID == id {
			return f, true
		}
	}
	return Finding{}, false
}

// severityForCategory is the fixed severity policy. Not configurable per
// call: severity gates submission, so it must not drift between callers.
func severityForCategory(c Category) Severity {
	switch c {
	case CategoryTermsMismatch:
		return SeverityWarning
	default:
		return SeverityBlocking
	}
}

// severityRank orders severities for the stable finding sort.
func severityRank(s Severity) int {
	if s == SeverityBlocking {
		return 0
	}
	return 1
}
