package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodret/concord/internal/model"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func widgetDoc(version int, modified time.Time, unitPrice, amount, total string) *model.DocumentSnapshot {
	return &model.DocumentSnapshot{
		Buyer:         model.Party{CompanyName: "Acme GmbH", Contact: "J. Doe"},
		Items:         []model.LineItem{{SKU: "W-100", Description: "Widget", Qty: "1000", UnitPrice: unitPrice, Amount: amount}},
		DeclaredTotal: total,
		Incoterms:     "FOB Shanghai",
		PaymentTerms:  "30% TT deposit",
		Version:       version,
		LastModified:  modified,
	}
}

func consistentSet() model.DocumentSet {
	return model.DocumentSet{
		model.DocProformaInvoice:   widgetDoc(1, baseTime, "4.20", "4200.00", "4200.00"),
		model.DocSalesContract:     widgetDoc(1, baseTime, "4.20", "4200.00", "4200.00"),
		model.DocCommercialInvoice: widgetDoc(1, baseTime, "4.20", "4200.00", "4200.00"),
	}
}

func TestCleanSetScoresFull(t *testing.T) {
	result := DetectCrossDocumentIssues(consistentSet(), model.StageContract)

	assert.Empty(t, result.Findings)
	assert.Equal(t, 100, result.Summary.Score)
	assert.True(t, result.Summary.SubmissionSafe())
	assert.Positive(t, result.Summary.OKCount)
	assert.Empty(t, result.MissingDocs)
}

func TestPriceMismatchIsBlocking(t *testing.T) {
	set := consistentSet()
	set[model.DocCommercialInvoice] = widgetDoc(2, baseTime.Add(time.Hour), "4.50", "4500.00", "4500.00")

	result := DetectCrossDocumentIssues(set, model.StageContract)

	require.NotEmpty(t, result.Findings)
	var categories []Category
	for _, f := range result.Findings {
		categories = append(categories, f.Category)
		assert.Equal(t, SeverityBlocking, f.Severity)
	}
	// Unit price, derived line amount, and declared total all disagree.
	assert.Contains(t, categories, CategoryPriceMismatch)
	assert.Contains(t, categories, CategoryTotalMismatch)
	assert.False(t, result.Summary.SubmissionSafe())
	assert.Equal(t, 100-len(result.Findings)*PenaltyBlocking, result.Summary.Score)
}

func TestEquivalentFormattingIsNotAFinding(t *testing.T) {
	set := consistentSet()
	ci := widgetDoc(1, baseTime, "4.20", "4200.00", "$4,200.00")
	set[model.DocCommercialInvoice] = ci

	result := DetectCrossDocumentIssues(set, model.StageContract)
	assert.Empty(t, result.Findings)
}

func TestTermsWordingIsWarningOnly(t *testing.T) {
	set := consistentSet()
	set[model.DocSalesContract].PaymentTerms = "30 percent TT deposit"

	result := DetectCrossDocumentIssues(set, model.StageContract)

	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, CategoryTermsMismatch, f.Category)
	assert.Equal(t, SeverityWarning, f.Severity)
	assert.Equal(t, 100-PenaltyWarning, result.Summary.Score)
	assert.True(t, result.Summary.SubmissionSafe(), "warnings alone must not gate submission")
}

func TestUnparseableQuantityDegradesToStringComparison(t *testing.T) {
	set := model.DocumentSet{
		model.DocProformaInvoice: widgetDoc(1, baseTime, "4.20", "", ""),
		model.DocPackingList:     widgetDoc(1, baseTime, "4.20", "", ""),
	}
	set[model.DocPackingList].Items[0].Qty = "10O0" // letter O typo

	result := DetectCrossDocumentIssues(set, model.StageContract)

	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, CategoryQtyMismatch, f.Category)
	assert.Equal(t, SeverityBlocking, f.Severity)

	// The malformed quantity must not produce a phantom arithmetic finding.
	for _, finding := range result.Findings {
		assert.NotEqual(t, CategoryArithmeticError, finding.Category)
	}
	assert.False(t, result.TotalsDiff[model.DocPackingList].Computable)
}

func TestArithmeticErrorWithinSingleDocument(t *testing.T) {
	set := model.DocumentSet{
		model.DocCommercialInvoice: widgetDoc(1, baseTime, "45.00", "", "9,000.00"),
	}
	set[model.DocCommercialInvoice].Items[0].Qty = "100"

	result := DetectCrossDocumentIssues(set, model.StageQuote)

	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, CategoryArithmeticError, f.Category)
	assert.Equal(t, SeverityBlocking, f.Severity)
	assert.Equal(t, "4500.00", f.RecommendedValue)
	require.Len(t, f.FixActions, 1)

	entry := result.TotalsDiff[model.DocCommercialInvoice]
	assert.True(t, entry.Computable)
	assert.False(t, entry.Matches)
	assert.Equal(t, "4500.00", entry.Computed)
}

func TestMissingRequiredDocuments(t *testing.T) {
	set := model.DocumentSet{
		model.DocProformaInvoice: widgetDoc(1, baseTime, "4.20", "4200.00", "4200.00"),
	}

	result := DetectCrossDocumentIssues(set, model.StageBulk)

	require.Len(t, result.MissingDocs, 3)
	var missing []model.DocKey
	for _, m := range result.MissingDocs {
		missing = append(missing, m.Doc)
		assert.NotEmpty(t, m.Suggestion)
	}
	assert.Contains(t, missing, model.DocSalesContract)
	assert.Contains(t, missing, model.DocCommercialInvoice)
	assert.Contains(t, missing, model.DocPackingList)

	// Absence is advisory, not a finding.
	assert.Empty(t, result.Findings)
}

func TestBlankFieldsAreSkipped(t *testing.T) {
	set := consistentSet()
	set[model.DocProformaInvoice].PortOfLoading = "Shanghai"
	// Nobody else declares a port, so one declaration alone is not comparable.

	result := DetectCrossDocumentIssues(set, model.StageContract)
	assert.Empty(t, result.Findings)
}

func TestFindingIDsAreStableAcrossRuns(t *testing.T) {
	set := consistentSet()
	set[model.DocCommercialInvoice] = widgetDoc(2, baseTime.Add(time.Hour), "4.50", "4500.00", "4500.00")

	first := DetectCrossDocumentIssues(set, model.StageContract)
	second := DetectCrossDocumentIssues(set, model.StageContract)

	require.Equal(t, len(first.Findings), len(second.Findings))
	for i := range first.Findings {
		assert.Equal(t, first.Findings[i].ID, second.Findings[i].ID)
	}
}

func TestFindingsSortBlockingFirst(t *testing.T) {
	set := consistentSet()
	set[model.DocSalesContract].PaymentTerms = "30 percent TT deposit" // warning
	set[model.DocCommercialInvoice].Buyer.CompanyName = "ACME GmbH"    // blocking

	result := DetectCrossDocumentIssues(set, model.StageContract)

	require.Len(t, result.Findings, 2)
	assert.Equal(t, SeverityBlocking, result.Findings[0].Severity)
	assert.Equal(t, SeverityWarning, result.Findings[1].Severity)
}

func TestScoreFloorsAtZero(t *testing.T) {
	set := consistentSet()
	for _, doc := range []model.DocKey{model.DocProformaInvoice, model.DocSalesContract} {
		set[doc].PortOfLoading = "Shanghai"
		set[doc].PortOfDischarge = "Hamburg"
		set[doc].ValidUntil = "2026-04-30"
	}
	ci := set[model.DocCommercialInvoice]
	ci.Buyer.CompanyName = "Other Corp"
	ci.Buyer.Contact = "Someone Else"
	ci.Items[0].Qty = "999"
	ci.Items[0].UnitPrice = "9.99"
	ci.Items[0].Amount = "9980.01"
	ci.DeclaredTotal = "9999.99" // also breaks its own arithmetic
	ci.Incoterms = "CIF Hamburg"
	ci.PaymentTerms = "LC at sight"
	ci.PortOfLoading = "Ningbo"
	ci.PortOfDischarge = "Rotterdam"
	ci.ValidUntil = "2026-05-31"
	ci.LastModified = baseTime.Add(time.Hour)

	result := DetectCrossDocumentIssues(set, model.StageContract)

	assert.GreaterOrEqual(t, result.Summary.Score, 0)
	assert.Equal(t, 0, result.Summary.Score)
}

func TestRecommendedValueComesFromNewestDocument(t *testing.T) {
	set := consistentSet()
	set[model.DocCommercialInvoice] = widgetDoc(2, baseTime.Add(time.Hour), "4.50", "4500.00", "4500.00")

	result := DetectCrossDocumentIssues(set, model.StageContract)

	for _, f := range result.Findings {
		if f.FieldPath == "items[0].unitPrice" {
			assert.Equal(t, "4.50", f.RecommendedValue)
			require.NotEmpty(t, f.FixActions)
			assert.Contains(t, f.FixActions[0].Label, "4.50")
			return
		}
	}
	t.Fatal("expected a unit price finding")
}

func TestNoRecommendationOnTiedTimestamps(t *testing.T) {
	set := model.DocumentSet{
		model.DocProformaInvoice: widgetDoc(1, baseTime, "4.20", "", ""),
		model.DocSalesContract:   widgetDoc(1, baseTime, "4.50", "", ""),
	}

	result := DetectCrossDocumentIssues(set, model.StageContract)

	for _, f := range result.Findings {
		if f.FieldPath == "items[0].unitPrice" {
			assert.Empty(t, f.RecommendedValue)
			// Both observed values still surface as candidate fixes.
			assert.Len(t, f.FixActions, 2)
			return
		}
	}
	t.Fatal("expected a unit price finding")
}

func TestRecalculateLeavesItemlessDocumentAlone(t *testing.T) {
	doc := &model.DocumentSnapshot{DeclaredTotal: "4000.00", Version: 1, LastModified: baseTime}
	set := model.DocumentSet{model.DocProformaInvoice: doc}

	out, err := RecalculateTotals{Doc: model.DocProformaInvoice}.Apply(set)
	require.NoError(t, err)

	assert.Equal(t, "4000.00", out.Get(model.DocProformaInvoice).DeclaredTotal)
}

func TestFixActionsOnAmountsCarryNoRecalculation(t *testing.T) {
	set := consistentSet()
	set[model.DocCommercialInvoice].Items[0].Amount = "4000.00"

	result := DetectCrossDocumentIssues(set, model.StageContract)
	finding, ok := result.FindingByID("PRICE_MISMATCH:items[0].amount")
	require.True(t, ok)
	require.NotEmpty(t, finding.FixActions)

	for _, fa := range finding.FixActions {
		for _, step := range fa.Actions {
			_, isRecalc := step.(RecalculateTotals)
			assert.False(t, isRecalc, "amount candidates must write the chosen value, not recompute it")
		}
	}
}
