package fix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodret/concord/internal/common"
	"github.com/lodret/concord/internal/detect"
	"github.com/lodret/concord/internal/model"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func widgetDoc(version int, modified time.Time, unitPrice, amount, total string) *model.DocumentSnapshot {
	return &model.DocumentSnapshot{
		Buyer:         model.Party{CompanyName: "Acme GmbH"},
		Items:         []model.LineItem{{SKU: "W-100", Qty: "1000", UnitPrice: unitPrice, Amount: amount}},
		DeclaredTotal: total,
		Version:       version,
		LastModified:  modified,
	}
}

// driftedSet has the commercial invoice carrying a newer unit price that was
// never propagated back to the proforma invoice and sales contract.
func driftedSet() model.DocumentSet {
	return model.DocumentSet{
		model.DocProformaInvoice:   widgetDoc(1, baseTime, "4.20", "4200.00", "4200.00"),
		model.DocSalesContract:     widgetDoc(1, baseTime, "4.20", "4200.00", "4200.00"),
		model.DocCommercialInvoice: widgetDoc(2, baseTime.Add(2*time.Hour), "4.50", "4500.00", "4500.00"),
	}
}

func TestApplyAllBlockingFixesPropagatesNewestPrice(t *testing.T) {
	set := driftedSet()

	result, err := ApplyAllBlockingFixes(set, model.StageContract)
	require.NoError(t, err)

	assert.Positive(t, result.AppliedCount)
	assert.Empty(t, result.SkippedAmbiguous)

	for _, doc := range []model.DocKey{model.DocProformaInvoice, model.DocSalesContract} {
		snap := result.Documents.Get(doc)
		assert.Equal(t, "4.50", snap.Items[0].UnitPrice, "%s unit price", doc)
		assert.Equal(t, "4500.00", snap.Items[0].Amount, "%s line amount", doc)
		assert.Equal(t, "4500.00", snap.DeclaredTotal, "%s declared total", doc)
		assert.Equal(t, 2, snap.Version, "%s version bumped once", doc)
	}

	// The source document was already correct and must stay untouched.
	ci := result.Documents.Get(model.DocCommercialInvoice)
	assert.Equal(t, 2, ci.Version)
	assert.Equal(t, baseTime.Add(2*time.Hour), ci.LastModified)

	// The fixed set is clean.
	after := detect.DetectCrossDocumentIssues(result.Documents, model.StageContract)
	assert.Empty(t, after.Findings)
	assert.Equal(t, 100, after.Summary.Score)
}

func TestApplyAllBlockingFixesIsIdempotent(t *testing.T) {
	first, err := ApplyAllBlockingFixes(driftedSet(), model.StageContract)
	require.NoError(t, err)
	require.Positive(t, first.AppliedCount)

	second, err := ApplyAllBlockingFixes(first.Documents, model.StageContract)
	require.NoError(t, err)

	assert.Zero(t, second.AppliedCount)
	assert.Empty(t, second.Changes)
	for _, doc := range model.AllDocKeys() {
		before := first.Documents.Get(doc)
		after := second.Documents.Get(doc)
		if before == nil {
			continue
		}
		assert.Equal(t, before.Version, after.Version, "%s version must not drift", doc)
	}
}

func TestApplyAllBlockingFixesDoesNotMutateInput(t *testing.T) {
	set := driftedSet()

	_, err := ApplyAllBlockingFixes(set, model.StageContract)
	require.NoError(t, err)

	assert.Equal(t, "4.20", set.Get(model.DocProformaInvoice).Items[0].UnitPrice)
	assert.Equal(t, 1, set.Get(model.DocProformaInvoice).Version)
}

func TestApplyAllBlockingFixesSkipsAmbiguous(t *testing.T) {
	// Two documents, identical timestamps and versions, disagreeing buyer.
	set := model.DocumentSet{
		model.DocProformaInvoice: widgetDoc(1, baseTime, "4.20", "4200.00", "4200.00"),
		model.DocSalesContract:   widgetDoc(1, baseTime, "4.20", "4200.00", "4200.00"),
	}
	set[model.DocSalesContract].Buyer.CompanyName = "Acme Gmbh"

	result, err := ApplyAllBlockingFixes(set, model.StageContract)
	require.NoError(t, err)

	assert.Zero(t, result.AppliedCount)
	require.Len(t, result.SkippedAmbiguous, 1)
	assert.Equal(t, "BUYER_MISMATCH:buyer.companyName", result.SkippedAmbiguous[0])

	// Nothing changed, versions included.
	assert.Equal(t, 1, result.Documents.Get(model.DocSalesContract).Version)
	assert.Equal(t, "Acme Gmbh", result.Documents.Get(model.DocSalesContract).Buyer.CompanyName)
}

func TestOverridesResolveAmbiguousFindings(t *testing.T) {
	set := model.DocumentSet{
		model.DocProformaInvoice: widgetDoc(1, baseTime, "4.20", "4200.00", "4200.00"),
		model.DocSalesContract:   widgetDoc(1, baseTime, "4.20", "4200.00", "4200.00"),
	}
	set[model.DocSalesContract].Buyer.CompanyName = "Acme Gmbh"

	overrides := map[string]string{"BUYER_MISMATCH:buyer.companyName": "Acme GmbH"}
	result, err := ApplyBlockingFixes(set, model.StageContract, overrides)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AppliedCount)
	assert.Empty(t, result.SkippedAmbiguous)
	assert.Equal(t, "Acme GmbH", result.Documents.Get(model.DocSalesContract).Buyer.CompanyName)
	assert.Equal(t, 2, result.Documents.Get(model.DocSalesContract).Version)
	assert.Equal(t, 1, result.Documents.Get(model.DocProformaInvoice).Version)
}

func TestArithmeticFixRecalculates(t *testing.T) {
	doc := widgetDoc(1, baseTime, "45.00", "", "9,000.00")
	doc.Items[0].Qty = "100"
	set := model.DocumentSet{model.DocCommercialInvoice: doc}

	result, err := ApplyAllBlockingFixes(set, model.StageQuote)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AppliedCount)
	fixed := result.Documents.Get(model.DocCommercialInvoice)
	assert.Equal(t, "4500.00", fixed.DeclaredTotal)
	assert.Equal(t, "4500.00", fixed.Items[0].Amount)
	assert.Equal(t, 2, fixed.Version)

	after := detect.DetectCrossDocumentIssues(result.Documents, model.StageQuote)
	assert.Empty(t, after.Findings)
}

func TestApplyFixByID(t *testing.T) {
	set := driftedSet()
	detection := detect.DetectCrossDocumentIssues(set, model.StageContract)

	var priceID string
	for _, f := range detection.Findings {
		if f.FieldPath == "items[0].unitPrice" {
			priceID = f.ID
		}
	}
	require.NotEmpty(t, priceID)

	result, err := ApplyFix(set, model.StageContract, priceID, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AppliedCount)
	assert.Equal(t, "4.50", result.Documents.Get(model.DocProformaInvoice).Items[0].UnitPrice)
}

func TestApplyFixUnknownFinding(t *testing.T) {
	_, err := ApplyFix(driftedSet(), model.StageContract, "PRICE_MISMATCH:no.such.path", 0)
	assert.ErrorIs(t, err, common.ErrUnknownFinding)
}

func TestApplyFixBadActionIndex(t *testing.T) {
	set := driftedSet()
	detection := detect.DetectCrossDocumentIssues(set, model.StageContract)
	require.NotEmpty(t, detection.Findings)

	_, err := ApplyFix(set, model.StageContract, detection.Findings[0].ID, 99)
	assert.ErrorIs(t, err, common.ErrBadFixAction)
}

func TestChangesCarryOldAndNewValues(t *testing.T) {
	result, err := ApplyAllBlockingFixes(driftedSet(), model.StageContract)
	require.NoError(t, err)

	var sawPrice bool
	for _, c := range result.Changes {
		if c.Path == "items[0].unitPrice" && c.Doc == model.DocProformaInvoice {
			sawPrice = true
			assert.Equal(t, "4.20", c.OldValue)
			assert.Equal(t, "4.50", c.NewValue)
			assert.NotEmpty(t, c.FindingID)
		}
	}
	assert.True(t, sawPrice, "expected a recorded unit price change")
}

func TestTotalFixPropagatesWithoutLineItems(t *testing.T) {
	// Summary-style documents carry only a declared total. The newest value
	// must propagate as-is; there are no line items to recompute it from.
	pi := &model.DocumentSnapshot{
		Buyer:         model.Party{CompanyName: "Acme GmbH"},
		DeclaredTotal: "4000.00",
		Version:       2,
		LastModified:  baseTime.Add(2 * time.Hour),
	}
	ci := &model.DocumentSnapshot{
		Buyer:         model.Party{CompanyName: "Acme GmbH"},
		DeclaredTotal: "4500.00",
		Version:       1,
		LastModified:  baseTime,
	}
	set := model.DocumentSet{
		model.DocProformaInvoice:   pi,
		model.DocCommercialInvoice: ci,
	}

	result, err := ApplyAllBlockingFixes(set, model.StageQuote)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AppliedCount)
	assert.Empty(t, result.SkippedAmbiguous)
	assert.Equal(t, "4000.00", result.Documents.Get(model.DocCommercialInvoice).DeclaredTotal)
	assert.Equal(t, "4000.00", result.Documents.Get(model.DocProformaInvoice).DeclaredTotal)

	after := detect.DetectCrossDocumentIssues(result.Documents, model.StageQuote)
	assert.Empty(t, after.Findings)
}

func TestOverrideOnDerivedAmountSticks(t *testing.T) {
	// Identical timestamps and versions make the amount disagreement a true
	// tie; the user's answer is the only resolution and must stand even
	// though it differs from qty x unit price.
	mk := func(amount string) *model.DocumentSnapshot {
		return &model.DocumentSnapshot{
			Buyer:        model.Party{CompanyName: "Acme GmbH"},
			Items:        []model.LineItem{{SKU: "W-100", Qty: "1000", UnitPrice: "4.50", Amount: amount}},
			Version:      1,
			LastModified: baseTime,
		}
	}
	set := model.DocumentSet{
		model.DocProformaInvoice:   mk("4500.00"),
		model.DocCommercialInvoice: mk("4000.00"),
	}

	overrides := map[string]string{"PRICE_MISMATCH:items[0].amount": "4000.00"}
	result, err := ApplyBlockingFixes(set, model.StageQuote, overrides)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AppliedCount)
	assert.Empty(t, result.SkippedAmbiguous)
	assert.Equal(t, "4000.00", result.Documents.Get(model.DocProformaInvoice).Items[0].Amount)
	assert.Equal(t, "4000.00", result.Documents.Get(model.DocCommercialInvoice).Items[0].Amount)

	after := detect.DetectCrossDocumentIssues(result.Documents, model.StageQuote)
	_, present := after.FindingByID("PRICE_MISMATCH:items[0].amount")
	assert.False(t, present, "a confirmed finding must not survive its own resolution")
}

func TestOverrideOnDeclaredTotalSticks(t *testing.T) {
	set := model.DocumentSet{
		model.DocProformaInvoice:   widgetDoc(1, baseTime, "4.50", "4500.00", "4500.00"),
		model.DocCommercialInvoice: widgetDoc(1, baseTime, "4.50", "4500.00", "4000.00"),
	}

	overrides := map[string]string{"TOTAL_MISMATCH:totalAmount": "4500.00"}
	result, err := ApplyBlockingFixes(set, model.StageQuote, overrides)
	require.NoError(t, err)

	assert.Equal(t, "4500.00", result.Documents.Get(model.DocCommercialInvoice).DeclaredTotal)

	after := detect.DetectCrossDocumentIssues(result.Documents, model.StageQuote)
	assert.Empty(t, after.Findings)
}
