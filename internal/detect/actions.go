package detect

import (
	"fmt"

	"github.com/lodret/concord/internal/canonical"
	"github.com/lodret/concord/internal/model"
)

// Action is one concrete document mutation. Every variant returns a new
// document set; the input is never modified. Version bumping is the fix
// applier's responsibility so that a multi-action fix bumps each touched
// document exactly once.
type Action interface {
	Describe() string
	TargetDoc() model.DocKey
	Apply(set model.DocumentSet) (model.DocumentSet, error)
}

// UpdateField sets a single canonical field on one document.
type UpdateField struct {
	Doc   model.DocKey
	Path  string
	Value string
}

// Describe returns a short human-readable summary of the change.
func (a UpdateField) Describe() string {
	return fmt.Sprintf("set %s in %s to %q", a.Path, a.Doc.DisplayName(), a.Value)
}

// TargetDoc returns the document this action mutates.
func (a UpdateField) TargetDoc() model.DocKey { return a.Doc }

// Apply writes the value into a fresh copy of the set.
func (a UpdateField) Apply(set model.DocumentSet) (model.DocumentSet, error) {
	snap := set.Get(a.Doc)
	if snap == nil {
		return nil, fmt.Errorf("cannot update %s: document %s is not in the set", a.Path, a.Doc)
	}
	out := set.Clone()
	if err := canonical.SetValue(out[a.Doc], a.Path, a.Value); err != nil {
		return nil, err
	}
	return out, nil
}

// RecalculateTotals recomputes one document's per-line amounts and declared
// total from qty x unitPrice. Lines whose qty or price cannot be parsed are
// left untouched; if any line is unparseable the declared total is also left
// alone rather than written from a partial sum. A document with no line items
// keeps its declared total: there is nothing to derive it from.
type RecalculateTotals struct {
	Doc model.DocKey
}

// Describe returns a short human-readable summary of the change.
func (a RecalculateTotals) Describe() string {
	return fmt.Sprintf("recalculate line amounts and declared total in %s", a.Doc.DisplayName())
}

// TargetDoc returns the document this action mutates.
func (a RecalculateTotals) TargetDoc() model.DocKey { return a.Doc }

// Apply recomputes amounts on a fresh copy of the set.
func (a RecalculateTotals) Apply(set model.DocumentSet) (model.DocumentSet, error) {
	snap := set.Get(a.Doc)
	if snap == nil {
		return nil, fmt.Errorf("cannot recalculate totals: document %s is not in the set", a.Doc)
	}
	out := set.Clone()
	target := out[a.Doc]

	var sum int64
	complete := true
	for i, item := range target.Items {
		qty := canonical.Normalize(item.Qty, canonical.KindQuantity)
		price := canonical.Normalize(item.UnitPrice, canonical.KindMoney)
		if qty.Unparseable || price.Unparseable {
			complete = false
			continue
		}
		lineCents := qty.Units * price.Cents
		target.Items[i].Amount = canonical.FormatCents(lineCents)
		sum += lineCents
	}
	if complete && len(target.Items) > 0 {
		target.DeclaredTotal = canonical.FormatCents(sum)
	}
	return out, nil
}
