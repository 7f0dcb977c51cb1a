// Package fix applies recommended resolutions to a document set. Applying is
// idempotent: re-running the bulk applier on its own output changes nothing
// and reports zero applied fixes.
package fix

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lodret/concord/internal/canonical"
	"github.com/lodret/concord/internal/common"
	"github.com/lodret/concord/internal/detect"
	"github.com/lodret/concord/internal/diagnose"
	"github.com/lodret/concord/internal/model"
)

// Change records one concrete value edit made while fixing.
type Change struct {
	FindingID string       `json:"findingId"`
	Doc       model.DocKey `json:"doc"`
	Path      string       `json:"path"`
	OldValue  string       `json:"oldValue"`
	NewValue  string       `json:"newValue"`
}

// Result is the outcome of a fix application pass.
type Result struct {
	Documents        model.DocumentSet `json:"-"`
	AppliedCount     int               `json:"appliedCount"`
	Changes          []Change          `json:"changes"`
	SkippedAmbiguous []string          `json:"skippedAmbiguous"`
}

// ApplyAllBlockingFixes resolves every blocking finding whose diagnosis is
// confident, propagating the diagnosed correct value to each disagreeing
// document and bumping touched document versions. Ambiguous findings are
// skipped and surfaced for the confirmation flow.
func ApplyAllBlockingFixes(set model.DocumentSet, stage model.Stage) (Result, error) {
	return ApplyBlockingFixes(set, stage, nil)
}

// ApplyBlockingFixes is ApplyAllBlockingFixes with forced values from
// confirmation answers. An override replaces the diagnoser's recommendation
// for that finding id, so even an ambiguous finding resolves.
func ApplyBlockingFixes(set model.DocumentSet, stage model.Stage, overrides map[string]string) (Result, error) {
	detection := detect.DetectCrossDocumentIssues(set, stage)
	work := set.Clone()
	res := Result{}

	for _, finding := range detection.Findings {
		if finding.Severity != detect.SeverityBlocking {
			continue
		}

		forced, hasOverride := overrides[finding.ID]
		var target string
		if hasOverride {
			target = forced
		} else {
			diag, err := diagnose.DiagnoseFinding(finding, set)
			if err != nil {
				return Result{}, fmt.Errorf("diagnosing %s: %w", finding.ID, err)
			}
			if diag.Ambiguous {
				res.SkippedAmbiguous = append(res.SkippedAmbiguous, finding.ID)
				continue
			}
			target = diag.RecommendedValue
		}

		actions := planActions(finding, detection.TotalsDiff, target, hasOverride)
		changed, updated, err := applyWithDiff(work, finding.ID, actions)
		if err != nil {
			return Result{}, fmt.Errorf("applying fix for %s: %w", finding.ID, err)
		}
		work = updated
		if len(changed) > 0 {
			res.AppliedCount++
			res.Changes = append(res.Changes, changed...)
		}
	}

	res.Documents = bumpTouched(work, res.Changes)
	if res.AppliedCount > 0 {
		slog.Debug("applied blocking fixes",
			"applied", res.AppliedCount,
			"changes", len(res.Changes),
			"skipped_ambiguous", len(res.SkippedAmbiguous))
	}
	return res, nil
}

// ApplyFix applies one candidate action of one finding. An unknown finding
// id or out-of-range action index is a caller bug and fails immediately.
func ApplyFix(set model.DocumentSet, stage model.Stage, findingID string, actionIndex int) (Result, error) {
	detection := detect.DetectCrossDocumentIssues(set, stage)
	finding, ok := detection.FindingByID(findingID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", common.ErrUnknownFinding, findingID)
	}
	if actionIndex < 0 || actionIndex >= len(finding.FixActions) {
		return Result{}, fmt.Errorf("%w: finding %s has %d actions, got index %d",
			common.ErrBadFixAction, findingID, len(finding.FixActions), actionIndex)
	}

	changed, updated, err := applyWithDiff(set.Clone(), findingID, finding.FixActions[actionIndex].Actions)
	if err != nil {
		return Result{}, fmt.Errorf("applying fix for %s: %w", findingID, err)
	}

	res := Result{Changes: changed}
	if len(changed) > 0 {
		res.AppliedCount = 1
	}
	res.Documents = bumpTouched(updated, changed)
	return res, nil
}

// planActions turns a diagnosed finding into concrete actions.
//
// Line-amount and total disagreements resolve by recalculation wherever the
// arithmetic is computable: amounts and totals are derived data, and writing
// qty x unitPrice is the only choice that cannot oscillate between passes.
// Scalar fields propagate the target value, with a trailing recalculation
// when a driving field (qty, unit price) changed so dependent amounts follow.
// When the finding's own path is a derived field the propagated value must
// stand, so no recalculation follows it.
func planActions(finding detect.Finding, totals detect.TotalsDiff, target string, forced bool) []detect.Action {
	if finding.Category == detect.CategoryArithmeticError {
		return []detect.Action{detect.RecalculateTotals{Doc: finding.DetectedValues[0].Doc}}
	}

	lineAmount := strings.HasSuffix(finding.FieldPath, ".amount")
	docTotal := finding.FieldPath == "totalAmount"
	derived := lineAmount || docTotal
	if derived && !forced && allComputable(finding, totals) {
		var actions []detect.Action
		for _, dv := range finding.DetectedValues {
			actions = append(actions, detect.RecalculateTotals{Doc: dv.Doc})
		}
		return actions
	}

	kind := canonical.KindText
	numeric := false
	switch finding.Category {
	case detect.CategoryPriceMismatch, detect.CategoryTotalMismatch:
		kind, numeric = canonical.KindMoney, true
	case detect.CategoryQtyMismatch:
		kind, numeric = canonical.KindQuantity, true
	}

	targetNorm := canonical.Normalize(target, kind).Norm
	var actions []detect.Action
	recalc := make(map[model.DocKey]bool)
	for _, dv := range finding.DetectedValues {
		if canonical.Normalize(dv.Value, kind).Norm == targetNorm {
			continue
		}
		actions = append(actions, detect.UpdateField{Doc: dv.Doc, Path: dv.FieldPath, Value: target})
		if numeric && !derived {
			recalc[dv.Doc] = true
		}
	}
	for _, doc := range model.AllDocKeys() {
		if recalc[doc] {
			actions = append(actions, detect.RecalculateTotals{Doc: doc})
		}
	}
	return actions
}

func allComputable(finding detect.Finding, totals detect.TotalsDiff) bool {
	for _, dv := range finding.DetectedValues {
		if !totals[dv.Doc].Computable {
			return false
		}
	}
	return true
}

// applyWithDiff runs actions against the set, recording every raw value that
// actually changed. Actions that rewrite a field to its existing value are
// not counted as changes.
func applyWithDiff(set model.DocumentSet, findingID string, actions []detect.Action) ([]Change, model.DocumentSet, error) {
	var changes []Change
	for _, action := range actions {
		doc := action.TargetDoc()
		before := set.Get(doc)
		updated, err := action.Apply(set)
		if err != nil {
			return nil, nil, err
		}
		changes = append(changes, diffSnapshot(findingID, doc, before, updated.Get(doc))...)
		set = updated
	}
	return changes, set, nil
}

// diffSnapshot compares every canonical path of one document before and
// after an action.
func diffSnapshot(findingID string, doc model.DocKey, before, after *model.DocumentSnapshot) []Change {
	var changes []Change
	record := func(path string) {
		oldV, _ := canonical.GetValue(before, path)
		newV, _ := canonical.GetValue(after, path)
		if oldV != newV {
			changes = append(changes, Change{FindingID: findingID, Doc: doc, Path: path, OldValue: oldV, NewValue: newV})
		}
	}
	for _, f := range canonical.DocumentFields() {
		record(f.Path)
	}
	for i := range after.Items {
		for _, lf := range canonical.LineFields() {
			record(canonical.LinePath(i, lf.Name))
		}
	}
	return changes
}

// bumpTouched increments the version of every document that changed. Fixing
// never deletes or reorders line items, so touched documents keep their item
// identity with only scalar values updated.
func bumpTouched(set model.DocumentSet, changes []Change) model.DocumentSet {
	touched := make(map[model.DocKey]bool)
	for _, c := range changes {
		touched[c.Doc] = true
	}
	if len(touched) == 0 {
		return set
	}
	now := time.Now()
	out := set.Clone()
	for doc := range touched {
		out[doc] = out[doc].Bumped(now)
	}
	return out
}
