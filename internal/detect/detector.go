package detect

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lodret/concord/internal/canonical"
	"github.com/lodret/concord/internal/model"
)

// DetectCrossDocumentIssues compares every canonical field present in at
// least two snapshots, checks each document's own arithmetic, and reports
// stage-required documents that are absent. The pass is deterministic: for a
// fixed input the finding ids and ordering are identical on every run.
func DetectCrossDocumentIssues(set model.DocumentSet, stage model.Stage) CrossCheckResult {
	docs := set.Present()
	var findings []Finding
	okCount := 0

	// Document-scoped fields.
	for _, field := range canonical.DocumentFields() {
		var values []docValue
		for _, doc := range docs {
			raw, _ := canonical.GetValue(set.Get(doc), field.Path)
			v := canonical.Normalize(raw, field.Kind)
			if v.IsEmpty() {
				continue
			}
			values = append(values, docValue{doc: doc, path: field.Path, value: v})
		}
		if len(values) < 2 {
			continue
		}
		if allAgree(values) {
			okCount++
			continue
		}
		findings = append(findings, buildMismatchFinding(set, field.Group, field.Path, values))
	}

	// Line-scoped fields across aligned items.
	rows := canonical.AlignItems(set)
	for r, row := range rows {
		if len(row.Index) < 2 {
			continue
		}
		for _, lf := range canonical.LineFields() {
			var values []docValue
			for _, doc := range docs {
				idx, ok := row.Index[doc]
				if !ok {
					continue
				}
				ownPath := canonical.LinePath(idx, lf.Name)
				raw, _ := canonical.GetValue(set.Get(doc), ownPath)
				v := canonical.Normalize(raw, lf.Kind)
				if v.IsEmpty() {
					continue
				}
				values = append(values, docValue{doc: doc, path: ownPath, value: v})
			}
			if len(values) < 2 {
				continue
			}
			if allAgree(values) {
				okCount++
				continue
			}
			findings = append(findings, buildMismatchFinding(set, lf.Group, canonical.LinePath(r, lf.Name), values))
		}
	}

	// Per-document arithmetic: declared total vs the document's own line sum.
	// A discrepancy here needs no second document to disagree.
	totalsDiff := make(TotalsDiff, len(docs))
	for _, doc := range docs {
		entry, finding := checkArithmetic(set, doc)
		totalsDiff[doc] = entry
		if finding != nil {
			findings = append(findings, *finding)
		} else if entry.Computable {
			okCount++
		}
	}

	// Stage-required documents absent from the set.
	var missing []MissingDoc
	for _, required := range model.RequiredDocs(stage) {
		if set.Get(required) == nil {
			missing = append(missing, MissingDoc{
				Doc:        required,
				Suggestion: fmt.Sprintf("Generate the %s before sending the %s-stage package.", required.DisplayName(), strings.ToLower(string(stage))),
			})
		}
	}

	sortFindings(findings)

	return CrossCheckResult{
		Summary:     summarize(findings, okCount),
		Findings:    findings,
		MissingDocs: missing,
		ItemDiff:    buildItemDiff(set, rows),
		TotalsDiff:  totalsDiff,
	}
}

type docValue struct {
	doc   model.DocKey
	path  string
	value canonical.Value
}

func allAgree(values []docValue) bool {
	for _, v := range values[1:] {
		if !v.value.Equal(values[0].value) {
			return false
		}
	}
	return true
}

// categoryForGroup maps a field's semantic group to a finding category.
func categoryForGroup(g canonical.Group) Category {
	switch g {
	case canonical.GroupQty:
		return CategoryQtyMismatch
	case canonical.GroupPrice, canonical.GroupAmount:
		return CategoryPriceMismatch
	case canonical.GroupBuyer:
		return CategoryBuyerMismatch
	case canonical.GroupTotal:
		return CategoryTotalMismatch
	default:
		// Terms wording, ports, and validity dates are informational.
		return CategoryTermsMismatch
	}
}

// buildMismatchFinding assembles a finding for one disputed field, including
// candidate fix actions for each distinct value observed.
func buildMismatchFinding(set model.DocumentSet, group canonical.Group, fieldPath string, values []docValue) Finding {
	category := categoryForGroup(group)
	severity := severityForCategory(category)

	detected := make([]DetectedValue, 0, len(values))
	for _, v := range values {
		detected = append(detected, DetectedValue{Doc: v.doc, FieldPath: v.path, Value: v.value.Raw})
	}

	recommended, recommendedDoc := mostRecentValue(set, values)

	f := Finding{
		ID:               findingID(category, fieldPath),
		Category:         category,
		Severity:         severity,
		Title:            fmt.Sprintf("%s disagrees across documents", fieldPath),
		Description:      describeDisagreement(fieldPath, values),
		FieldPath:        fieldPath,
		DetectedValues:   detected,
		RecommendedValue: recommended,
	}
	f.FixActions = buildFixActions(set, group, values, recommendedDoc)
	return f
}

// mostRecentValue returns the value of the most recently modified document
// among the disagreeing ones, or empty strings when the newest timestamp is
// shared by documents that still disagree.
func mostRecentValue(set model.DocumentSet, values []docValue) (string, model.DocKey) {
	var newest time.Time
	for _, v := range values {
		if ts := set.Get(v.doc).LastModified; ts.After(newest) {
			newest = ts
		}
	}
	var raw, norm string
	var doc model.DocKey
	for _, v := range values {
		if !set.Get(v.doc).LastModified.Equal(newest) {
			continue
		}
		if doc == "" {
			raw, norm, doc = v.value.Raw, v.value.Norm, v.doc
			continue
		}
		if v.value.Norm != norm {
			return "", "" // newest timestamp is tied across disagreeing values
		}
	}
	return raw, doc
}

func describeDisagreement(fieldPath string, values []docValue) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%s has %q", v.doc.DisplayName(), v.value.Raw))
	}
	return fmt.Sprintf("%s: %s.", fieldPath, strings.Join(parts, ", "))
}

// buildFixActions produces one candidate action per distinct observed value,
// recommended candidate first. Quantity and unit-price fixes carry a trailing
// recalculation step per touched document so line amounts and declared
// totals stay internally consistent after the update. Writes to amounts and
// totals themselves get no recalculation: it would overwrite the chosen
// value with qty x unitPrice.
func buildFixActions(set model.DocumentSet, group canonical.Group, values []docValue, recommendedDoc model.DocKey) []FixAction {
	recalcAfter := group == canonical.GroupQty || group == canonical.GroupPrice

	type candidate struct {
		norm   string
		raw    string
		source model.DocKey
	}
	var candidates []candidate
	seen := make(map[string]bool)
	// Recommended candidate first, then first-appearance order.
	for pass := 0; pass < 2; pass++ {
		for _, v := range values {
			if pass == 0 && v.doc != recommendedDoc {
				continue
			}
			if seen[v.value.Norm] {
				continue
			}
			seen[v.value.Norm] = true
			candidates = append(candidates, candidate{norm: v.value.Norm, raw: v.value.Raw, source: v.doc})
		}
	}

	actions := make([]FixAction, 0, len(candidates))
	for _, c := range candidates {
		var steps []Action
		recalc := make(map[model.DocKey]bool)
		for _, v := range values {
			if v.value.Norm == c.norm {
				continue
			}
			steps = append(steps, UpdateField{Doc: v.doc, Path: v.path, Value: c.raw})
			if recalcAfter {
				recalc[v.doc] = true
			}
		}
		for _, doc := range model.AllDocKeys() {
			if recalc[doc] {
				steps = append(steps, RecalculateTotals{Doc: doc})
			}
		}
		if len(steps) == 0 {
			continue
		}
		actions = append(actions, FixAction{
			Label:   fmt.Sprintf("Use %q everywhere, matching %s v%d", c.raw, c.source.DisplayName(), set.Get(c.source).Version),
			Actions: steps,
		})
	}
	return actions
}

// checkArithmetic recomputes one document's line sum and compares it with
// the declared total. Documents with unparseable lines or a blank declared
// total are reported as not computable rather than failed.
func checkArithmetic(set model.DocumentSet, doc model.DocKey) (TotalEntry, *Finding) {
	snap := set.Get(doc)
	entry := TotalEntry{Declared: snap.DeclaredTotal}

	declared := canonical.Normalize(snap.DeclaredTotal, canonical.KindMoney)
	if declared.IsEmpty() || declared.Unparseable || len(snap.Items) == 0 {
		return entry, nil
	}

	var sum int64
	for _, item := range snap.Items {
		qty := canonical.Normalize(item.Qty, canonical.KindQuantity)
		price := canonical.Normalize(item.UnitPrice, canonical.KindMoney)
		if qty.IsEmpty() || price.IsEmpty() || qty.Unparseable || price.Unparseable {
			return entry, nil
		}
		sum += qty.Units * price.Cents
	}

	entry.Computable = true
	entry.Computed = canonical.FormatCents(sum)
	entry.Matches = sum == declared.Cents
	if entry.Matches {
		return entry, nil
	}

	f := Finding{
		ID:       findingID(CategoryArithmeticError, string(doc)+".totalAmount"),
		Category: CategoryArithmeticError,
		Severity: severityForCategory(CategoryArithmeticError),
		Title:    fmt.Sprintf("%s total does not match its line items", doc.DisplayName()),
		Description: fmt.Sprintf("%s declares a total of %q but its line items sum to %s.",
			doc.DisplayName(), snap.DeclaredTotal, entry.Computed),
		FieldPath: "totalAmount",
		DetectedValues: []DetectedValue{
			{Doc: doc, FieldPath: "totalAmount", Value: snap.DeclaredTotal},
			{Doc: doc, FieldPath: "items.sum", Value: entry.Computed},
		},
		RecommendedValue: entry.Computed,
		FixActions: []FixAction{{
			Label:   fmt.Sprintf("Recalculate %s amounts and total from qty × unit price", doc.DisplayName()),
			Actions: []Action{RecalculateTotals{Doc: doc}},
		}},
	}
	return entry, &f
}

// findingID derives a stable identifier from category and field path, so an
// unresolved finding reappears with the same id on the next pass.
func findingID(category Category, fieldPath string) string {
	return string(category) + ":" + fieldPath
}

// sortFindings applies the stable output order: severity desc, then
// category, then field path.
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if severityRank(a.Severity) != severityRank(b.Severity) {
			return severityRank(a.Severity) < severityRank(b.Severity)
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.ID < b.ID
	})
}

func summarize(findings []Finding, okCount int) Summary {
	s := Summary{OKCount: okCount}
	penalty := 0
	for _, f := range findings {
		switch f.Severity {
		case SeverityBlocking:
			s.BlockingCount++
			penalty += PenaltyBlocking
		case SeverityWarning:
			s.WarningCount++
			penalty += PenaltyWarning
		}
	}
	s.Score = 100 - penalty
	if s.Score < 0 {
		s.Score = 0
	}
	return s
}

// buildItemDiff assembles the aligned per-line view for the report UI.
func buildItemDiff(set model.DocumentSet, rows []canonical.Alignment) ItemDiff {
	diff := ItemDiff{}
	for _, row := range rows {
		label := row.Key
		if row.SKU != "" {
			label = row.SKU
		}
		r := ItemRow{Label: label, Cells: make(map[model.DocKey]LineCell)}
		for _, doc := range set.Present() {
			idx, ok := row.Index[doc]
			if !ok {
				r.Cells[doc] = LineCell{}
				continue
			}
			item := set.Get(doc).Items[idx]
			r.Cells[doc] = LineCell{Present: true, Qty: item.Qty, UnitPrice: item.UnitPrice, Amount: item.Amount}
		}
		diff.Rows = append(diff.Rows, r)
	}
	return diff
}
