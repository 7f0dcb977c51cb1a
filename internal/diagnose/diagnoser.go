// Package diagnose ranks probable root causes for a finding and proposes a
// concrete resolution. Results are computed on demand from the finding and
// the document set that produced it and are never persisted: versions and
// timestamps change with every fix, so callers recompute after each pass.
package diagnose

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lodret/concord/internal/canonical"
	"github.com/lodret/concord/internal/detect"
	"github.com/lodret/concord/internal/model"
)

// ConfidentThreshold is the minimum top-cause probability for a diagnosis to
// drive an automatic fix. Anything below routes to the confirmation flow.
const ConfidentThreshold = 0.55

// Cause is one ranked probable explanation for a finding.
type Cause struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Resolution is the concrete recommended fix for a finding.
type Resolution struct {
	ActionSummary string `json:"actionSummary"`
	Rationale     string `json:"rationale"`
	RiskIfIgnored string `json:"riskIfIgnored"`
}

// Result is the diagnosis for one finding. The top-ranked cause is treated
// as "the" cause; probabilities need not sum to 1.
type Result struct {
	FindingID        string       `json:"findingId"`
	ProbableCauses   []Cause      `json:"probableCauses"`
	Resolution       Resolution   `json:"recommendedResolution"`
	RecommendedValue string       `json:"recommendedValue"`
	SourceDoc        model.DocKey `json:"sourceDoc,omitempty"`
	Ambiguous        bool         `json:"ambiguous"`
}

// riskForCategory is the fixed per-category consequence sentence.
func riskForCategory(c detect.Category) string {
	switch c {
	case detect.CategoryPriceMismatch:
		return "Buyer may be invoiced a different amount than quoted, risking payment disputes or chargebacks."
	case detect.CategoryQtyMismatch:
		return "Shipped quantity may not match the invoiced quantity, risking customs holds and short-shipment claims."
	case detect.CategoryBuyerMismatch:
		return "Documents naming different buyers are routinely rejected by banks and customs."
	case detect.CategoryTotalMismatch:
		return "Totals that disagree across documents will fail letter-of-credit review."
	case detect.CategoryArithmeticError:
		return "A document whose total does not match its own line items invites rejection and erodes buyer trust."
	default:
		return "Inconsistent wording can be cited in disputes over delivery obligations and payment timing."
	}
}

// DiagnoseFinding ranks probable causes for a finding. Heuristics apply in
// order, first match supplying the top cause: recency, version skew,
// unanimous-minority split, then a true tie which caps confidence below
// ConfidentThreshold and marks the finding ambiguous.
func DiagnoseFinding(f detect.Finding, set model.DocumentSet) (Result, error) {
	if f.Category == detect.CategoryArithmeticError {
		return diagnoseArithmetic(f), nil
	}

	groups, err := groupByValue(f, set)
	if err != nil {
		return Result{}, err
	}

	verdict := pickTopCause(groups, set)
	top := verdict.group

	res := Result{
		FindingID:        f.ID,
		RecommendedValue: top.raw,
		SourceDoc:        verdict.sourceDoc,
		Ambiguous:        verdict.probability < ConfidentThreshold,
	}

	res.ProbableCauses = append(res.ProbableCauses, Cause{Label: verdict.label, Probability: verdict.probability})
	var others []*valueGroup
	for _, g := range groups {
		if g.norm != top.norm {
			others = append(others, g)
		}
	}
	remaining := 1 - verdict.probability
	for _, g := range others {
		res.ProbableCauses = append(res.ProbableCauses, Cause{
			Label:       fmt.Sprintf("%q in %s is the intended value and the other documents drifted", g.raw, joinDocs(g.docs)),
			Probability: remaining / float64(len(others)),
		})
	}
	sort.SliceStable(res.ProbableCauses, func(i, j int) bool {
		return res.ProbableCauses[i].Probability > res.ProbableCauses[j].Probability
	})

	var stale []string
	for _, g := range others {
		for _, d := range g.docs {
			stale = append(stale, d.DisplayName())
		}
	}
	summary := fmt.Sprintf("Update %s in %s to %q, matching %s v%d.",
		f.FieldPath, strings.Join(stale, " and "), top.raw,
		verdict.sourceDoc.DisplayName(), set.Get(verdict.sourceDoc).Version)
	if res.Ambiguous {
		summary = fmt.Sprintf("Confirm the correct %s with the document owner before propagating a value.", f.FieldPath)
	}
	res.Resolution = Resolution{
		ActionSummary: summary,
		Rationale:     verdict.rationale,
		RiskIfIgnored: riskForCategory(f.Category),
	}
	return res, nil
}

func diagnoseArithmetic(f detect.Finding) Result {
	doc := f.DetectedValues[0].Doc
	return Result{
		FindingID:        f.ID,
		RecommendedValue: f.RecommendedValue,
		SourceDoc:        doc,
		ProbableCauses: []Cause{
			{Label: fmt.Sprintf("%s declared total was not recalculated after line item edits", doc.DisplayName()), Probability: 0.8},
			{Label: "a line quantity or unit price was mis-entered", Probability: 0.2},
		},
		Resolution: Resolution{
			ActionSummary: fmt.Sprintf("Recalculate line amounts and the declared total in %s; the computed sum is %s.", doc.DisplayName(), f.RecommendedValue),
			Rationale:     "The declared total disagrees with the document's own line items, which usually means the total predates the latest line edits.",
			RiskIfIgnored: riskForCategory(detect.CategoryArithmeticError),
		},
	}
}

// valueGroup is one distinct candidate value and the documents carrying it.
type valueGroup struct {
	norm string
	raw  string
	docs []model.DocKey
}

func groupByValue(f detect.Finding, set model.DocumentSet) ([]*valueGroup, error) {
	kind := kindForCategory(f.Category)
	byNorm := make(map[string]*valueGroup)
	var groups []*valueGroup
	for _, dv := range f.DetectedValues {
		if set.Get(dv.Doc) == nil {
			return nil, fmt.Errorf("finding %s references document %s which is not in the set", f.ID, dv.Doc)
		}
		norm := canonical.Normalize(dv.Value, kind).Norm
		g, ok := byNorm[norm]
		if !ok {
			g = &valueGroup{norm: norm, raw: dv.Value}
			byNorm[norm] = g
			groups = append(groups, g)
		}
		g.docs = append(g.docs, dv.Doc)
	}
	if len(groups) < 2 {
		return nil, fmt.Errorf("finding %s has no disagreement to diagnose", f.ID)
	}
	return groups, nil
}

func kindForCategory(c detect.Category) canonical.Kind {
	switch c {
	case detect.CategoryPriceMismatch, detect.CategoryTotalMismatch:
		return canonical.KindMoney
	case detect.CategoryQtyMismatch:
		return canonical.KindQuantity
	default:
		return canonical.KindText
	}
}

// verdict is the outcome of the heuristic cascade.
type verdict struct {
	group       *valueGroup
	sourceDoc   model.DocKey
	label       string
	rationale   string
	probability float64
}

func pickTopCause(groups []*valueGroup, set model.DocumentSet) verdict {
	totalDocs := 0
	for _, g := range groups {
		totalDocs += len(g.docs)
	}

	// Heuristic 1: recency. A unique most-recently-modified document wins,
	// with probability scaled by its lead over the rest, capped at 0.9.
	newestDoc, newestTS, uniqueNewest := newestDocument(groups, set)
	if uniqueNewest {
		var oldest, nextNewest time.Time
		first := true
		for _, g := range groups {
			for _, d := range g.docs {
				ts := set.Get(d).LastModified
				if first || ts.Before(oldest) {
					oldest = ts
					first = false
				}
				if d != newestDoc && ts.After(nextNewest) {
					nextNewest = ts
				}
			}
		}
		span := newestTS.Sub(oldest)
		lead := newestTS.Sub(nextNewest)
		ratio := 1.0
		if span > 0 {
			ratio = float64(lead) / float64(span)
		}
		p := 0.5 + 0.4*ratio
		if p > 0.9 {
			p = 0.9
		}
		g := groupOf(groups, newestDoc)
		return verdict{
			group:       g,
			sourceDoc:   newestDoc,
			label:       fmt.Sprintf("%s was edited most recently; the other documents hold stale values not yet synced", newestDoc.DisplayName()),
			rationale:   fmt.Sprintf("%s was modified after every other document carrying this field, so its value most likely reflects the latest agreed change.", newestDoc.DisplayName()),
			probability: p,
		}
	}

	// Heuristic 2: version skew. Timestamps tie but a unique highest version
	// counter wins with probability 0.7.
	topDoc, uniqueVersion := highestVersion(groups, set)
	if uniqueVersion {
		g := groupOf(groups, topDoc)
		return verdict{
			group:       g,
			sourceDoc:   topDoc,
			label:       fmt.Sprintf("%s carries the highest version; older revisions were never propagated", topDoc.DisplayName()),
			rationale:   fmt.Sprintf("Timestamps do not separate the candidates, but %s has been revised more times than the documents that disagree with it.", topDoc.DisplayName()),
			probability: 0.7,
		}
	}

	// Heuristic 3: unanimous-minority split. N-1 of N agreeing suggests a
	// single fat-finger edit in the outlier.
	if len(groups) == 2 {
		majority, minority := groups[0], groups[1]
		if len(minority.docs) > len(majority.docs) {
			majority, minority = minority, majority
		}
		if len(minority.docs) == 1 && len(majority.docs) == totalDocs-1 && totalDocs >= 3 {
			outlier := minority.docs[0]
			return verdict{
				group:       majority,
				sourceDoc:   majority.docs[0],
				label:       fmt.Sprintf("a single out-of-band edit in %s diverged from the agreed value", outlier.DisplayName()),
				rationale:   fmt.Sprintf("Every document except %s agrees, which points to one accidental edit rather than a coordinated change.", outlier.DisplayName()),
				probability: 0.6,
			}
		}
	}

	// True tie: no signal separates the candidates. Confidence stays below
	// the threshold, routing the finding to the confirmation flow.
	g := groups[0]
	return verdict{
		group:       g,
		sourceDoc:   g.docs[0],
		label:       "no timestamp or version signal distinguishes the candidate values",
		rationale:   "The disagreeing documents share the same modification time and version, so the correct value cannot be inferred automatically.",
		probability: 0.5,
	}
}

// newestDocument finds the document with the strictly latest timestamp among
// those carrying the disputed field. The third return is false when the
// newest timestamp is shared.
func newestDocument(groups []*valueGroup, set model.DocumentSet) (model.DocKey, time.Time, bool) {
	var newestDoc model.DocKey
	var newestTS time.Time
	unique := false
	for _, g := range groups {
		for _, d := range g.docs {
			ts := set.Get(d).LastModified
			switch {
			case newestDoc == "" || ts.After(newestTS):
				newestDoc, newestTS, unique = d, ts, true
			case ts.Equal(newestTS):
				unique = false
			}
		}
	}
	return newestDoc, newestTS, unique
}

// highestVersion finds the document with the strictly highest version
// counter. The second return is false when the top version is shared.
func highestVersion(groups []*valueGroup, set model.DocumentSet) (model.DocKey, bool) {
	var topDoc model.DocKey
	topVersion := -1
	unique := false
	for _, g := range groups {
		for _, d := range g.docs {
			v := set.Get(d).Version
			switch {
			case v > topVersion:
				topDoc, topVersion, unique = d, v, true
			case v == topVersion:
				unique = false
			}
		}
	}
	return topDoc, unique
}

func groupOf(groups []*valueGroup, doc model.DocKey) *valueGroup {
	for _, g := range groups {
		for _, d := range g.docs {
			if d == doc {
				return g
			}
		}
	}
	return groups[0]
}

func joinDocs(docs []model.DocKey) string {
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.DisplayName())
	}
	return strings.Join(names, " and ")
}
