package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lodret/concord/internal/detect"
	"github.com/lodret/concord/internal/model"
)

// ResultFormatter renders a cross-check result for terminal display.
type ResultFormatter struct {
	blocking lipgloss.Style
	warning  lipgloss.Style
	ok       lipgloss.Style
	subtle   lipgloss.Style
	score    lipgloss.Style
}

// NewResultFormatter creates a formatter with default styles.
func NewResultFormatter() *ResultFormatter {
	return &ResultFormatter{
		blocking: lipgloss.NewStyle().Bold(true).Foreground(ErrorColor),
		warning:  lipgloss.NewStyle().Foreground(WarningColor),
		ok:       lipgloss.NewStyle().Foreground(SuccessColor),
		subtle:   SubtleStyle,
		score:    lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor),
	}
}

// FormatSummary renders the readiness banner and per-severity counts.
func (f *ResultFormatter) FormatSummary(result *detect.CrossCheckResult) string {
	var sections []string

	s := result.Summary
	scoreLine := f.score.Render(fmt.Sprintf("Readiness score: %d/100", s.Score))
	var verdict string
	if s.SubmissionSafe() {
		verdict = f.ok.Render(SuccessIcon + " submission-safe")
	} else {
		verdict = f.blocking.Render(fmt.Sprintf("%s %d blocking finding(s) gate submission", ErrorIcon, s.BlockingCount))
	}
	counts := f.subtle.Render(fmt.Sprintf("blocking %d · warnings %d · agreeing fields %d",
		s.BlockingCount, s.WarningCount, s.OKCount))
	sections = append(sections, RenderBox("Cross-document check", strings.Join([]string{scoreLine, verdict, counts}, "\n")))

	if len(result.MissingDocs) > 0 {
		var lines []string
		for _, m := range result.MissingDocs {
			lines = append(lines, fmt.Sprintf("%s %s — %s", WarningIcon, m.Doc.DisplayName(), m.Suggestion))
		}
		sections = append(sections, f.warning.Render(strings.Join(lines, "\n")))
	}

	for _, finding := range result.Findings {
		sections = append(sections, f.FormatFinding(finding))
	}

	return strings.Join(sections, "\n\n")
}

// FormatFinding renders one finding with its detected values and candidate
// fixes.
func (f *ResultFormatter) FormatFinding(finding detect.Finding) string {
	var parts []string

	badge := f.warning.Render("[WARNING]")
	if finding.Severity == detect.SeverityBlocking {
		badge = f.blocking.Render("[BLOCKING]")
	}
	parts = append(parts, fmt.Sprintf("%s %s", badge, finding.Title))
	parts = append(parts, "  "+finding.Description)

	for _, dv := range finding.DetectedValues {
		parts = append(parts, f.subtle.Render(fmt.Sprintf("    %s %s = %q", dv.Doc.DisplayName(), dv.FieldPath, dv.Value)))
	}
	if finding.RecommendedValue != "" {
		parts = append(parts, f.ok.Render(fmt.Sprintf("    recommended: %q", finding.RecommendedValue)))
	}
	for i, action := range finding.FixActions {
		parts = append(parts, f.subtle.Render(fmt.Sprintf("    fix[%d]: %s", i, action.Label)))
	}

	return strings.Join(parts, "\n")
}

// FormatTotals renders the per-document arithmetic view.
func (f *ResultFormatter) FormatTotals(totals detect.TotalsDiff) string {
	var lines []string
	for _, doc := range model.AllDocKeys() {
		entry, ok := totals[doc]
		if !ok {
			continue
		}
		switch {
		case !entry.Computable:
			lines = append(lines, f.subtle.Render(fmt.Sprintf("%s: declared %q (line sum not computable)", doc.DisplayName(), entry.Declared)))
		case entry.Matches:
			lines = append(lines, f.ok.Render(fmt.Sprintf("%s: %s matches line items", doc.DisplayName(), entry.Computed)))
		default:
			lines = append(lines, f.blocking.Render(fmt.Sprintf("%s: declared %q but line items sum to %s", doc.DisplayName(), entry.Declared, entry.Computed)))
		}
	}
	return strings.Join(lines, "\n")
}
