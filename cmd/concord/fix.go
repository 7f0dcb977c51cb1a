package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lodret/concord/internal/cli"
	"github.com/lodret/concord/internal/common"
	"github.com/lodret/concord/internal/detect"
	"github.com/lodret/concord/internal/diagnose"
	"github.com/lodret/concord/internal/fix"
	"github.com/lodret/concord/internal/storage"
)

func fixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix <deal-file>",
		Short: "Apply recommended fixes for blocking findings",
		Long: `Diagnoses every blocking finding and applies the recommended fix for each
one with a confident diagnosis. Ambiguous findings are skipped; resolve those
with 'concord confirm'. Pass --finding and --action to apply one specific
candidate fix instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runFix,
	}

	cmd.Flags().String("stage", "", "override the deal stage (INQUIRY, QUOTE, CONTRACT, BULK)")
	cmd.Flags().String("finding", "", "apply a fix for this finding id only")
	cmd.Flags().Int("action", 0, "index of the candidate fix to apply (with --finding)")
	cmd.Flags().Bool("dry-run", false, "show what would change without writing the deal file")

	return cmd
}

func runFix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dealPath := args[0]

	stageFlag, _ := cmd.Flags().GetString("stage")
	findingID, _ := cmd.Flags().GetString("finding")
	actionIndex, _ := cmd.Flags().GetInt("action")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	deal, err := loadDeal(dealPath, stageFlag)
	if err != nil {
		return err
	}

	var result fix.Result
	if findingID != "" {
		result, err = fix.ApplyFix(deal.Documents, deal.Stage, findingID, actionIndex)
		if err != nil {
			return err
		}
	} else {
		if err := showFixPlan(deal); err != nil {
			return err
		}
		result, err = fix.ApplyAllBlockingFixes(deal.Documents, deal.Stage)
		if err != nil {
			return err
		}
	}

	for _, change := range result.Changes {
		fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("  %s %s: %q -> %q",
			change.Doc.DisplayName(), change.Path, change.OldValue, change.NewValue)))
	}
	if len(result.SkippedAmbiguous) > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d finding(s) need confirmation; run 'concord confirm %s'",
			len(result.SkippedAmbiguous), dealPath)))
	}

	if result.AppliedCount == 0 {
		fmt.Println(cli.FormatSuccess("No changes needed"))
		return nil
	}

	if dryRun {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Dry run: %d fix(es) not written", result.AppliedCount)))
		return nil
	}

	deal.Documents = result.Documents
	if err := storage.SaveDealFile(dealPath, deal); err != nil {
		return err
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Applied %d fix(es) to %s", result.AppliedCount, dealPath)))

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close storage", "error", err)
		}
	}()

	after := detect.DetectCrossDocumentIssues(deal.Documents, deal.Stage)
	sessionID, err := store.SaveReviewSession(ctx, dealPath, deal.Stage, &after)
	if err != nil {
		return fmt.Errorf("failed to save review session: %w", err)
	}
	if err := store.RecordAppliedFixes(ctx, sessionID, result.Changes); err != nil {
		return fmt.Errorf("failed to record applied fixes: %w", err)
	}
	common.LogInfo("Recorded fix session", common.Fields{
		"session_id": sessionID,
		"applied":    result.AppliedCount,
		"score":      after.Summary.Score,
	})

	return nil
}

// showFixPlan diagnoses each blocking finding and prints the intended
// resolution before anything is touched.
func showFixPlan(deal *storage.DealFile) error {
	result := detect.DetectCrossDocumentIssues(deal.Documents, deal.Stage)

	var blocking []detect.Finding
	for _, f := range result.Findings {
		if f.Severity == detect.SeverityBlocking {
			blocking = append(blocking, f)
		}
	}
	if len(blocking) == 0 {
		return nil
	}

	bar := progressbar.NewOptions(len(blocking),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Diagnosing findings..."),
	)

	var lines []string
	for _, f := range blocking {
		diag, err := diagnose.DiagnoseFinding(f, deal.Documents)
		if err != nil {
			return fmt.Errorf("failed to diagnose %s: %w", f.ID, err)
		}
		if diag.Ambiguous {
			lines = append(lines, cli.FormatWarning(fmt.Sprintf("%s: ambiguous, needs confirmation", f.ID)))
		} else {
			lines = append(lines, fmt.Sprintf("%s %s: %s", cli.SuccessIcon, f.ID, diag.Resolution.ActionSummary))
		}
		if err := bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
	if err := bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
	fmt.Fprintln(os.Stderr)

	for _, line := range lines {
		fmt.Println(line)
	}

	return nil
}
