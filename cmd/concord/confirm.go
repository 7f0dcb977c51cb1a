package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lodret/concord/internal/cli"
	"github.com/lodret/concord/internal/common"
	"github.com/lodret/concord/internal/confirm"
	"github.com/lodret/concord/internal/detect"
	"github.com/lodret/concord/internal/diagnose"
	"github.com/lodret/concord/internal/fix"
	"github.com/lodret/concord/internal/storage"
)

func confirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <deal-file>",
		Short: "Resolve ambiguous findings interactively, then apply fixes",
		Long: `Walks through every blocking finding whose diagnosis is too uncertain for
an automatic fix, asking which value is correct. Confirmed answers are applied
together with the confident fixes; skipped questions leave their findings
blocking.`,
		Args: cobra.ExactArgs(1),
		RunE: runConfirm,
	}

	cmd.Flags().String("stage", "", "override the deal stage (INQUIRY, QUOTE, CONTRACT, BULK)")
	cmd.Flags().Bool("dry-run", false, "show what would change without writing the deal file")

	return cmd
}

func runConfirm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dealPath := args[0]

	stageFlag, _ := cmd.Flags().GetString("stage")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	deal, err := loadDeal(dealPath, stageFlag)
	if err != nil {
		return err
	}

	result := detect.DetectCrossDocumentIssues(deal.Documents, deal.Stage)

	diagnoses := make(map[string]diagnose.Result)
	for _, f := range result.Findings {
		if f.Severity != detect.SeverityBlocking {
			continue
		}
		diag, err := diagnose.DiagnoseFinding(f, deal.Documents)
		if err != nil {
			return fmt.Errorf("failed to diagnose %s: %w", f.ID, err)
		}
		diagnoses[f.ID] = diag
	}

	questions := confirm.GenerateQuestions(result.Findings, diagnoses, deal.Documents)
	session := confirm.NewSession(questions)

	prompter := cli.NewPrompter(nil, nil)
	if err := prompter.Run(ctx, session); err != nil {
		return err
	}

	fixResult, err := fix.ApplyBlockingFixes(deal.Documents, deal.Stage, session.Overrides())
	if err != nil {
		return err
	}

	if fixResult.AppliedCount == 0 {
		fmt.Println(cli.FormatSuccess("No changes needed"))
		return nil
	}

	if dryRun {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Dry run: %d fix(es) not written", fixResult.AppliedCount)))
		return nil
	}

	deal.Documents = fixResult.Documents
	if err := storage.SaveDealFile(dealPath, deal); err != nil {
		return err
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Applied %d fix(es) to %s", fixResult.AppliedCount, dealPath)))

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
	if err := store.RecordAppliedFixes(ctx, sessionID, fixResult.Changes); err != nil {
		return fmt.Errorf("failed to record applied fixes: %w", err)
	}
	common.LogInfo("Recorded confirmation session", common.Fields{
		"session_id": sessionID,
		"applied":    fixResult.AppliedCount,
		"score":      after.Summary.Score,
	})

	return nil
}
