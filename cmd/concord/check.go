package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lodret/concord/internal/cli"
	"github.com/lodret/concord/internal/common"
	"github.com/lodret/concord/internal/detect"
)

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <deal-file>",
		Short: "Cross-check a deal's documents and score submission readiness",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}

	cmd.Flags().String("stage", "", "override the deal stage (INQUIRY, QUOTE, CONTRACT, BULK)")
	cmd.Flags().Bool("json", false, "emit the raw result as JSON instead of the styled report")
	cmd.Flags().Bool("no-save", false, "do not record this check as a review session")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dealPath := args[0]

	stageFlag, _ := cmd.Flags().GetString("stage")
	asJSON, _ := cmd.Flags().GetBool("json")
	noSave, _ := cmd.Flags().GetBool("no-save")

	deal, err := loadDeal(dealPath, stageFlag)
	if err != nil {
		return err
	}

	result := detect.DetectCrossDocumentIssues(deal.Documents, deal.Stage)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		formatter := cli.NewResultFormatter()
		fmt.Println(formatter.FormatSummary(&result))
		if totals := formatter.FormatTotals(result.TotalsDiff); totals != "" {
			fmt.Println()
			fmt.Println(totals)
		}
	}

	if !noSave {
		store, err := initStorage(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				slog.Warn("Failed to close storage", "error", err)
			}
		}()

		sessionID, err := store.SaveReviewSession(ctx, dealPath, deal.Stage, &result)
		if err != nil {
			return fmt.Errorf("failed to save review session: %w", err)
		}
		common.LogInfo("Recorded review session", common.Fields{"session_id": sessionID, "score": result.Summary.Score})
	}

	return nil
}
