package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lodret/concord/internal/cli"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded review sessions",
		RunE:  runSessions,
	}

	cmd.Flags().Int("limit", 20, "maximum number of sessions to show")

	return cmd
}

func runSessions(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close storage", "error", err)
		}
	}()

	sessions, err := store.ListReviewSessions(ctx, limit)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No review sessions recorded yet"))
		return nil
	}

	for _, s := range sessions {
		verdict := cli.FormatSuccess("safe")
		if s.BlockingCount > 0 {
			verdict = cli.FormatError(fmt.Sprintf("%d blocking", s.BlockingCount))
		}
		fmt.Printf("%s  %s  %-8s  score %3d  %s  %s\n",
			s.CreatedAt.Format("2006-01-02 15:04"),
			s.ID[:8],
			s.Stage,
			s.Score,
			verdict,
			cli.SubtleStyle.Render(s.DealFile))
	}

	return nil
}
