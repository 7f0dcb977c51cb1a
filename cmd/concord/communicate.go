package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lodret/concord/internal/comms"
	"github.com/lodret/concord/internal/detect"
	"github.com/lodret/concord/internal/diagnose"
)

func communicateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "communicate <deal-file>",
		Short: "Draft messages explaining a finding's resolution",
		Long: `Generates ready-to-send drafts about a finding: an email or chat message
for the buyer, an internal note for colleagues, and a forwarder notice.
Without --recipient and --channel every available draft is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommunicate,
	}

	cmd.Flags().String("stage", "", "override the deal stage (INQUIRY, QUOTE, CONTRACT, BULK)")
	cmd.Flags().String("finding", "", "finding id to communicate about (required)")
	cmd.Flags().String("recipient", "", "recipient (BUYER, INTERNAL, FORWARDER)")
	cmd.Flags().String("channel", "", "channel (email, chat, note)")
	cmd.Flags().String("lang", comms.DefaultLanguage, "message language")
	_ = cmd.MarkFlagRequired("finding")

	return cmd
}

func runCommunicate(cmd *cobra.Command, args []string) error {
	dealPath := args[0]

	stageFlag, _ := cmd.Flags().GetString("stage")
	findingID, _ := cmd.Flags().GetString("finding")
	recipient, _ := cmd.Flags().GetString("recipient")
	channel, _ := cmd.Flags().GetString("channel")
	lang, _ := cmd.Flags().GetString("lang")

	deal, err := loadDeal(dealPath, stageFlag)
	if err != nil {
		return err
	}

	result := detect.DetectCrossDocumentIssues(deal.Documents, deal.Stage)
	finding, ok := result.FindingByID(findingID)
	if !ok {
		return fmt.Errorf("no finding with id %q; run 'concord check %s' to list findings", findingID, dealPath)
	}

	diag, err := diagnose.DiagnoseFinding(finding, deal.Documents)
	if err != nil {
		return fmt.Errorf("failed to diagnose %s: %w", finding.ID, err)
	}

	msgCtx := comms.Context{
		SenderName:    viper.GetString("sender.name"),
		SenderCompany: viper.GetString("sender.company"),
		BuyerName:     viper.GetString("buyer.name"),
		BuyerCompany:  viper.GetString("buyer.company"),
	}

	kit, err := comms.GenerateKit(finding, diag, msgCtx)
	if err != nil {
		return err
	}

	if recipient != "" && channel != "" {
		msg, ok := kit.Message(comms.Recipient(recipient), comms.Channel(channel), lang)
		if !ok {
			return fmt.Errorf("no draft available for recipient %q on channel %q", recipient, channel)
		}
		fmt.Println(msg)
		return nil
	}

	for _, variant := range kit.Variants() {
		fmt.Printf("--- %s / %s / %s ---\n", variant.Recipient, variant.Channel, variant.Language)
		fmt.Println(variant.Body)
	}

	return nil
}
