package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodret/concord/internal/confirm"
	"github.com/lodret/concord/internal/model"
)

func twoQuestions() []confirm.Question {
	return []confirm.Question{
		{
			FindingID: "BUYER_MISMATCH:buyer.companyName",
			FieldPath: "buyer.companyName",
			Prompt:    "Which value of buyer.companyName is correct?",
			Options: []confirm.Option{
				{Value: "Acme GmbH", Label: `"Acme GmbH" from Proforma Invoice v1`, SourceDoc: model.DocProformaInvoice, IsRecommended: true},
				{Value: "Acme Gmbh", Label: `"Acme Gmbh" from Sales Contract v1`, SourceDoc: model.DocSalesContract},
			},
		},
		{
			FindingID: "PRICE_MISMATCH:items[0].unitPrice",
			FieldPath: "items[0].unitPrice",
			Prompt:    "Which value of items[0].unitPrice is correct?",
			Options: []confirm.Option{
				{Value: "4.20", Label: `"4.20" from Proforma Invoice v1`, SourceDoc: model.DocProformaInvoice},
				{Value: "4.50", Label: `"4.50" from Sales Contract v1`, SourceDoc: model.DocSalesContract},
			},
		},
	}
}

func TestPrompterAnswersAndSkips(t *testing.T) {
	session := confirm.NewSession(twoQuestions())
	input := strings.NewReader("1\ns\n")
	var output bytes.Buffer

	prompter := NewPrompter(input, &output)
	require.NoError(t, prompter.Run(context.Background(), session))

	assert.Equal(t, confirm.StateComplete, session.State())
	overrides := session.Overrides()
	require.Len(t, overrides, 1)
	assert.Equal(t, "Acme GmbH", overrides["BUYER_MISMATCH:buyer.companyName"])

	out := output.String()
	assert.Contains(t, out, "Question 1 of 2")
	assert.Contains(t, out, "Question 2 of 2")
	assert.Contains(t, out, "(recommended)")
}

func TestPrompterRejectsInvalidChoice(t *testing.T) {
	session := confirm.NewSession(twoQuestions()[:1])
	input := strings.NewReader("9\nx\n2\n")
	var output bytes.Buffer

	prompter := NewPrompter(input, &output)
	require.NoError(t, prompter.Run(context.Background(), session))

	assert.Contains(t, output.String(), "Invalid choice")
	assert.Equal(t, "Acme Gmbh", session.Overrides()["BUYER_MISMATCH:buyer.companyName"])
}

func TestPrompterEmptySession(t *testing.T) {
	session := confirm.NewSession(nil)
	var output bytes.Buffer

	prompter := NewPrompter(strings.NewReader(""), &output)
	require.NoError(t, prompter.Run(context.Background(), session))

	assert.Contains(t, output.String(), "Nothing to confirm")
}

func TestPrompterStopsOnCanceledContext(t *testing.T) {
	session := confirm.NewSession(twoQuestions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prompter := NewPrompter(strings.NewReader("1\n1\n"), &bytes.Buffer{})
	err := prompter.Run(ctx, session)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrompterEOFIsError(t *testing.T) {
	session := confirm.NewSession(twoQuestions())

	prompter := NewPrompter(strings.NewReader(""), &bytes.Buffer{})
	err := prompter.Run(context.Background(), session)
	assert.Error(t, err)
}
