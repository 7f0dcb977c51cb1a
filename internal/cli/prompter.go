package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/lodret/concord/internal/confirm"
)

// Prompter walks a confirmation session interactively, asking the user to
// resolve each ambiguous finding in turn.
type Prompter struct {
	writer io.Writer
	reader *bufio.Reader
}

// NewPrompter creates a prompter reading from reader and writing to writer.
// Nil arguments default to stdin and stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// Run drives the session until every question is answered or skipped.
func (p *Prompter) Run(ctx context.Context, session *confirm.Session) error {
	total := len(session.Questions())

	if total == 0 {
		if _, err := fmt.Fprintln(p.writer, FormatSuccess("Nothing to confirm; all blocking findings have a confident resolution.")); err != nil {
			return fmt.Errorf("failed to write completion notice: %w", err)
		}
		return nil
	}

	for session.State() != confirm.StateComplete {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		question, ok := session.Current()
		if !ok {
			break
		}

		if err := p.askQuestion(ctx, session, question, total); err != nil {
			return err
		}
	}

	answered := 0
	for _, a := range session.Answers() {
		if !a.Skipped {
			answered++
		}
	}
	summary := fmt.Sprintf("Confirmed %d of %d finding(s)", answered, total)
	if answered < total {
		summary += fmt.Sprintf("; %d left unresolved", total-answered)
	}
	if _, err := fmt.Fprintln(p.writer, FormatSuccess(summary)); err != nil {
		slog.Warn("Failed to write session summary", "error", err)
	}

	return nil
}

func (p *Prompter) askQuestion(ctx context.Context, session *confirm.Session, question confirm.Question, total int) error {
	header := fmt.Sprintf("Question %d of %d", session.Index()+1, total)
	content := p.formatQuestion(question)
	if _, err := fmt.Fprintln(p.writer, RenderBox(header, content)); err != nil {
		return fmt.Errorf("failed to write question box: %w", err)
	}

	valid := make([]string, 0, len(question.Options)+1)
	for i := range question.Options {
		valid = append(valid, strconv.Itoa(i+1))
	}
	valid = append(valid, "s")

	choice, err := p.promptChoice(ctx, fmt.Sprintf("Choice [1-%d, S to skip]", len(question.Options)), valid)
	if err != nil {
		return err
	}

	if choice == "s" {
		if err := session.Skip(); err != nil {
			return fmt.Errorf("failed to skip question: %w", err)
		}
		if _, err := fmt.Fprintln(p.writer, FormatWarning(fmt.Sprintf("Skipped %s; it stays blocking until confirmed", question.FieldPath))); err != nil {
			slog.Warn("Failed to write skip notice", "error", err)
		}
		return nil
	}

	idx, err := strconv.Atoi(choice)
	if err != nil {
		return fmt.Errorf("unexpected choice %q: %w", choice, err)
	}
	option := question.Options[idx-1]
	if err := session.Answer(option.Value); err != nil {
		return fmt.Errorf("failed to record answer: %w", err)
	}

	if _, err := fmt.Fprintln(p.writer, FormatSuccess(fmt.Sprintf("Will use %q for %s", option.Value, question.FieldPath))); err != nil {
		slog.Warn("Failed to write answer confirmation", "error", err)
	}

	return nil
}

func (p *Prompter) formatQuestion(question confirm.Question) string {
	var b strings.Builder

	b.WriteString(question.Prompt)
	b.WriteString("\n")

	for i, opt := range question.Options {
		line := fmt.Sprintf("  [%d] %s", i+1, opt.Label)
		if opt.IsRecommended {
			line = SuccessStyle.Render(line + "  (recommended)")
		}
		b.WriteString("\n" + line)
	}
	b.WriteString("\n  " + SubtleStyle.Render("[S] Skip; leave unresolved"))

	return b.String()
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return "", fmt.Errorf("input terminated")
			}
			return "", err
		}

		choice := strings.ToLower(strings.TrimSpace(input))

		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}
