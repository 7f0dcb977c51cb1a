// Package confirm turns ambiguous findings into user-facing disambiguation
// questions and tracks a review session consuming the answers. Answers
// become forced values that override the diagnoser when fixes are re-applied.
package confirm

import (
	"fmt"

	"github.com/lodret/concord/internal/common"
	"github.com/lodret/concord/internal/detect"
	"github.com/lodret/concord/internal/diagnose"
	"github.com/lodret/concord/internal/model"
)

// Option is one candidate value a user can choose for a disputed field.
type Option struct {
	Value         string       `json:"value"`
	Label         string       `json:"label"`
	SourceDoc     model.DocKey `json:"sourceDoc"`
	IsRecommended bool         `json:"isRecommended"`
}

// Question asks the user to pick the correct value for one ambiguous finding.
type Question struct {
	FindingID string   `json:"findingId"`
	FieldPath string   `json:"fieldPath"`
	Prompt    string   `json:"prompt"`
	Options   []Option `json:"options"`
}

// Answer records the user's decision for one question.
type Answer struct {
	FindingID string `json:"findingId"`
	Value     string `json:"value,omitempty"`
	Skipped   bool   `json:"skipped"`
}

// State is the lifecycle phase of a confirmation session.
type State string

// Session states.
const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateComplete   State = "COMPLETE"
)

// GenerateQuestions produces exactly one question per ambiguous finding, in
// the same stable order as the findings themselves. Findings whose diagnosis
// is confident get no question; they belong to the automatic fix path.
func GenerateQuestions(findings []detect.Finding, diagnoses map[string]diagnose.Result, set model.DocumentSet) []Question {
	var questions []Question
	for _, f := range findings {
		diag, ok := diagnoses[f.ID]
		if !ok || !diag.Ambiguous {
			continue
		}
		questions = append(questions, buildQuestion(f, diag, set))
	}
	return questions
}

func buildQuestion(f detect.Finding, diag diagnose.Result, set model.DocumentSet) Question {
	q := Question{
		FindingID: f.ID,
		FieldPath: f.FieldPath,
		Prompt:    fmt.Sprintf("Which value of %s is correct?", f.FieldPath),
	}
	seen := make(map[string]bool)
	for _, dv := range f.DetectedValues {
		if seen[dv.Value] {
			continue
		}
		seen[dv.Value] = true
		snap := set.Get(dv.Doc)
		version := 0
		if snap != nil {
			version = snap.Version
		}
		q.Options = append(q.Options, Option{
			Value:         dv.Value,
			Label:         fmt.Sprintf("%q from %s v%d", dv.Value, dv.Doc.DisplayName(), version),
			SourceDoc:     dv.Doc,
			IsRecommended: dv.Value == diag.RecommendedValue && dv.Doc == diag.SourceDoc,
		})
	}
	return q
}

// Session walks a fixed question list in order, consuming one answer or an
// explicit skip per step. It is complete only when every question has been
// answered or skipped.
type Session struct {
	questions []Question
	answers   []Answer
	index     int
	started   bool
}

// NewSession creates a session over the generated questions.
func NewSession(questions []Question) *Session {
	return &Session{questions: questions}
}

// State reports where the session is in its lifecycle. The session is in
// progress from the moment the first question is read, not only after it is
// answered.
func (s *Session) State() State {
	switch {
	case s.index >= len(s.questions):
		return StateComplete
	case !s.started:
		return StateNotStarted
	default:
		return StateInProgress
	}
}

// Index returns the position of the current question.
func (s *Session) Index() int { return s.index }

// Questions returns the full generated question list.
func (s *Session) Questions() []Question { return s.questions }

// Current returns the question awaiting an answer and marks the session as
// begun.
func (s *Session) Current() (Question, bool) {
	if s.index >= len(s.questions) {
		return Question{}, false
	}
	s.started = true
	return s.questions[s.index], true
}

// Answer consumes the current question with a chosen value.
func (s *Session) Answer(value string) error {
	q, ok := s.Current()
	if !ok {
		return common.ErrSessionComplete
	}
	s.answers = append(s.answers, Answer{FindingID: q.FindingID, Value: value})
	s.index++
	return nil
}

// Skip consumes the current question without resolving it. The finding stays
// blocking and reappears with the same id on the next detection pass.
func (s *Session) Skip() error {
	q, ok := s.Current()
	if !ok {
		return common.ErrSessionComplete
	}
	s.answers = append(s.answers, Answer{FindingID: q.FindingID, Skipped: true})
	s.index++
	return nil
}

// Answers returns everything consumed so far.
func (s *Session) Answers() []Answer {
	out := make([]Answer, len(s.answers))
	copy(out, s.answers)
	return out
}

// Overrides returns the forced values for re-applying fixes, keyed by
// finding id. Skipped questions contribute nothing.
func (s *Session) Overrides() map[string]string {
	out := make(map[string]string)
	for _, a := range s.answers {
		if !a.Skipped {
			out[a.FindingID] = a.Value
		}
	}
	return out
}
