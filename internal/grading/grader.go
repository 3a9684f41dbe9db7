// Package grading implements the per-type answer grading rules. Everything
// here is pure: no I/O, no clocks, so the submit transaction can call it
// safely and tests can enumerate cases directly.
package grading

import (
	"strings"

	"github.com/google/uuid"

	"github.com/cardlet/cardlet-backend/internal/model"
)

// GradeQuestion reports whether the recorded answers for one question are
// correct.
//
// Select types are correct iff the set of selected option ids equals the
// correct option id set exactly — order-irrelevant, no partial credit for
// partial overlap. Free-text is correct iff exactly one answer with
// non-empty text was recorded; no text comparison is performed until the
// product decides on match semantics.
func GradeQuestion(q *model.QuizQuestion, answers []model.TestAnswer) bool {
	switch q.Type {
	case model.QuestionTypeSingleSelect, model.QuestionTypeMultiSelect:
		return gradeSelect(q, answers)
	case model.QuestionTypeFreeText:
		return gradeFreeText(answers)
	default:
		return false
	}
}

func gradeSelect(q *model.QuizQuestion, answers []model.TestAnswer) bool {
	selected := make(map[uuid.UUID]struct{}, len(answers))
	for _, a := range answers {
		if a.SelectedOptionID == nil {
			return false
		}
		selected[*a.SelectedOptionID] = struct{}{}
	}

	correct := q.CorrectOptionIDs()
	if len(selected) != len(correct) {
		return false
	}
	for id := range selected {
		if _, ok := correct[id]; !ok {
			return false
		}
	}
	return len(correct) > 0
}

func gradeFreeText(answers []model.TestAnswer) bool {
	if len(answers) != 1 {
		return false
	}
	a := answers[0]
	return a.TextAnswer != nil && strings.TrimSpace(*a.TextAnswer) != ""
}

// GradeTest grades every question of a snapshot against the recorded
// answers, keyed by question id. Unanswered questions grade incorrect. The
// score is the sum of point values of the questions graded correct.
func GradeTest(questions []model.QuizQuestion, answers map[uuid.UUID][]model.TestAnswer) (correct map[uuid.UUID]bool, score int) {
	correct = make(map[uuid.UUID]bool, len(questions))
	for i := range questions {
		q := &questions[i]
		ok := GradeQuestion(q, answers[q.ID])
		correct[q.ID] = ok
		if ok {
			score += q.Points
		}
	}
	return correct, score
}

// ValidateAnswers checks the answer set shape against the question type
// before anything is persisted. Violations surface as
// model.ErrInvalidAnswer.
//
// Rules: at least one answer; single-select takes exactly one selected
// option; select types take option answers only, and every option must
// belong to the question; free-text takes exactly one text answer and no
// options; an answer row carries either an option or text, never both,
// never neither.
func ValidateAnswers(q *model.QuizQuestion, answers []model.TestAnswer) error {
	if len(answers) == 0 {
		return model.ErrInvalidAnswer
	}

	for _, a := range answers {
		hasOption := a.SelectedOptionID != nil
		hasText := a.TextAnswer != nil && *a.TextAnswer != ""
		if hasOption == hasText {
			return model.ErrInvalidAnswer
		}
	}

	switch q.Type {
	case model.QuestionTypeSingleSelect:
		if len(answers) != 1 {
			return model.ErrInvalidAnswer
		}
		fallthrough
	case model.QuestionTypeMultiSelect:
		seen := make(map[uuid.UUID]struct{}, len(answers))
		for _, a := range answers {
			if a.SelectedOptionID == nil {
				return model.ErrInvalidAnswer
			}
			if !q.HasOption(*a.SelectedOptionID) {
				return model.ErrInvalidAnswer
			}
			if _, dup := seen[*a.SelectedOptionID]; dup {
				return model.ErrInvalidAnswer
			}
			seen[*a.SelectedOptionID] = struct{}{}
		}
	case model.QuestionTypeFreeText:
		if len(answers) != 1 || answers[0].TextAnswer == nil {
			return model.ErrInvalidAnswer
		}
	default:
		return model.ErrInvalidAnswer
	}
	return nil
}
