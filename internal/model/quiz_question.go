package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates the supported quiz question types.
type QuestionType string

const (
	QuestionTypeSingleSelect QuestionType = "single_select"
	QuestionTypeMultiSelect  QuestionType = "multi_select"
	QuestionTypeFreeText     QuestionType = "free_text"
)

// QuizQuestion is an ordered question within a quiz. Immutable once its quiz
// is published.
type QuizQuestion struct {
	ID       uuid.UUID            `json:"id"`
	QuizID   uuid.UUID            `json:"quiz_id"`
	Content  string               `json:"content"`
	Type     QuestionType         `json:"type"`
	Points   int                  `json:"points"`
	OrderNum int                  `json:"order_num"`
	Options  []QuizQuestionOption `json:"options"`
}

// QuizQuestionOption is one selectable option (or, for free-text questions,
// one expected answer text) with its correctness flag.
type QuizQuestionOption struct {
	ID             uuid.UUID `json:"id"`
	QuizQuestionID uuid.UUID `json:"quiz_question_id"`
	Content        string    `json:"content"`
	IsCorrect      bool      `json:"is_correct"`
}

// CorrectOptionIDs returns the set of option ids marked correct.
func (q *QuizQuestion) CorrectOptionIDs() map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{})
	for _, o := range q.Options {
		if o.IsCorrect {
			ids[o.ID] = struct{}{}
		}
	}
	return ids
}

// HasOption reports whether the given option id belongs to this question.
func (q *QuizQuestion) HasOption(optionID uuid.UUID) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}
