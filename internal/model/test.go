package model

import (
	"time"

	"github.com/google/uuid"
)

// TestStatus enumerates test attempt states. Transitions are one-directional:
// NOT_STARTED → IN_PROGRESS → {SUBMITTED, ABANDONED}. Terminal states are
// never re-entered.
type TestStatus string

const (
	TestStatusNotStarted TestStatus = "NOT_STARTED"
	TestStatusInProgress TestStatus = "IN_PROGRESS"
	TestStatusSubmitted  TestStatus = "SUBMITTED"
	TestStatusAbandoned  TestStatus = "ABANDONED"
)

// Terminal reports whether the status is final.
func (s TestStatus) Terminal() bool {
	return s == TestStatusSubmitted || s == TestStatusAbandoned
}

// CanTransitionTo reports whether moving from s to next is a legal step of
// the state machine.
func (s TestStatus) CanTransitionTo(next TestStatus) bool {
	switch s {
	case TestStatusNotStarted:
		return next == TestStatusInProgress || next == TestStatusAbandoned
	case TestStatusInProgress:
		return next == TestStatusSubmitted || next == TestStatusAbandoned
	default:
		return false
	}
}

// Test is one user's timed attempt at a quiz. Never physically deleted; it
// only transitions to a terminal status.
type Test struct {
	ID                 uuid.UUID  `json:"id"`
	QuizID             uuid.UUID  `json:"quiz_id"`
	UserID             uuid.UUID  `json:"user_id"`
	Status             TestStatus `json:"status"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	Duration           int        `json:"duration"`       // seconds, snapshotted from the quiz
	RemainingTime      int        `json:"remaining_time"` // seconds, monotonically non-increasing
	TotalQuestions     int        `json:"total_questions"`
	CompletedQuestions int        `json:"completed_questions"`
	CurrentQuestionID  uuid.UUID  `json:"current_question_id"`
	Score              *int       `json:"score,omitempty"` // set only at submission
	CreatedAt          time.Time  `json:"created_at"`
}

// TestPatch carries only the fields a given operation is allowed to change.
// Repositories build the UPDATE from the set fields; nothing else is touched.
type TestPatch struct {
	Status             *TestStatus
	StartedAt          *time.Time
	SubmittedAt        *time.Time
	CurrentQuestionID  *uuid.UUID
	CompletedQuestions *int
	RemainingTime      *int
	Score              *int
}

// Empty reports whether the patch would change nothing.
func (p *TestPatch) Empty() bool {
	return p.Status == nil && p.StartedAt == nil && p.SubmittedAt == nil &&
		p.CurrentQuestionID == nil && p.CompletedQuestions == nil &&
		p.RemainingTime == nil && p.Score == nil
}

// TestQuestionResult is the per-question grading record for a test. Exactly
// one row per (test, quiz question), created eagerly at test creation so
// later quiz edits cannot change what is graded. IsCorrect stays null until
// submission.
type TestQuestionResult struct {
	ID             uuid.UUID `json:"id"`
	TestID         uuid.UUID `json:"test_id"`
	QuizQuestionID uuid.UUID `json:"quiz_question_id"`
	OrderNum       int       `json:"order_num"`
	IsCorrect      *bool     `json:"is_correct,omitempty"`
}

// TestAnswer is one raw recorded response to a question within a test.
type TestAnswer struct {
	ID               uuid.UUID  `json:"id"`
	TestID           uuid.UUID  `json:"test_id"`
	QuizQuestionID   uuid.UUID  `json:"quiz_question_id"`
	SelectedOptionID *uuid.UUID `json:"selected_option_id,omitempty"`
	TextAnswer       *string    `json:"text_answer,omitempty"`
	SpentTime        int        `json:"spent_time"` // seconds on this question
}

// ─── Request / response DTOs ────────────────────────────────────────────────

// CreateTestRequest is the payload for creating a new test attempt.
type CreateTestRequest struct {
	QuizID uuid.UUID `json:"quiz_id" binding:"required"`
}

// SaveTestAnswer is one answer entry in a resolve payload.
type SaveTestAnswer struct {
	SelectedOptionID *uuid.UUID `json:"selected_option_id" binding:"omitempty"`
	TextAnswer       *string    `json:"text_answer" binding:"omitempty,max=2000"`
	SpentTime        int        `json:"spent_time" binding:"min=0"`
}

// ResolveTestRequest is the payload for resolving (answering) a question.
// The submitted set replaces any previously recorded answers for the
// question.
type ResolveTestRequest struct {
	Answers       []SaveTestAnswer `json:"answers" binding:"required,min=1,dive"`
	RemainingTime int              `json:"remaining_time" binding:"min=0"`
}

// TestingOption is a question option as shown to the taker: no correctness.
type TestingOption struct {
	ID      uuid.UUID `json:"id"`
	Content string    `json:"content"`
}

// TestingQuestion is the in-progress view of one question: content, options
// with the answer key stripped, and whatever the user already answered so a
// resumed session shows prior input.
type TestingQuestion struct {
	ID          uuid.UUID       `json:"id"`
	Content     string          `json:"content"`
	Type        QuestionType    `json:"type"`
	Points      int             `json:"points"`
	OrderNum    int             `json:"order_num"`
	Options     []TestingOption `json:"options"`
	UserAnswers []TestAnswer    `json:"user_answers"`
}

// TestResult is the post-submission aggregate: the finalized test plus all
// per-question correctness flags.
type TestResult struct {
	Test    *Test                `json:"test"`
	Results []TestQuestionResult `json:"results"`
}

// SolutionView is the post-submission review of a single question: the
// question with its answer key, the user's recorded answers, the computed
// correctness and the time spent.
type SolutionView struct {
	Question    QuizQuestion `json:"question"`
	UserAnswers []TestAnswer `json:"user_answers"`
	IsCorrect   *bool        `json:"is_correct"`
	SpentTime   int          `json:"spent_time"`
}

// QuestionStatus is the per-question progress entry of the navigation
// overview: whether the question has recorded answers and, once the test
// ended, whether it was graded correct.
type QuestionStatus struct {
	QuizQuestionID uuid.UUID `json:"quiz_question_id"`
	OrderNum       int       `json:"order_num"`
	Answered       bool      `json:"answered"`
	IsCorrect      *bool     `json:"is_correct,omitempty"`
}

// ListTestsParams controls sorting and pagination of a user's test list.
type ListTestsParams struct {
	SortBy        string `form:"sort_by"`
	SortDirection string `form:"sort_direction"`
	Page          int    `form:"page"`
	PerPage       int    `form:"per_page"`
}
