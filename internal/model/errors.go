package model

import "errors"

// Domain errors shared by the repository and service layers. Everything else
// (driver errors, context cancellation) propagates wrapped and is treated as
// an opaque persistence failure by the API boundary.
var (
	// ErrRecordNotFound: the referenced test, question or quiz is absent.
	ErrRecordNotFound = errors.New("record not found")
	// ErrAccessDenied: the caller lacks rights on the quiz or does not own
	// the test.
	ErrAccessDenied = errors.New("access denied")
	// ErrTestEnded: a state-changing call against a terminal test.
	ErrTestEnded = errors.New("test already ended")
	// ErrTestNotEnd: result or review requested before the test ended.
	ErrTestNotEnd = errors.New("test not ended yet")
	// ErrInvalidAnswer: answer shape does not match the question type.
	ErrInvalidAnswer = errors.New("invalid answer for question type")
	// ErrRemainingTimeIncreased: a resolve call reported more remaining time
	// than is stored. Remaining time is monotonically non-increasing; an
	// increase is a caller error, never silently clamped.
	ErrRemainingTimeIncreased = errors.New("remaining time may not increase")
	// ErrQuizNotPublished: a test attempt was requested on an unpublished quiz.
	ErrQuizNotPublished = errors.New("quiz is not published")
)
