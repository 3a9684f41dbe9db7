package model

import (
	"time"

	"github.com/google/uuid"
)

// Quiz is an authored, possibly published quiz. Read-only from the
// test-taking core's perspective: authoring and sharing are owned by the
// sibling subsystem and a published quiz's question list is immutable.
type Quiz struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	CreatorID   uuid.UUID `json:"creator_id"`
	Duration    int       `json:"duration"` // seconds
	TotalPoints int       `json:"total_points"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
}

// QuizSnapshot is the Redis-cached view of a published quiz: the quiz header
// plus its full ordered question list with answer keys. Server-internal only;
// handlers strip correctness before anything reaches a client.
type QuizSnapshot struct {
	Quiz      Quiz           `json:"quiz"`
	Questions []QuizQuestion `json:"questions"`
}
