package model

import (
	"time"

	"github.com/google/uuid"
)

// User is an account in the authoring subsystem. The test-taking core only
// needs it for ownership checks and the bootstrap tooling; registration and
// login live elsewhere.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
