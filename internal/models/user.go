package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles. Requesters post and pay for tasks; workers claim and fulfil them.
const (
	RoleRequester = "requester"
	RoleWorker    = "worker"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	RewardPoints int       `json:"reward_points"`
	CreatedAt    time.Time `json:"created_at"`
}
