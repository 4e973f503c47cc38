package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Task status enum. The lifecycle is strictly forward; the only reverse edge
// (ACCEPTED back to POSTED) happens through the explicit unclaim operation and
// is deliberately not part of the transition table.
const (
	TaskStatusPosted     = "POSTED"
	TaskStatusAccepted   = "ACCEPTED"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusCompleted  = "COMPLETED"
)

// validTransitions is the forward adjacency of the task state machine.
// COMPLETED is terminal.
var validTransitions = map[string][]string{
	TaskStatusPosted:     {TaskStatusAccepted},
	TaskStatusAccepted:   {TaskStatusInProgress},
	TaskStatusInProgress: {TaskStatusCompleted},
	TaskStatusCompleted:  {},
}

// ValidTransition reports whether a task may move from current to target.
// A no-op transition is always legal.
func ValidTransition(current, target string) bool {
	if current == target {
		return true
	}
	for _, next := range validTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from current in one step.
func AllowedTransitions(current string) []string {
	return validTransitions[current]
}

type Task struct {
	ID            uuid.UUID        `json:"id"`
	RequesterID   uuid.UUID        `json:"requester_id"`
	WorkerID      *uuid.UUID       `json:"worker_id,omitempty"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Location      *string          `json:"location,omitempty"`
	Duration      *string          `json:"duration,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Status        string           `json:"status"`
	Rating        *int             `json:"rating,omitempty"`
	RatingComment *string          `json:"rating_comment,omitempty"`
	RatedAt       *time.Time       `json:"rated_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}
