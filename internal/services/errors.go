package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/genielink/backend/internal/models"
)

// Failure conditions the engine reports. Callers match with errors.Is; the
// HTTP layer maps each to a status code. None of these are retryable by the
// engine itself.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadyAssigned   = errors.New("task already assigned")
	ErrAccessDenied      = errors.New("access denied")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
)

// invalidTransitionErr names the current status and the targets it allows.
func invalidTransitionErr(current string) error {
	allowed := models.AllowedTransitions(current)
	if len(allowed) == 0 {
		return fmt.Errorf("%w: task is %s (terminal)", ErrInvalidTransition, current)
	}
	return fmt.Errorf("%w: task is %s, allowed next: %s", ErrInvalidTransition, current, strings.Join(allowed, ", "))
}
