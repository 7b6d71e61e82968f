package raffle

import (
	"errors"
	"fmt"

	"chama-connect/internal/database"
)

var (
	ErrRaffleDisabled = errors.New("raffle is disabled")
	ErrCycleCompleted = errors.New("raffle cycle already completed")

	ErrCycleChanged   = database.ErrCycleChanged
	ErrCycleNotFound  = database.ErrCycleNotFound
	ErrWinnerNotFound = database.ErrWinnerNotFound
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InsufficientPoolError reports a draw that needs more eligible members
// than the cycle has left.
type InsufficientPoolError struct {
	Required  int
	Available int
}

func (e *InsufficientPoolError) Error() string {
	return fmt.Sprintf("insufficient eligible users: need %d, have %d", e.Required, e.Available)
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("raffle %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotificationError is logged after a committed draw and never returned.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("winners announcement: %v", e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
