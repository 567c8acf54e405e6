package engine

import (
	"errors"
	"fmt"

	"github.com/dukerupert/kidpoints/internal/database"
	"github.com/dukerupert/kidpoints/internal/store"
)

// Business-rule outcomes. Callers test them with errors.Is; the HTTP layer
// maps each to a status code.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrAlreadyCompleted    = errors.New("task already completed")
	ErrDuplicateAssignment = store.ErrDuplicateAssignment
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyGrantedBonus = errors.New("bonus already granted for this period")
	ErrNotEligible         = errors.New("not eligible for bonus")
	ErrInvalidTransition   = errors.New("invalid redemption transition")
	ErrRewardInactive      = errors.New("reward is not active")
	ErrConcurrencyConflict = errors.New("concurrent update conflict, retry")
)

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// classify turns lock contention into ErrConcurrencyConflict.
func classify(err error) error {
	if err != nil && database.IsBusy(err) {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return err
}
