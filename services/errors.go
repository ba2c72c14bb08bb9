package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the referenced record does not exist inside the caller's organization.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOperation is a business-rule violation. It is never retried.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrEmptyBatch is returned when a payout commit finds no qualified lessons.
	ErrEmptyBatch = fmt.Errorf("%w: no qualified lessons in period", ErrInvalidOperation)

	// ErrConsistencyViolation marks a transaction whose precondition was invalidated by a
	// concurrent writer. runInTx retries it and it is not returned to callers.
	ErrConsistencyViolation = errors.New("consistency violation")

	// ErrConflict is returned once a transaction kept conflicting after all retries.
	ErrConflict = errors.New("concurrent modification, try again")
)

func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsInvalidOperation(err error) bool { return errors.Is(err, ErrInvalidOperation) }
func IsConflict(err error) bool         { return errors.Is(err, ErrConflict) }
