package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/anjiri1684/lesson_billing/metrics"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultMaxAttempts = 3
	defaultCurrency    = "PLN"
)

// Settings carries the knobs shared by every service.
type Settings struct {
	DefaultCurrency   string
	MaxCommitAttempts int
}

func (s Settings) withDefaults() Settings {
	if s.DefaultCurrency == "" {
		s.DefaultCurrency = defaultCurrency
	}
	if s.MaxCommitAttempts < 1 {
		s.MaxCommitAttempts = defaultMaxAttempts
	}
	return s
}

// runInTx executes fn in a database transaction, retrying the whole transaction when it
// fails because of a concurrent writer. After the last attempt the failure becomes ErrConflict.
func runInTx(ctx context.Context, db *gorm.DB, attempts int, op string, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if attempt < attempts {
			metrics.TxRetries.WithLabelValues(op).Inc()
			slog.Warn("Transaction conflict, retrying", "operation", op, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff(attempt)):
			}
		}
	}

	metrics.TxConflicts.WithLabelValues(op).Inc()
	slog.Error("Transaction kept conflicting", "operation", op, "attempts", attempts, "error", err)
	return fmt.Errorf("%w: %s: %v", ErrConflict, op, err)
}

// retryBackoff spreads competing writers apart: 5ms, 10ms, 20ms ... capped at 200ms, plus jitter.
func retryBackoff(attempt int) time.Duration {
	base := 5 * time.Millisecond << min(attempt-1, 5)
	if base > 200*time.Millisecond {
		base = 200 * time.Millisecond
	}
	return base + time.Duration(rand.Int64N(int64(base)))
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrConsistencyViolation) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return true
		}
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// forUpdate adds a row lock where the dialect supports one. sqlite serializes writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
