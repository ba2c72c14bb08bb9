package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anjiri1684/lesson_billing/calculator"
	"github.com/anjiri1684/lesson_billing/metrics"
	"github.com/anjiri1684/lesson_billing/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns student budgets and the append-only balance transaction log.
type LedgerService struct {
	db       *gorm.DB
	settings Settings
}

func NewLedgerService(db *gorm.DB, settings Settings) *LedgerService {
	return &LedgerService{db: db, settings: settings.withDefaults()}
}

type Balance struct {
	StudentID          uuid.UUID       `json:"student_id"`
	OrganizationID     uuid.UUID       `json:"organization_id"`
	CurrentBalance     decimal.Decimal `json:"current_balance"`
	Currency           string          `json:"currency"`
	LastSettlementDate *time.Time      `json:"last_settlement_date"`
}

type PostTransactionInput struct {
	StudentID        uuid.UUID
	OrganizationID   uuid.UUID
	Type             models.TransactionType
	Amount           decimal.Decimal
	Description      string
	RelatedLessonID  *uuid.UUID
	RelatedPaymentID *uuid.UUID
}

type TransactionFilter struct {
	Type  *models.TransactionType
	From  *time.Time
	To    *time.Time
	Page  int
	Limit int
}

type TransactionPage struct {
	Items []models.BalanceTransaction `json:"items"`
	Total int64                       `json:"total"`
	Page  int                         `json:"page"`
	Limit int                         `json:"limit"`
}

// ledgerEntry is a transaction about to be appended to a budget's chain.
type ledgerEntry struct {
	Type                models.TransactionType
	Amount              decimal.Decimal
	Description         string
	RelatedLessonID     *uuid.UUID
	RelatedPaymentID    *uuid.UUID
	RelatedSettlementID *uuid.UUID
}

// GetBalance returns zero in the organization's currency when no budget exists yet.
func (s *LedgerService) GetBalance(ctx context.Context, studentID, orgID uuid.UUID) (*Balance, error) {
	db := s.db.WithContext(ctx)
	if _, err := loadStudent(db, studentID, orgID); err != nil {
		return nil, err
	}

	budget, err := findBudget(db, studentID, orgID)
	if err != nil {
		return nil, err
	}
	if budget == nil {
		return &Balance{
			StudentID:      studentID,
			OrganizationID: orgID,
			CurrentBalance: decimal.Zero,
			Currency:       orgCurrency(db, orgID, s.settings.DefaultCurrency),
		}, nil
	}
	return &Balance{
		StudentID:          studentID,
		OrganizationID:     orgID,
		CurrentBalance:     budget.CurrentBalance,
		Currency:           budget.Currency,
		LastSettlementDate: budget.LastSettlementDate,
	}, nil
}

// PostTransaction appends one transaction and moves the budget balance in the same database transaction.
// No balance floor is enforced; a negative balance is debt.
func (s *LedgerService) PostTransaction(ctx context.Context, in PostTransactionInput) (*models.BalanceTransaction, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidOperation, in.Type)
	}

	var posted *models.BalanceTransaction
	err := runInTx(ctx, s.db, s.settings.MaxCommitAttempts, "ledger_post", func(tx *gorm.DB) error {
		if _, err := loadStudent(tx, in.StudentID, in.OrganizationID); err != nil {
			return err
		}
		budget, err := lockBudget(tx, in.StudentID, in.OrganizationID, s.settings.DefaultCurrency)
		if err != nil {
			return err
		}
		posted, err = appendEntry(tx, budget, ledgerEntry{
			Type:             in.Type,
			Amount:           in.Type.SignedAmount(in.Amount),
			Description:      in.Description,
			RelatedLessonID:  in.RelatedLessonID,
			RelatedPaymentID: in.RelatedPaymentID,
		})
		if err != nil {
			return err
		}
		return saveBudget(tx, budget)
	})
	if err != nil {
		slog.Error("Failed to post balance transaction", "student_id", in.StudentID, "type", in.Type, "error", err)
		return nil, err
	}

	metrics.LedgerTransactions.WithLabelValues(string(posted.Type)).Inc()
	slog.Info("Balance transaction posted",
		"student_id", in.StudentID, "type", posted.Type, "amount", posted.Amount, "balance_after", posted.BalanceAfter)
	return posted, nil
}

// AdjustBalance posts a staff correction. The amount keeps the caller's sign.
func (s *LedgerService) AdjustBalance(ctx context.Context, studentID, orgID uuid.UUID, amount decimal.Decimal, description string) (*models.BalanceTransaction, error) {
	return s.PostTransaction(ctx, PostTransactionInput{
		StudentID:      studentID,
		OrganizationID: orgID,
		Type:           models.TransactionAdjustment,
		Amount:         amount,
		Description:    description,
	})
}

// ListTransactions returns a page of the student's transactions, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, studentID, orgID uuid.UUID, filter TransactionFilter) (*TransactionPage, error) {
	db := s.db.WithContext(ctx)
	if _, err := loadStudent(db, studentID, orgID); err != nil {
		return nil, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 50
	}

	query := db.Model(&models.BalanceTransaction{}).
		Where("student_id = ? AND organization_id = ?", studentID, orgID)
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", calculator.StartOfDay(*filter.From))
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", calculator.StartOfDay(*filter.To).AddDate(0, 0, 1))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	var items []models.BalanceTransaction
	err := query.Order("sequence DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return &TransactionPage{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func loadStudent(tx *gorm.DB, studentID, orgID uuid.UUID) (*models.Student, error) {
	var student models.Student
	err := tx.Where("id = ? AND organization_id = ?", studentID, orgID).First(&student).Error
	if err != nil {
		return nil, notFound(err, "student", studentID)
	}
	return &student, nil
}

func orgCurrency(tx *gorm.DB, orgID uuid.UUID, fallback string) string {
	var org models.Organization
	if err := tx.Select("currency").Where("id = ?", orgID).First(&org).Error; err != nil || org.Currency == "" {
		return fallback
	}
	return org.Currency
}

func findBudget(tx *gorm.DB, studentID, orgID uuid.UUID) (*models.StudentBudget, error) {
	var budget models.StudentBudget
	err := tx.Where("student_id = ? AND organization_id = ?", studentID, orgID).First(&budget).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}
	return &budget, nil
}

// lockBudget returns the student's budget, creating it on first use, locked for the rest of tx.
func lockBudget(tx *gorm.DB, studentID, orgID uuid.UUID, defaultCurrency string) (*models.StudentBudget, error) {
	budget := models.StudentBudget{
		StudentID:      studentID,
		OrganizationID: orgID,
		CurrentBalance: decimal.Zero,
		Currency:       orgCurrency(tx, orgID, defaultCurrency),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "organization_id"}},
		DoNothing: true,
	}).Create(&budget).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create budget: %w", err)
	}

	var locked models.StudentBudget
	err = forUpdate(tx).Where("student_id = ? AND organization_id = ?", studentID, orgID).First(&locked).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock budget: %w", err)
	}
	return &locked, nil
}

// appendEntry writes the next link of the budget's chain and moves budget.CurrentBalance in memory.
// The caller persists the budget with saveBudget.
func appendEntry(tx *gorm.DB, budget *models.StudentBudget, entry ledgerEntry) (*models.BalanceTransaction, error) {
	var last models.BalanceTransaction
	var sequence int64 = 1
	err := tx.Select("sequence").
		Where("student_id = ?", budget.StudentID).
		Order("sequence DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger head: %w", err)
	}
	if last.Sequence > 0 {
		sequence = last.Sequence + 1
	}

	before := budget.CurrentBalance
	after := before.Add(entry.Amount)
	row := models.BalanceTransaction{
		StudentID:           budget.StudentID,
		OrganizationID:      budget.OrganizationID,
		Type:                entry.Type,
		Amount:              entry.Amount,
		BalanceBefore:       before,
		BalanceAfter:        after,
		Currency:            budget.Currency,
		Description:         entry.Description,
		RelatedLessonID:     entry.RelatedLessonID,
		RelatedPaymentID:    entry.RelatedPaymentID,
		RelatedSettlementID: entry.RelatedSettlementID,
		Sequence:            sequence,
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to append balance transaction: %w", err)
	}

	budget.CurrentBalance = after
	return &row, nil
}

// saveBudget writes the budget only if nobody else did since it was read.
func saveBudget(tx *gorm.DB, budget *models.StudentBudget) error {
	res := tx.Model(&models.StudentBudget{}).
		Where("id = ? AND version = ?", budget.ID, budget.Version).
		Updates(map[string]any{
			"current_balance":      budget.CurrentBalance,
			"last_settlement_date": budget.LastSettlementDate,
			"version":              budget.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update budget: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: budget %s changed concurrently", ErrConsistencyViolation, budget.ID)
	}
	budget.Version++
	return nil
}
