package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/anjiri1684/lesson_billing/calculator"
	"github.com/anjiri1684/lesson_billing/metrics"
	"github.com/anjiri1684/lesson_billing/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SettlementService struct {
	db       *gorm.DB
	settings Settings
}

func NewSettlementService(db *gorm.DB, settings Settings) *SettlementService {
	return &SettlementService{db: db, settings: settings.withDefaults()}
}

// SettlementItem is one payment line of a settlement breakdown.
type SettlementItem struct {
	ID          uuid.UUID            `json:"id"`
	Amount      decimal.Decimal      `json:"amount"`
	Currency    string               `json:"currency"`
	Description string               `json:"description"`
	Date        time.Time            `json:"date"`
	Status      models.PaymentStatus `json:"status"`
	Method      string               `json:"method,omitempty"`
}

type SettlementPreview struct {
	StudentID             uuid.UUID        `json:"student_id"`
	OrganizationID        uuid.UUID        `json:"organization_id"`
	PeriodStart           time.Time        `json:"period_start"`
	PeriodEnd             time.Time        `json:"period_end"`
	TotalPaymentsDue      decimal.Decimal  `json:"total_payments_due"`
	TotalPaymentsReceived decimal.Decimal  `json:"total_payments_received"`
	PeriodBalance         decimal.Decimal  `json:"period_balance"`
	BalanceBefore         decimal.Decimal  `json:"balance_before"`
	BalanceAfter          decimal.Decimal  `json:"balance_after"`
	Currency              string           `json:"currency"`
	PaymentsDue           []SettlementItem `json:"payments_due"`
	PaymentsReceived      []SettlementItem `json:"payments_received"`
}

type CommitSettlementInput struct {
	StudentID      uuid.UUID
	OrganizationID uuid.UUID
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Notes          *string
}

type SettlementResult struct {
	Settlement *models.Settlement `json:"settlement"`
	Preview    *SettlementPreview `json:"preview"`
}

type StudentBalanceSummary struct {
	StudentID            uuid.UUID       `json:"student_id"`
	Name                 string          `json:"name"`
	CurrentBalance       decimal.Decimal `json:"current_balance"`
	Currency             string          `json:"currency"`
	LastSettlementDate   *time.Time      `json:"last_settlement_date"`
	PendingPaymentsCount int             `json:"pending_payments_count"`
	PendingPaymentsSum   decimal.Decimal `json:"pending_payments_sum"`
}

// Preview reconciles pending charges created in the period against payments completed in it.
// It reads the current balance and writes nothing.
func (s *SettlementService) Preview(ctx context.Context, studentID, orgID uuid.UUID, periodStart, periodEnd time.Time) (*SettlementPreview, error) {
	if err := checkPeriod(periodStart, periodEnd); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if _, err := loadStudent(db, studentID, orgID); err != nil {
		return nil, err
	}

	balanceBefore := decimal.Zero
	currency := orgCurrency(db, orgID, s.settings.DefaultCurrency)
	budget, err := findBudget(db, studentID, orgID)
	if err != nil {
		return nil, err
	}
	if budget != nil {
		balanceBefore = budget.CurrentBalance
		currency = budget.Currency
	}

	return buildPreview(db, studentID, orgID, periodStart, periodEnd, balanceBefore, currency)
}

// Commit snapshots the preview as a Settlement and moves the budget to its BalanceAfter
// in one transaction. The period must start after the student's latest settlement ended,
// so no payment is settled twice.
func (s *SettlementService) Commit(ctx context.Context, in CommitSettlementInput) (*SettlementResult, error) {
	if err := checkPeriod(in.PeriodStart, in.PeriodEnd); err != nil {
		return nil, err
	}
	slog.Info("Settlement commit request received",
		"student_id", in.StudentID, "period_start", in.PeriodStart, "period_end", in.PeriodEnd)

	var result *SettlementResult
	err := runInTx(ctx, s.db, s.settings.MaxCommitAttempts, "settlement_commit", func(tx *gorm.DB) error {
		if _, err := loadStudent(tx, in.StudentID, in.OrganizationID); err != nil {
			return err
		}
		budget, err := lockBudget(tx, in.StudentID, in.OrganizationID, s.settings.DefaultCurrency)
		if err != nil {
			return err
		}

		latest, err := latestSettlement(tx, in.StudentID, in.OrganizationID, nil)
		if err != nil {
			return err
		}
		if latest != nil && !calculator.StartOfDay(in.PeriodStart).After(latest.PeriodEnd) {
			return fmt.Errorf("%w: period must start after the latest settlement ended (%s)",
				ErrInvalidOperation, latest.PeriodEnd.Format(time.DateOnly))
		}

		preview, err := buildPreview(tx, in.StudentID, in.OrganizationID, in.PeriodStart, in.PeriodEnd, budget.CurrentBalance, budget.Currency)
		if err != nil {
			return err
		}

		settlement := models.Settlement{
			OrganizationID:        in.OrganizationID,
			StudentID:             in.StudentID,
			BudgetID:              budget.ID,
			PeriodStart:           preview.PeriodStart,
			PeriodEnd:             preview.PeriodEnd,
			TotalPaymentsDue:      preview.TotalPaymentsDue,
			TotalPaymentsReceived: preview.TotalPaymentsReceived,
			BalanceBefore:         preview.BalanceBefore,
			BalanceAfter:          preview.BalanceAfter,
			Currency:              preview.Currency,
			Notes:                 in.Notes,
		}
		if err := tx.Create(&settlement).Error; err != nil {
			return fmt.Errorf("failed to create settlement: %w", err)
		}

		if !preview.PeriodBalance.IsZero() {
			_, err := appendEntry(tx, budget, ledgerEntry{
				Type:                models.TransactionAdjustment,
				Amount:              preview.PeriodBalance,
				Description:         "Settlement " + periodLabel(settlement.PeriodStart, settlement.PeriodEnd),
				RelatedSettlementID: &settlement.ID,
			})
			if err != nil {
				return err
			}
		}
		budget.LastSettlementDate = &settlement.PeriodEnd
		if err := saveBudget(tx, budget); err != nil {
			return err
		}

		result = &SettlementResult{Settlement: &settlement, Preview: preview}
		return nil
	})
	if err != nil {
		slog.Error("Settlement commit failed", "student_id", in.StudentID, "error", err)
		return nil, err
	}

	metrics.SettlementsCommitted.Inc()
	slog.Info("Settlement committed",
		"settlement_id", result.Settlement.ID, "student_id", in.StudentID,
		"balance_before", result.Settlement.BalanceBefore, "balance_after", result.Settlement.BalanceAfter)
	return result, nil
}

// DeleteMostRecent reverses the student's latest settlement. Any other settlement is rejected,
// so reversals always mirror commit order.
func (s *SettlementService) DeleteMostRecent(ctx context.Context, settlementID, orgID uuid.UUID) error {
	err := runInTx(ctx, s.db, s.settings.MaxCommitAttempts, "settlement_delete", func(tx *gorm.DB) error {
		var settlement models.Settlement
		if err := tx.Where("id = ? AND organization_id = ?", settlementID, orgID).First(&settlement).Error; err != nil {
			return notFound(err, "settlement", settlementID)
		}

		// the budget lock serializes with Commit; the latest check must run under it
		var budget models.StudentBudget
		if err := forUpdate(tx).Where("id = ?", settlement.BudgetID).First(&budget).Error; err != nil {
			return notFound(err, "budget", settlement.BudgetID)
		}

		latest, err := latestSettlement(tx, settlement.StudentID, orgID, nil)
		if err != nil {
			return err
		}
		if latest == nil || latest.ID != settlement.ID {
			return fmt.Errorf("%w: only the most recent settlement can be deleted", ErrInvalidOperation)
		}

		delta := settlement.BalanceBefore.Sub(budget.CurrentBalance)
		if !delta.IsZero() {
			_, err := appendEntry(tx, &budget, ledgerEntry{
				Type:                models.TransactionAdjustment,
				Amount:              delta,
				Description:         "Reversal of settlement " + periodLabel(settlement.PeriodStart, settlement.PeriodEnd),
				RelatedSettlementID: &settlement.ID,
			})
			if err != nil {
				return err
			}
		}

		previous, err := latestSettlement(tx, settlement.StudentID, orgID, &settlement.ID)
		if err != nil {
			return err
		}
		budget.LastSettlementDate = nil
		if previous != nil {
			budget.LastSettlementDate = &previous.PeriodEnd
		}
		if err := saveBudget(tx, &budget); err != nil {
			return err
		}

		res := tx.Delete(&models.Settlement{}, "id = ?", settlement.ID)
		if res.Error != nil {
			return fmt.Errorf("failed to delete settlement: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: settlement %s already deleted", ErrConsistencyViolation, settlement.ID)
		}
		return nil
	})
	if err != nil {
		slog.Error("Settlement deletion failed", "settlement_id", settlementID, "error", err)
		return err
	}

	metrics.SettlementsReversed.Inc()
	slog.Info("Settlement deleted and reversed", "settlement_id", settlementID)
	return nil
}

// ListStudentsWithBalance gives an overview of every student in the organization.
func (s *SettlementService) ListStudentsWithBalance(ctx context.Context, orgID uuid.UUID) ([]StudentBalanceSummary, error) {
	db := s.db.WithContext(ctx)

	var students []models.Student
	if err := db.Where("organization_id = ?", orgID).Order("last_name, first_name").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	var budgets []models.StudentBudget
	if err := db.Where("organization_id = ?", orgID).Find(&budgets).Error; err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	budgetByStudent := make(map[uuid.UUID]models.StudentBudget, len(budgets))
	for _, b := range budgets {
		budgetByStudent[b.StudentID] = b
	}

	var pending []models.Payment
	err := db.Select("student_id", "amount").
		Where("organization_id = ? AND status = ?", orgID, models.PaymentPending).
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}
	pendingByStudent := make(map[uuid.UUID][]decimal.Decimal)
	for _, p := range pending {
		pendingByStudent[p.StudentID] = append(pendingByStudent[p.StudentID], p.Amount)
	}

	currency := orgCurrency(db, orgID, s.settings.DefaultCurrency)
	summaries := make([]StudentBalanceSummary, 0, len(students))
	for _, st := range students {
		summary := StudentBalanceSummary{
			StudentID:            st.ID,
			Name:                 st.FullName(),
			CurrentBalance:       decimal.Zero,
			Currency:             currency,
			PendingPaymentsCount: len(pendingByStudent[st.ID]),
			PendingPaymentsSum:   calculator.Sum(pendingByStudent[st.ID]),
		}
		if b, ok := budgetByStudent[st.ID]; ok {
			summary.CurrentBalance = b.CurrentBalance
			summary.Currency = b.Currency
			summary.LastSettlementDate = b.LastSettlementDate
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ForecastFirstSettlementStart suggests where the next settlement period should begin.
// A nil result means the student has no financial history yet.
func (s *SettlementService) ForecastFirstSettlementStart(ctx context.Context, studentID, orgID uuid.UUID) (*time.Time, error) {
	db := s.db.WithContext(ctx)
	if _, err := loadStudent(db, studentID, orgID); err != nil {
		return nil, err
	}

	latest, err := latestSettlement(db, studentID, orgID, nil)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		next := calculator.StartOfDay(latest.PeriodEnd).AddDate(0, 0, 1)
		return &next, nil
	}

	var first models.Payment
	err = db.Where("student_id = ? AND organization_id = ?", studentID, orgID).
		Order("created_at ASC").
		First(&first).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load first payment: %w", err)
	}
	start := calculator.StartOfDay(first.CreatedAt)
	return &start, nil
}

func (s *SettlementService) GetSettlement(ctx context.Context, settlementID, orgID uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", settlementID, orgID).
		First(&settlement).Error
	if err != nil {
		return nil, notFound(err, "settlement", settlementID)
	}
	return &settlement, nil
}

// ListSettlements returns the student's settlement history, newest first.
func (s *SettlementService) ListSettlements(ctx context.Context, studentID, orgID uuid.UUID) ([]models.Settlement, error) {
	db := s.db.WithContext(ctx)
	if _, err := loadStudent(db, studentID, orgID); err != nil {
		return nil, err
	}

	var settlements []models.Settlement
	err := db.Where("student_id = ? AND organization_id = ?", studentID, orgID).
		Order("period_end DESC").
		Find(&settlements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return settlements, nil
}

func checkPeriod(periodStart, periodEnd time.Time) error {
	if periodStart.IsZero() || periodEnd.IsZero() {
		return fmt.Errorf("%w: period start and end are required", ErrInvalidOperation)
	}
	if calculator.StartOfDay(periodEnd).Before(calculator.StartOfDay(periodStart)) {
		return fmt.Errorf("%w: period end is before period start", ErrInvalidOperation)
	}
	return nil
}

func periodLabel(start, end time.Time) string {
	return start.Format(time.DateOnly) + " to " + end.Format(time.DateOnly)
}

// latestSettlement returns the student's settlement with the greatest PeriodEnd, skipping exclude.
func latestSettlement(tx *gorm.DB, studentID, orgID uuid.UUID, exclude *uuid.UUID) (*models.Settlement, error) {
	query := tx.Where("student_id = ? AND organization_id = ?", studentID, orgID)
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}

	var settlement models.Settlement
	err := query.Order("period_end DESC").Order("created_at DESC").First(&settlement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest settlement: %w", err)
	}
	return &settlement, nil
}

func buildPreview(tx *gorm.DB, studentID, orgID uuid.UUID, periodStart, periodEnd time.Time, balanceBefore decimal.Decimal, currency string) (*SettlementPreview, error) {
	from, to := calculator.DayBounds(periodStart, periodEnd)

	var due []models.Payment
	err := tx.Preload("Lesson").Preload("Enrollment.Course").
		Where("student_id = ? AND organization_id = ? AND status = ?", studentID, orgID, models.PaymentPending).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load payments due: %w", err)
	}

	var received []models.Payment
	err = tx.Preload("Lesson").Preload("Enrollment.Course").
		Where("student_id = ? AND organization_id = ? AND status = ?", studentID, orgID, models.PaymentCompleted).
		Where("paid_at >= ? AND paid_at < ?", from, to).
		Order("paid_at ASC").
		Find(&received).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load payments received: %w", err)
	}

	totals := calculator.ComputeSettlement(balanceBefore, amounts(due), amounts(received))
	preview := &SettlementPreview{
		StudentID:             studentID,
		OrganizationID:        orgID,
		PeriodStart:           from,
		PeriodEnd:             calculator.StartOfDay(periodEnd),
		TotalPaymentsDue:      totals.TotalDue,
		TotalPaymentsReceived: totals.TotalReceived,
		PeriodBalance:         totals.PeriodBalance,
		BalanceBefore:         totals.BalanceBefore,
		BalanceAfter:          totals.BalanceAfter,
		Currency:              currency,
		PaymentsDue:           settlementItems(due, currency),
		PaymentsReceived:      settlementItems(received, currency),
	}
	return preview, nil
}

func amounts(payments []models.Payment) []decimal.Decimal {
	out := make([]decimal.Decimal, len(payments))
	for i, p := range payments {
		out[i] = p.Amount
	}
	return out
}

func settlementItems(payments []models.Payment, fallbackCurrency string) []SettlementItem {
	items := make([]SettlementItem, 0, len(payments))
	for _, p := range payments {
		item := SettlementItem{
			ID:          p.ID,
			Amount:      p.Amount,
			Currency:    p.Currency,
			Description: paymentDescription(p),
			Date:        p.CreatedAt,
			Status:      p.Status,
			Method:      p.Method,
		}
		if item.Currency == "" {
			item.Currency = fallbackCurrency
		}
		switch {
		case p.Status == models.PaymentCompleted && p.PaidAt != nil:
			item.Date = *p.PaidAt
		case p.DueAt != nil:
			item.Date = *p.DueAt
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.Before(items[j].Date) })
	return items
}

func paymentDescription(p models.Payment) string {
	if p.Lesson != nil && p.Lesson.Title != "" {
		return p.Lesson.Title
	}
	if p.Enrollment != nil && p.Enrollment.Course.Name != "" {
		return p.Enrollment.Course.Name
	}
	return "Payment"
}
