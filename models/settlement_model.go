package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Settlement is an immutable reconciliation snapshot over [PeriodStart, PeriodEnd].
// BalanceAfter = BalanceBefore + TotalPaymentsReceived - TotalPaymentsDue.
type Settlement struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	StudentID             uuid.UUID       `gorm:"type:uuid;not null;index:idx_settlement_student_period" json:"student_id"`
	BudgetID              uuid.UUID       `gorm:"type:uuid;not null" json:"budget_id"`
	PeriodStart           time.Time       `gorm:"not null" json:"period_start"`
	PeriodEnd             time.Time       `gorm:"not null;index:idx_settlement_student_period" json:"period_end"`
	TotalPaymentsDue      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_payments_due"`
	TotalPaymentsReceived decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_payments_received"`
	BalanceBefore         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance_before"`
	BalanceAfter          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance_after"`
	Currency              string          `gorm:"size:3;not null" json:"currency"`
	Notes                 *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

func (s *Settlement) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
