package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StudentBudget is the running balance of one student inside one organization.
// CurrentBalance always equals the BalanceAfter of the newest BalanceTransaction for the student.
// Version is bumped on every write and guards the read-modify-write cycle.
type StudentBudget struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	StudentID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_budget_student_org" json:"student_id"`
	OrganizationID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_budget_student_org" json:"organization_id"`
	CurrentBalance     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"current_balance"`
	Currency           string          `gorm:"size:3;not null" json:"currency"`
	LastSettlementDate *time.Time      `json:"last_settlement_date"`
	Version            int64           `gorm:"not null;default:0" json:"-"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (b *StudentBudget) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
