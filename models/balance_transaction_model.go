package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionDeposit         TransactionType = "DEPOSIT"
	TransactionLessonCharge    TransactionType = "LESSON_CHARGE"
	TransactionLessonRefund    TransactionType = "LESSON_REFUND"
	TransactionCancellationFee TransactionType = "CANCELLATION_FEE"
	TransactionAdjustment      TransactionType = "ADJUSTMENT"
	TransactionRefund          TransactionType = "REFUND"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionLessonCharge, TransactionLessonRefund,
		TransactionCancellationFee, TransactionAdjustment, TransactionRefund:
		return true
	}
	return false
}

// SignedAmount applies the ledger sign convention: deposits and lesson refunds raise the balance,
// charges and cancellation fees lower it, adjustments and refunds keep the caller's sign.
func (t TransactionType) SignedAmount(amount decimal.Decimal) decimal.Decimal {
	switch t {
	case TransactionDeposit, TransactionLessonRefund:
		return amount.Abs()
	case TransactionLessonCharge, TransactionCancellationFee:
		return amount.Abs().Neg()
	default:
		return amount
	}
}

// BalanceTransaction is an append-only ledger row. It is never updated or deleted.
// Sequence numbers a student's chain from 1; BalanceBefore of row n is BalanceAfter of row n-1.
type BalanceTransaction struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	StudentID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_balance_tx_student_seq" json:"student_id"`
	OrganizationID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	Type                TransactionType `gorm:"size:20;not null" json:"type"`
	Amount              decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	BalanceBefore       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance_before"`
	BalanceAfter        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance_after"`
	Currency            string          `gorm:"size:3;not null" json:"currency"`
	Description         string          `gorm:"type:text" json:"description"`
	RelatedLessonID     *uuid.UUID      `gorm:"type:uuid" json:"related_lesson_id,omitempty"`
	RelatedPaymentID    *uuid.UUID      `gorm:"type:uuid" json:"related_payment_id,omitempty"`
	RelatedSettlementID *uuid.UUID      `gorm:"type:uuid" json:"related_settlement_id,omitempty"`
	Sequence            int64           `gorm:"not null;uniqueIndex:idx_balance_tx_student_seq" json:"sequence"`
	CreatedAt           time.Time       `gorm:"index" json:"created_at"`
}

func (t *BalanceTransaction) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
