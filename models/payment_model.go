package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Payment is owned by the payments subsystem. A PENDING payment is a charge the student owes,
// a COMPLETED one is money received (PaidAt set).
type Payment struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	StudentID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"student_id"`
	LessonID       *uuid.UUID      `gorm:"type:uuid" json:"lesson_id,omitempty"`
	EnrollmentID   *uuid.UUID      `gorm:"type:uuid" json:"enrollment_id,omitempty"`
	Status         PaymentStatus   `gorm:"size:20;not null;index" json:"status"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency       string          `gorm:"size:3" json:"currency"`
	Method         string          `gorm:"size:30" json:"method"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	DueAt          *time.Time      `json:"due_at,omitempty"`

	Lesson     *Lesson     `gorm:"foreignkey:LessonID" json:"-"`
	Enrollment *Enrollment `gorm:"foreignkey:EnrollmentID" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
