package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "PENDING"
	PayoutPaid    PayoutStatus = "PAID"
)

type QualificationReason string

const (
	ReasonCompleted        QualificationReason = "COMPLETED"
	ReasonConfirmed        QualificationReason = "CONFIRMED"
	ReasonLateCancellation QualificationReason = "LATE_CANCELLATION"
)

// TeacherPayout is a batch of qualified lessons. It only moves forward, PENDING to PAID,
// and can only be deleted while PENDING.
type TeacherPayout struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	TeacherID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"teacher_id"`
	PeriodStart    time.Time       `gorm:"not null" json:"period_start"`
	PeriodEnd      time.Time       `gorm:"not null" json:"period_end"`
	TotalHours     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_hours"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Currency       string          `gorm:"size:3;not null" json:"currency"`
	Status         PayoutStatus    `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	Notes          *string         `gorm:"type:text" json:"notes,omitempty"`

	Lessons []PayoutLesson `gorm:"foreignkey:PayoutID;constraint:OnDelete:CASCADE" json:"lessons,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *TeacherPayout) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PayoutLesson is one line of a payout. LessonID is unique across all payouts.
type PayoutLesson struct {
	ID                  uuid.UUID           `gorm:"type:uuid;primary_key" json:"id"`
	PayoutID            uuid.UUID           `gorm:"type:uuid;not null;index" json:"payout_id"`
	LessonID            uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex" json:"lesson_id"`
	LessonDate          time.Time           `gorm:"not null" json:"lesson_date"`
	DurationMinutes     int                 `gorm:"not null" json:"duration_minutes"`
	HourlyRate          decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"hourly_rate"`
	Amount              decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"amount"`
	QualificationReason QualificationReason `gorm:"size:30;not null" json:"qualification_reason"`
	PayoutPercent       int                 `gorm:"not null;default:100" json:"payout_percent"`
	StudentName         string              `gorm:"size:255" json:"student_name"`
	LessonTitle         string              `gorm:"size:255" json:"lesson_title"`
}

func (l *PayoutLesson) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
