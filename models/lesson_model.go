package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LessonStatus string

const (
	LessonScheduled LessonStatus = "SCHEDULED"
	LessonConfirmed LessonStatus = "CONFIRMED"
	LessonCompleted LessonStatus = "COMPLETED"
	LessonCancelled LessonStatus = "CANCELLED"
	LessonNoShow    LessonStatus = "NO_SHOW"
)

// Lesson is owned by the scheduling subsystem; billing only reads it.
type Lesson struct {
	ID              uuid.UUID           `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID  uuid.UUID           `gorm:"type:uuid;not null;index" json:"organization_id"`
	TeacherID       uuid.UUID           `gorm:"type:uuid;not null;index" json:"teacher_id"`
	StudentID       uuid.UUID           `gorm:"type:uuid;not null;index" json:"student_id"`
	EnrollmentID    *uuid.UUID          `gorm:"type:uuid" json:"enrollment_id,omitempty"`
	Title           string              `gorm:"size:255" json:"title"`
	Status          LessonStatus        `gorm:"size:20;not null;default:'SCHEDULED'" json:"status"`
	ScheduledAt     time.Time           `gorm:"not null;index" json:"scheduled_at"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	DurationMinutes int                 `gorm:"not null;default:60" json:"duration_minutes"`
	PricePerLesson  decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price_per_lesson"`
	TeacherRate     decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"teacher_rate"`
	Currency        string              `gorm:"size:3" json:"currency"`

	Teacher    Teacher     `gorm:"foreignkey:TeacherID" json:"-"`
	Student    Student     `gorm:"foreignkey:StudentID" json:"-"`
	Enrollment *Enrollment `gorm:"foreignkey:EnrollmentID" json:"enrollment,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
