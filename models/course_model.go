package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Course struct {
	ID             uuid.UUID           `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID uuid.UUID           `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string              `gorm:"size:255;not null" json:"name"`
	PricePerLesson decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price_per_lesson"`
	Currency       string              `gorm:"size:3" json:"currency"`
	CreatedAt      time.Time           `json:"-"`
	UpdatedAt      time.Time           `json:"-"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

type Enrollment struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	StudentID uuid.UUID `gorm:"type:uuid;not null;index" json:"student_id"`
	CourseID  uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	Course    Course    `gorm:"foreignkey:CourseID" json:"course"`
	CreatedAt time.Time `json:"-"`
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
