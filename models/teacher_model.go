package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Teacher carries the pay configuration the payout engine reads.
// When CancellationPayoutEnabled is false the fixed 24h/100% late-cancellation rule applies.
type Teacher struct {
	ID                        uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	FirstName                 string          `gorm:"size:100;not null" json:"first_name"`
	LastName                  string          `gorm:"size:100" json:"last_name"`
	Email                     *string         `gorm:"size:255" json:"email,omitempty"`
	HourlyRate                decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"hourly_rate"`
	CancellationPayoutEnabled bool            `gorm:"not null;default:false" json:"cancellation_payout_enabled"`
	CancellationPayoutHours   *int            `json:"cancellation_payout_hours,omitempty"`
	CancellationPayoutPercent *int            `json:"cancellation_payout_percent,omitempty"`
	CreatedAt                 time.Time       `json:"-"`
	UpdatedAt                 time.Time       `json:"-"`
}

func (t *Teacher) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

func (t Teacher) FullName() string {
	if t.LastName == "" {
		return t.FirstName
	}
	return t.FirstName + " " + t.LastName
}
