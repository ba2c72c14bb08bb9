package calculator

import (
	"time"

	"github.com/anjiri1684/lesson_billing/models"
	"github.com/shopspring/decimal"
)

const (
	legacyCancellationWindow  = 24 * time.Hour
	legacyCancellationPercent = 100

	defaultPolicyHours   = 24
	defaultPolicyPercent = 100
)

// CancellationPolicy is a teacher's late-cancellation payout configuration.
type CancellationPolicy struct {
	Enabled          bool
	HoursThreshold   int
	PercentThreshold int
}

// PolicyFor reads the policy from a teacher row. Missing thresholds fall back to 24h and 100%.
func PolicyFor(t models.Teacher) CancellationPolicy {
	p := CancellationPolicy{
		Enabled:          t.CancellationPayoutEnabled,
		HoursThreshold:   defaultPolicyHours,
		PercentThreshold: defaultPolicyPercent,
	}
	if t.CancellationPayoutHours != nil {
		p.HoursThreshold = *t.CancellationPayoutHours
	}
	if t.CancellationPayoutPercent != nil {
		p.PercentThreshold = *t.CancellationPayoutPercent
	}
	return p
}

// Qualification is the outcome of the payout rule for a single lesson.
type Qualification struct {
	Qualifies     bool                       `json:"qualifies"`
	Reason        models.QualificationReason `json:"reason,omitempty"`
	PayoutPercent int                        `json:"payout_percent"`
}

var notQualified = Qualification{}

// Qualify decides whether a lesson entitles its teacher to pay, and at which percentage.
//
//   - COMPLETED and CONFIRMED lessons qualify at 100%.
//   - CANCELLED lessons with a cancellation time qualify when cancelled late: with the teacher's
//     policy enabled, under HoursThreshold hours before the start at PercentThreshold; with it
//     disabled, under 24 hours before the start at 100%.
//   - Everything else never qualifies.
func Qualify(status models.LessonStatus, scheduledAt time.Time, cancelledAt *time.Time, policy CancellationPolicy) Qualification {
	switch status {
	case models.LessonCompleted:
		return Qualification{Qualifies: true, Reason: models.ReasonCompleted, PayoutPercent: 100}
	case models.LessonConfirmed:
		return Qualification{Qualifies: true, Reason: models.ReasonConfirmed, PayoutPercent: 100}
	case models.LessonCancelled:
		if cancelledAt == nil {
			return notQualified
		}
		notice := scheduledAt.Sub(*cancelledAt)
		window, percent := legacyCancellationWindow, legacyCancellationPercent
		if policy.Enabled {
			window = time.Duration(policy.HoursThreshold) * time.Hour
			percent = policy.PercentThreshold
		}
		if notice < window {
			return Qualification{Qualifies: true, Reason: models.ReasonLateCancellation, PayoutPercent: percent}
		}
		return notQualified
	default:
		// SCHEDULED, NO_SHOW and unknown statuses
		return notQualified
	}
}

// LessonHours converts a duration in minutes to hours rounded to 2 decimal places.
func LessonHours(durationMinutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(durationMinutes)).Div(decimal.NewFromInt(60)).Round(2)
}

// PayoutAmount is (durationMinutes / 60) * hourlyRate * (percent / 100), rounded to 2 places.
// The product is formed before dividing so that 45 minute lessons do not lose precision.
func PayoutAmount(durationMinutes int, hourlyRate decimal.Decimal, percent int) decimal.Decimal {
	return hourlyRate.
		Mul(decimal.NewFromInt(int64(durationMinutes))).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(6000)).
		Round(2)
}
