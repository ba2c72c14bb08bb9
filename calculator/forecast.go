package calculator

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ForecastLesson is an upcoming lesson with its resolved price.
type ForecastLesson struct {
	LessonID    uuid.UUID
	ScheduledAt time.Time
	Price       decimal.Decimal
}

// LessonBalance is the running balance right after a forecast lesson is charged.
type LessonBalance struct {
	LessonID     uuid.UUID       `json:"lesson_id"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	Price        decimal.Decimal `json:"price"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// Forecast is the projection of a balance over upcoming lessons.
// LessonsUntilDepletion is the zero-based index of the first lesson that drives the balance
// below zero; it and DepletionDate are nil when the balance never goes negative.
type Forecast struct {
	CurrentBalance                   decimal.Decimal `json:"current_balance"`
	UpcomingLessonsCount             int             `json:"upcoming_lessons_count"`
	LessonsUntilDepletion            *int            `json:"lessons_until_depletion"`
	DepletionDate                    *time.Time      `json:"depletion_date"`
	ForecastedBalanceAfterAllLessons decimal.Decimal `json:"forecasted_balance_after_all_lessons"`
	PerLessonRunningBalances         []LessonBalance `json:"per_lesson_running_balances"`
}

// SimulateForecast charges each lesson in scheduled order against the current balance.
func SimulateForecast(current decimal.Decimal, lessons []ForecastLesson) Forecast {
	ordered := make([]ForecastLesson, len(lessons))
	copy(ordered, lessons)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ScheduledAt.Before(ordered[j].ScheduledAt)
	})

	f := Forecast{
		CurrentBalance:           current,
		UpcomingLessonsCount:     len(ordered),
		PerLessonRunningBalances: make([]LessonBalance, 0, len(ordered)),
	}

	running := current
	for i, l := range ordered {
		running = running.Sub(l.Price)
		f.PerLessonRunningBalances = append(f.PerLessonRunningBalances, LessonBalance{
			LessonID:     l.LessonID,
			ScheduledAt:  l.ScheduledAt,
			Price:        l.Price,
			BalanceAfter: running,
		})
		if f.LessonsUntilDepletion == nil && running.IsNegative() {
			idx := i
			at := l.ScheduledAt
			f.LessonsUntilDepletion = &idx
			f.DepletionDate = &at
		}
	}
	f.ForecastedBalanceAfterAllLessons = running
	return f
}
