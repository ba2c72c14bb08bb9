package services

import (
	"context"
	"fmt"
	"time"

	"github.com/anjiri1684/lesson_billing/calculator"
	"github.com/anjiri1684/lesson_billing/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ForecastService projects a student's balance over their upcoming lessons. It never writes.
type ForecastService struct {
	db       *gorm.DB
	ledger   *LedgerService
	settings Settings
	now      func() time.Time
}

func NewForecastService(db *gorm.DB, ledger *LedgerService, settings Settings) *ForecastService {
	return &ForecastService{
		db:       db,
		ledger:   ledger,
		settings: settings.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type BalanceForecast struct {
	StudentID uuid.UUID `json:"student_id"`
	Currency  string    `json:"currency"`
	calculator.Forecast
}

var upcomingStatuses = []models.LessonStatus{models.LessonScheduled, models.LessonConfirmed}

func (s *ForecastService) ForecastBalance(ctx context.Context, studentID, orgID uuid.UUID) (*BalanceForecast, error) {
	balance, err := s.ledger.GetBalance(ctx, studentID, orgID)
	if err != nil {
		return nil, err
	}

	var lessons []models.Lesson
	err = s.db.WithContext(ctx).
		Preload("Enrollment.Course").
		Where("student_id = ? AND organization_id = ?", studentID, orgID).
		Where("status IN ?", upcomingStatuses).
		Where("scheduled_at > ?", s.now()).
		Order("scheduled_at ASC").
		Find(&lessons).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load upcoming lessons: %w", err)
	}

	upcoming := make([]calculator.ForecastLesson, len(lessons))
	for i, l := range lessons {
		upcoming[i] = calculator.ForecastLesson{
			LessonID:    l.ID,
			ScheduledAt: l.ScheduledAt,
			Price:       calculator.ResolvePrice(calculator.PriceInputFor(l)),
		}
	}

	return &BalanceForecast{
		StudentID: studentID,
		Currency:  balance.Currency,
		Forecast:  calculator.SimulateForecast(balance.CurrentBalance, upcoming),
	}, nil
}

// StudentsWithUpcomingLessons lists students, across all organizations, that have at least one
// scheduled or confirmed lesson in the future.
func (s *ForecastService) StudentsWithUpcomingLessons(ctx context.Context) ([]models.Student, error) {
	db := s.db.WithContext(ctx)
	upcoming := db.Model(&models.Lesson{}).
		Select("student_id").
		Where("status IN ?", upcomingStatuses).
		Where("scheduled_at > ?", s.now())

	var students []models.Student
	if err := db.Where("id IN (?)", upcoming).Order("organization_id, last_name, first_name").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list students with upcoming lessons: %w", err)
	}
	return students, nil
}
