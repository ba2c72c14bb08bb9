package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anjiri1684/lesson_billing/calculator"
	"github.com/anjiri1684/lesson_billing/metrics"
	"github.com/anjiri1684/lesson_billing/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PayoutService struct {
	db       *gorm.DB
	settings Settings
}

func NewPayoutService(db *gorm.DB, settings Settings) *PayoutService {
	return &PayoutService{db: db, settings: settings.withDefaults()}
}

// QualifiedLesson is a lesson that entitles its teacher to pay, with the computed amount.
type QualifiedLesson struct {
	LessonID        uuid.UUID                  `json:"lesson_id"`
	Title           string                     `json:"title"`
	StudentID       uuid.UUID                  `json:"student_id"`
	StudentName     string                     `json:"student_name"`
	ScheduledAt     time.Time                  `json:"scheduled_at"`
	Status          models.LessonStatus        `json:"status"`
	DurationMinutes int                        `json:"duration_minutes"`
	Reason          models.QualificationReason `json:"qualification_reason"`
	PayoutPercent   int                        `json:"payout_percent"`
	Hours           decimal.Decimal            `json:"hours"`
	HourlyRate      decimal.Decimal            `json:"hourly_rate"`
	Amount          decimal.Decimal            `json:"amount"`
}

type PayoutPreview struct {
	TeacherID      uuid.UUID         `json:"teacher_id"`
	TeacherName    string            `json:"teacher_name"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	PeriodStart    time.Time         `json:"period_start"`
	PeriodEnd      time.Time         `json:"period_end"`
	Lessons        []QualifiedLesson `json:"lessons"`
	TotalHours     decimal.Decimal   `json:"total_hours"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	Currency       string            `json:"currency"`
}

type CommitPayoutInput struct {
	OrganizationID uuid.UUID
	TeacherID      uuid.UUID
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Notes          *string
}

type PayoutResult struct {
	Payout  *models.TeacherPayout `json:"payout"`
	Preview *PayoutPreview        `json:"preview"`
}

type PayoutFilter struct {
	TeacherID *uuid.UUID
	Status    *models.PayoutStatus
}

// LessonPayoutView is a lesson annotated with its qualification and the payout holding it, if any.
type LessonPayoutView struct {
	LessonID        uuid.UUID                `json:"lesson_id"`
	Title           string                   `json:"title"`
	StudentID       uuid.UUID                `json:"student_id"`
	StudentName     string                   `json:"student_name"`
	ScheduledAt     time.Time                `json:"scheduled_at"`
	CancelledAt     *time.Time               `json:"cancelled_at,omitempty"`
	Status          models.LessonStatus      `json:"status"`
	DurationMinutes int                      `json:"duration_minutes"`
	Qualification   calculator.Qualification `json:"qualification"`
	Amount          decimal.Decimal          `json:"amount"`
	PayoutID        *uuid.UUID               `json:"payout_id,omitempty"`
	PayoutStatus    *models.PayoutStatus     `json:"payout_status,omitempty"`
}

// GetQualifiedLessons applies the qualification rule to the teacher's lessons in the period.
// Lessons already attached to any payout are left out.
func (s *PayoutService) GetQualifiedLessons(ctx context.Context, teacherID, orgID uuid.UUID, periodStart, periodEnd time.Time) ([]QualifiedLesson, error) {
	if err := checkPeriod(periodStart, periodEnd); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	teacher, err := loadTeacher(db, teacherID, orgID)
	if err != nil {
		return nil, err
	}
	return qualifiedLessons(db, teacher, periodStart, periodEnd)
}

func (s *PayoutService) Preview(ctx context.Context, teacherID, orgID uuid.UUID, periodStart, periodEnd time.Time) (*PayoutPreview, error) {
	if err := checkPeriod(periodStart, periodEnd); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	teacher, err := loadTeacher(db, teacherID, orgID)
	if err != nil {
		return nil, err
	}
	return s.buildPreview(db, teacher, periodStart, periodEnd)
}

// Commit re-qualifies the period inside one transaction and stores a PENDING payout with one line
// per lesson. A lesson claimed by a concurrent commit trips the unique lesson index and the
// whole commit is retried against fresh data.
func (s *PayoutService) Commit(ctx context.Context, in CommitPayoutInput) (*PayoutResult, error) {
	if err := checkPeriod(in.PeriodStart, in.PeriodEnd); err != nil {
		return nil, err
	}
	slog.Info("Payout commit request received",
		"teacher_id", in.TeacherID, "period_start", in.PeriodStart, "period_end", in.PeriodEnd)

	var result *PayoutResult
	err := runInTx(ctx, s.db, s.settings.MaxCommitAttempts, "payout_commit", func(tx *gorm.DB) error {
		var teacher models.Teacher
		err := forUpdate(tx).Where("id = ? AND organization_id = ?", in.TeacherID, in.OrganizationID).First(&teacher).Error
		if err != nil {
			return notFound(err, "teacher", in.TeacherID)
		}

		preview, err := s.buildPreview(tx, &teacher, in.PeriodStart, in.PeriodEnd)
		if err != nil {
			return err
		}
		if len(preview.Lessons) == 0 {
			return ErrEmptyBatch
		}

		payout := models.TeacherPayout{
			OrganizationID: in.OrganizationID,
			TeacherID:      in.TeacherID,
			PeriodStart:    preview.PeriodStart,
			PeriodEnd:      preview.PeriodEnd,
			TotalHours:     preview.TotalHours,
			TotalAmount:    preview.TotalAmount,
			Currency:       preview.Currency,
			Status:         models.PayoutPending,
			Notes:          in.Notes,
		}
		if err := tx.Omit(clause.Associations).Create(&payout).Error; err != nil {
			return fmt.Errorf("failed to create payout: %w", err)
		}

		lines := make([]models.PayoutLesson, len(preview.Lessons))
		for i, l := range preview.Lessons {
			lines[i] = models.PayoutLesson{
				PayoutID:            payout.ID,
				LessonID:            l.LessonID,
				LessonDate:          l.ScheduledAt,
				DurationMinutes:     l.DurationMinutes,
				HourlyRate:          l.HourlyRate,
				Amount:              l.Amount,
				QualificationReason: l.Reason,
				PayoutPercent:       l.PayoutPercent,
				StudentName:         l.StudentName,
				LessonTitle:         l.Title,
			}
		}
		if err := tx.Create(&lines).Error; err != nil {
			return fmt.Errorf("failed to create payout lessons: %w", err)
		}
		payout.Lessons = lines

		result = &PayoutResult{Payout: &payout, Preview: preview}
		return nil
	})
	if err != nil {
		slog.Error("Payout commit failed", "teacher_id", in.TeacherID, "error", err)
		return nil, err
	}

	metrics.PayoutsCommitted.Inc()
	metrics.PayoutLessons.Add(float64(len(result.Payout.Lessons)))
	slog.Info("Payout committed",
		"payout_id", result.Payout.ID, "teacher_id", in.TeacherID,
		"lessons", len(result.Payout.Lessons), "total_amount", result.Payout.TotalAmount)
	return result, nil
}

// UpdateStatus moves a payout from PENDING to PAID. No other transition exists.
func (s *PayoutService) UpdateStatus(ctx context.Context, payoutID, orgID uuid.UUID, status models.PayoutStatus, notes *string) (*models.TeacherPayout, error) {
	if status != models.PayoutPaid {
		return nil, fmt.Errorf("%w: payouts can only be marked %s", ErrInvalidOperation, models.PayoutPaid)
	}

	var payout models.TeacherPayout
	err := runInTx(ctx, s.db, s.settings.MaxCommitAttempts, "payout_status", func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND organization_id = ?", payoutID, orgID).First(&payout).Error; err != nil {
			return notFound(err, "payout", payoutID)
		}
		if payout.Status != models.PayoutPending {
			return fmt.Errorf("%w: payout is already %s", ErrInvalidOperation, payout.Status)
		}

		paidAt := time.Now().UTC()
		updates := map[string]any{"status": models.PayoutPaid, "paid_at": paidAt}
		if notes != nil {
			updates["notes"] = *notes
		}
		res := tx.Model(&models.TeacherPayout{}).
			Where("id = ? AND status = ?", payout.ID, models.PayoutPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update payout: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: payout %s changed concurrently", ErrConsistencyViolation, payout.ID)
		}

		payout.Status = models.PayoutPaid
		payout.PaidAt = &paidAt
		if notes != nil {
			payout.Notes = notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Payout marked as paid", "payout_id", payout.ID, "total_amount", payout.TotalAmount)
	return &payout, nil
}

// Delete removes a PENDING payout with its lines, releasing the lessons for a future payout.
func (s *PayoutService) Delete(ctx context.Context, payoutID, orgID uuid.UUID) error {
	err := runInTx(ctx, s.db, s.settings.MaxCommitAttempts, "payout_delete", func(tx *gorm.DB) error {
		var payout models.TeacherPayout
		if err := tx.Where("id = ? AND organization_id = ?", payoutID, orgID).First(&payout).Error; err != nil {
			return notFound(err, "payout", payoutID)
		}
		if payout.Status != models.PayoutPending {
			return fmt.Errorf("%w: only pending payouts can be deleted", ErrInvalidOperation)
		}

		if err := tx.Where("payout_id = ?", payout.ID).Delete(&models.PayoutLesson{}).Error; err != nil {
			return fmt.Errorf("failed to delete payout lessons: %w", err)
		}
		res := tx.Where("id = ? AND status = ?", payout.ID, models.PayoutPending).Delete(&models.TeacherPayout{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete payout: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: payout %s changed concurrently", ErrConsistencyViolation, payout.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Payout deleted", "payout_id", payoutID)
	return nil
}

// GetLessonsForDay is the calendar view of a single UTC day.
func (s *PayoutService) GetLessonsForDay(ctx context.Context, teacherID, orgID uuid.UUID, day time.Time) ([]LessonPayoutView, error) {
	return s.GetLessonsForRange(ctx, teacherID, orgID, day, day)
}

// GetLessonsForRange lists every lesson of the teacher in the period, paid or not, with its
// qualification and current payout.
func (s *PayoutService) GetLessonsForRange(ctx context.Context, teacherID, orgID uuid.UUID, periodStart, periodEnd time.Time) ([]LessonPayoutView, error) {
	if err := checkPeriod(periodStart, periodEnd); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	teacher, err := loadTeacher(db, teacherID, orgID)
	if err != nil {
		return nil, err
	}

	lessons, err := teacherLessons(db, teacher, periodStart, periodEnd, false)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(lessons))
	for i, l := range lessons {
		ids[i] = l.ID
	}
	type payoutRef struct {
		LessonID uuid.UUID
		PayoutID uuid.UUID
		Status   models.PayoutStatus
	}
	var refs []payoutRef
	if len(ids) > 0 {
		err = db.Table("payout_lessons").
			Select("payout_lessons.lesson_id, payout_lessons.payout_id, teacher_payouts.status").
			Joins("JOIN teacher_payouts ON teacher_payouts.id = payout_lessons.payout_id").
			Where("payout_lessons.lesson_id IN ?", ids).
			Scan(&refs).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load payout references: %w", err)
		}
	}
	refByLesson := make(map[uuid.UUID]payoutRef, len(refs))
	for _, r := range refs {
		refByLesson[r.LessonID] = r
	}

	policy := calculator.PolicyFor(*teacher)
	views := make([]LessonPayoutView, 0, len(lessons))
	for _, l := range lessons {
		q := calculator.Qualify(l.Status, l.ScheduledAt, l.CancelledAt, policy)
		view := LessonPayoutView{
			LessonID:        l.ID,
			Title:           l.Title,
			StudentID:       l.StudentID,
			StudentName:     l.Student.FullName(),
			ScheduledAt:     l.ScheduledAt,
			CancelledAt:     l.CancelledAt,
			Status:          l.Status,
			DurationMinutes: l.DurationMinutes,
			Qualification:   q,
			Amount:          decimal.Zero,
		}
		if q.Qualifies {
			view.Amount = calculator.PayoutAmount(l.DurationMinutes, teacher.HourlyRate, q.PayoutPercent)
		}
		if ref, ok := refByLesson[l.ID]; ok {
			view.PayoutID = &ref.PayoutID
			view.PayoutStatus = &ref.Status
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *PayoutService) GetPayout(ctx context.Context, payoutID, orgID uuid.UUID) (*models.TeacherPayout, error) {
	var payout models.TeacherPayout
	err := s.db.WithContext(ctx).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("lesson_date ASC") }).
		Where("id = ? AND organization_id = ?", payoutID, orgID).
		First(&payout).Error
	if err != nil {
		return nil, notFound(err, "payout", payoutID)
	}
	return &payout, nil
}

// ListPayouts returns the organization's payouts, newest first, without line items.
func (s *PayoutService) ListPayouts(ctx context.Context, orgID uuid.UUID, filter PayoutFilter) ([]models.TeacherPayout, error) {
	query := s.db.WithContext(ctx).Where("organization_id = ?", orgID)
	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var payouts []models.TeacherPayout
	if err := query.Order("period_end DESC").Order("created_at DESC").Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	return payouts, nil
}

func (s *PayoutService) buildPreview(tx *gorm.DB, teacher *models.Teacher, periodStart, periodEnd time.Time) (*PayoutPreview, error) {
	lessons, err := qualifiedLessons(tx, teacher, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	hours := make([]decimal.Decimal, len(lessons))
	lineAmounts := make([]decimal.Decimal, len(lessons))
	for i, l := range lessons {
		hours[i] = l.Hours
		lineAmounts[i] = l.Amount
	}

	from, _ := calculator.DayBounds(periodStart, periodEnd)
	return &PayoutPreview{
		TeacherID:      teacher.ID,
		TeacherName:    teacher.FullName(),
		OrganizationID: teacher.OrganizationID,
		PeriodStart:    from,
		PeriodEnd:      calculator.StartOfDay(periodEnd),
		Lessons:        lessons,
		TotalHours:     calculator.Sum(hours),
		TotalAmount:    calculator.Sum(lineAmounts),
		Currency:       orgCurrency(tx, teacher.OrganizationID, s.settings.DefaultCurrency),
	}, nil
}

func loadTeacher(tx *gorm.DB, teacherID, orgID uuid.UUID) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := tx.Where("id = ? AND organization_id = ?", teacherID, orgID).First(&teacher).Error; err != nil {
		return nil, notFound(err, "teacher", teacherID)
	}
	return &teacher, nil
}

// teacherLessons loads the teacher's lessons scheduled in the period, oldest first.
// With unpaidOnly, lessons already attached to a payout are excluded.
func teacherLessons(tx *gorm.DB, teacher *models.Teacher, periodStart, periodEnd time.Time, unpaidOnly bool) ([]models.Lesson, error) {
	from, to := calculator.DayBounds(periodStart, periodEnd)
	query := tx.Preload("Student").
		Where("teacher_id = ? AND organization_id = ?", teacher.ID, teacher.OrganizationID).
		Where("scheduled_at >= ? AND scheduled_at < ?", from, to)
	if unpaidOnly {
		query = query.Where("id NOT IN (?)", tx.Model(&models.PayoutLesson{}).Select("lesson_id"))
	}

	var lessons []models.Lesson
	if err := query.Order("scheduled_at ASC").Find(&lessons).Error; err != nil {
		return nil, fmt.Errorf("failed to load lessons: %w", err)
	}
	return lessons, nil
}

func qualifiedLessons(tx *gorm.DB, teacher *models.Teacher, periodStart, periodEnd time.Time) ([]QualifiedLesson, error) {
	lessons, err := teacherLessons(tx, teacher, periodStart, periodEnd, true)
	if err != nil {
		return nil, err
	}

	policy := calculator.PolicyFor(*teacher)
	qualified := make([]QualifiedLesson, 0, len(lessons))
	for _, l := range lessons {
		q := calculator.Qualify(l.Status, l.ScheduledAt, l.CancelledAt, policy)
		if !q.Qualifies {
			continue
		}
		qualified = append(qualified, QualifiedLesson{
			LessonID:        l.ID,
			Title:           l.Title,
			StudentID:       l.StudentID,
			StudentName:     l.Student.FullName(),
			ScheduledAt:     l.ScheduledAt,
			Status:          l.Status,
			DurationMinutes: l.DurationMinutes,
			Reason:          q.Reason,
			PayoutPercent:   q.PayoutPercent,
			Hours:           calculator.LessonHours(l.DurationMinutes),
			HourlyRate:      teacher.HourlyRate,
			Amount:          calculator.PayoutAmount(l.DurationMinutes, teacher.HourlyRate, q.PayoutPercent),
		})
	}
	return qualified, nil
}
