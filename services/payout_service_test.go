package services

import (
	"context"
	"sync"
	"testing"

	"github.com/anjiri1684/lesson_billing/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedTeacherMonth gives the fixture teacher one lesson of each kind in March 2024.
func seedTeacherMonth(t *testing.T, f *fixture) map[string]models.Lesson {
	t.Helper()
	return map[string]models.Lesson{
		"completed":    f.addLesson(t, models.LessonCompleted, at("2024-03-04 10:00"), nil),
		"confirmed":    f.addLesson(t, models.LessonConfirmed, at("2024-03-06 10:00"), nil),
		"late":         f.addLesson(t, models.LessonCancelled, at("2024-03-10 10:00"), ptr(at("2024-03-10 08:00"))),
		"early":        f.addLesson(t, models.LessonCancelled, at("2024-03-12 10:00"), ptr(at("2024-03-11 09:00"))),
		"no_timestamp": f.addLesson(t, models.LessonCancelled, at("2024-03-14 10:00"), nil),
		"scheduled":    f.addLesson(t, models.LessonScheduled, at("2024-03-20 10:00"), nil),
		"no_show":      f.addLesson(t, models.LessonNoShow, at("2024-03-22 10:00"), nil),
		"april":        f.addLesson(t, models.LessonCompleted, at("2024-04-02 10:00"), nil),
	}
}

func TestGetQualifiedLessons_AppliesRule(t *testing.T) {
	f := newFixture(t)
	lessons := seedTeacherMonth(t, f)
	svc := NewPayoutService(f.db, testSettings)

	qualified, err := svc.GetQualifiedLessons(context.Background(), f.teacher.ID, f.org.ID, day("2024-03-01"), day("2024-03-31"))
	require.NoError(t, err)

	require.Len(t, qualified, 3)
	assert.Equal(t, lessons["completed"].ID, qualified[0].LessonID)
	assert.Equal(t, models.ReasonCompleted, qualified[0].Reason)
	assert.Equal(t, lessons["confirmed"].ID, qualified[1].LessonID)
	assert.Equal(t, models.ReasonConfirmed, qualified[1].Reason)
	assert.Equal(t, lessons["late"].ID, qualified[2].LessonID)
	assert.Equal(t, models.ReasonLateCancellation, qualified[2].Reason)
	assert.Equal(t, 100, qualified[2].PayoutPercent)
	assert.Equal(t, "Anna Nowak", qualified[0].StudentName)
}

func TestPayoutPreview_ProratesWithTeacherPolicy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&f.teacher).Updates(map[string]any{
		"cancellation_payout_enabled": true,
		"cancellation_payout_hours":   48,
		"cancellation_payout_percent": 50,
	}).Error)
	seedTeacherMonth(t, f)
	short := f.addLesson(t, models.LessonCompleted, at("2024-03-25 10:00"), nil)
	require.NoError(t, f.db.Model(&short).Update("duration_minutes", 45).Error)
	svc := NewPayoutService(f.db, testSettings)

	preview, err := svc.Preview(context.Background(), f.teacher.ID, f.org.ID, day("2024-03-01"), day("2024-03-31"))
	require.NoError(t, err)

	// completed 100 + confirmed 100 + late (2h) 50 + early (25h, inside 48h) 50 + 45 minutes 75
	require.Len(t, preview.Lessons, 5)
	assertDecimal(t, "375", preview.TotalAmount)
	assertDecimal(t, "4.75", preview.TotalHours)
	assert.Equal(t, "PLN", preview.Currency)
	assert.Equal(t, "Piotr Kowalski", preview.TeacherName)
	for _, l := range preview.Lessons {
		if l.Reason == models.ReasonLateCancellation {
			assert.Equal(t, 50, l.PayoutPercent)
		}
	}
}

func TestPayoutCommit_ExcludesAlreadyPaidLessons(t *testing.T) {
	f := newFixture(t)
	lessons := seedTeacherMonth(t, f)
	svc := NewPayoutService(f.db, testSettings)
	ctx := context.Background()

	first, err := svc.Commit(ctx, CommitPayoutInput{
		OrganizationID: f.org.ID,
		TeacherID:      f.teacher.ID,
		PeriodStart:    day("2024-03-01"),
		PeriodEnd:      day("2024-03-31"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.PayoutPending, first.Payout.Status)
	assert.Len(t, first.Payout.Lessons, 3)
	assertDecimal(t, "300", first.Payout.TotalAmount)

	preview, err := svc.Preview(ctx, f.teacher.ID, f.org.ID, day("2024-03-15"), day("2024-04-15"))
	require.NoError(t, err)
	require.Len(t, preview.Lessons, 1)
	assert.Equal(t, lessons["april"].ID, preview.Lessons[0].LessonID)

	second, err := svc.Commit(ctx, CommitPayoutInput{
		OrganizationID: f.org.ID,
		TeacherID:      f.teacher.ID,
		PeriodStart:    day("2024-03-01"),
		PeriodEnd:      day("2024-04-30"),
	})
	require.NoError(t, err)
	require.Len(t, second.Payout.Lessons, 1)
	assert.Equal(t, lessons["april"].ID, second.Payout.Lessons[0].LessonID)

	_, err = svc.Commit(ctx, CommitPayoutInput{
		OrganizationID: f.org.ID,
		TeacherID:      f.teacher.ID,
		PeriodStart:    day("2024-03-01"),
		PeriodEnd:      day("2024-04-30"),
	})
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestPayoutCommit_ConcurrentOverlappingBatches(t *testing.T) {
	f := newFixture(t)
	seedTeacherMonth(t, f)
	svc := NewPayoutService(f.db, Settings{MaxCommitAttempts: 50})
	ctx := context.Background()

	periods := [][2]string{
		{"2024-03-01", "2024-03-31"},
		{"2024-03-05", "2024-04-30"},
		{"2024-03-01", "2024-04-30"},
		{"2024-02-01", "2024-03-10"},
	}
	var wg sync.WaitGroup
	for _, p := range periods {
		wg.Add(1)
		go func(start, end string) {
			defer wg.Done()
			_, _ = svc.Commit(ctx, CommitPayoutInput{
				OrganizationID: f.org.ID,
				TeacherID:      f.teacher.ID,
				PeriodStart:    day(start),
				PeriodEnd:      day(end),
			})
		}(p[0], p[1])
	}
	wg.Wait()

	var lines []models.PayoutLesson
	require.NoError(t, f.db.Find(&lines).Error)
	seen := map[uuid.UUID]bool{}
	for _, l := range lines {
		assert.Falsef(t, seen[l.LessonID], "lesson %s paid twice", l.LessonID)
		seen[l.LessonID] = true
	}

	var payouts []models.TeacherPayout
	require.NoError(t, f.db.Preload("Lessons").Find(&payouts).Error)
	for _, p := range payouts {
		assert.NotEmpty(t, p.Lessons)
		sum := decimal.Zero
		for _, l := range p.Lessons {
			sum = sum.Add(l.Amount)
		}
		assert.True(t, sum.Equal(p.TotalAmount))
	}
}

func TestPayoutCommit_UnknownTeacher(t *testing.T) {
	f := newFixture(t)
	svc := NewPayoutService(f.db, testSettings)

	_, err := svc.Commit(context.Background(), CommitPayoutInput{
		OrganizationID: f.org.ID,
		TeacherID:      uuid.New(),
		PeriodStart:    day("2024-03-01"),
		PeriodEnd:      day("2024-03-31"),
	})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPayoutUpdateStatus_ForwardOnly(t *testing.T) {
	f := newFixture(t)
	seedTeacherMonth(t, f)
	svc := NewPayoutService(f.db, testSettings)
	ctx := context.Background()

	result, err := svc.Commit(ctx, CommitPayoutInput{
		OrganizationID: f.org.ID, TeacherID: f.teacher.ID,
		PeriodStart: day("2024-03-01"), PeriodEnd: day("2024-03-31"),
	})
	require.NoError(t, err)
	id := result.Payout.ID

	_, err = svc.UpdateStatus(ctx, id, f.org.ID, models.PayoutPending, nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	paid, err := svc.UpdateStatus(ctx, id, f.org.ID, models.PayoutPaid, ptr("bank transfer 2024-04-02"))
	require.NoError(t, err)
	assert.Equal(t, models.PayoutPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	stored, err := svc.GetPayout(ctx, id, f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutPaid, stored.Status)
	require.NotNil(t, stored.Notes)
	assert.Equal(t, "bank transfer 2024-04-02", *stored.Notes)
	assert.Len(t, stored.Lessons, 3)

	_, err = svc.UpdateStatus(ctx, id, f.org.ID, models.PayoutPaid, nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	assert.ErrorIs(t, svc.Delete(ctx, id, f.org.ID), ErrInvalidOperation)
}

func TestPayoutDelete_ReleasesLessons(t *testing.T) {
	f := newFixture(t)
	seedTeacherMonth(t, f)
	svc := NewPayoutService(f.db, testSettings)
	ctx := context.Background()

	result, err := svc.Commit(ctx, CommitPayoutInput{
		OrganizationID: f.org.ID, TeacherID: f.teacher.ID,
		PeriodStart: day("2024-03-01"), PeriodEnd: day("2024-03-31"),
	})
	require.NoError(t, err)

	other := f.otherOrg(t)
	assert.ErrorIs(t, svc.Delete(ctx, result.Payout.ID, other.ID), ErrNotFound)

	require.NoError(t, svc.Delete(ctx, result.Payout.ID, f.org.ID))

	var lines int64
	f.db.Model(&models.PayoutLesson{}).Count(&lines)
	assert.Zero(t, lines)
	_, err = svc.GetPayout(ctx, result.Payout.ID, f.org.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	qualified, err := svc.GetQualifiedLessons(ctx, f.teacher.ID, f.org.ID, day("2024-03-01"), day("2024-03-31"))
	require.NoError(t, err)
	assert.Len(t, qualified, 3)
}

func TestGetLessonsForRange_AnnotatesPayout(t *testing.T) {
	f := newFixture(t)
	lessons := seedTeacherMonth(t, f)
	svc := NewPayoutService(f.db, testSettings)
	ctx := context.Background()

	result, err := svc.Commit(ctx, CommitPayoutInput{
		OrganizationID: f.org.ID, TeacherID: f.teacher.ID,
		PeriodStart: day("2024-03-01"), PeriodEnd: day("2024-03-05"),
	})
	require.NoError(t, err)

	views, err := svc.GetLessonsForRange(ctx, f.teacher.ID, f.org.ID, day("2024-03-01"), day("2024-03-31"))
	require.NoError(t, err)
	require.Len(t, views, 7)

	byID := map[uuid.UUID]LessonPayoutView{}
	for _, v := range views {
		byID[v.LessonID] = v
	}
	paid := byID[lessons["completed"].ID]
	require.NotNil(t, paid.PayoutID)
	assert.Equal(t, result.Payout.ID, *paid.PayoutID)
	assert.Equal(t, models.PayoutPending, *paid.PayoutStatus)
	assertDecimal(t, "100", paid.Amount)

	early := byID[lessons["early"].ID]
	assert.False(t, early.Qualification.Qualifies)
	assert.Nil(t, early.PayoutID)
	assertDecimal(t, "0", early.Amount)

	dayViews, err := svc.GetLessonsForDay(ctx, f.teacher.ID, f.org.ID, at("2024-03-10 15:00"))
	require.NoError(t, err)
	require.Len(t, dayViews, 1)
	assert.Equal(t, lessons["late"].ID, dayViews[0].LessonID)
	assert.Equal(t, models.ReasonLateCancellation, dayViews[0].Qualification.Reason)
}

func TestListPayouts_Filters(t *testing.T) {
	f := newFixture(t)
	seedTeacherMonth(t, f)
	svc := NewPayoutService(f.db, testSettings)
	ctx := context.Background()

	march, err := svc.Commit(ctx, CommitPayoutInput{
		OrganizationID: f.org.ID, TeacherID: f.teacher.ID,
		PeriodStart: day("2024-03-01"), PeriodEnd: day("2024-03-31"),
	})
	require.NoError(t, err)
	_, err = svc.Commit(ctx, CommitPayoutInput{
		OrganizationID: f.org.ID, TeacherID: f.teacher.ID,
		PeriodStart: day("2024-04-01"), PeriodEnd: day("2024-04-30"),
	})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, march.Payout.ID, f.org.ID, models.PayoutPaid, nil)
	require.NoError(t, err)

	all, err := svc.ListPayouts(ctx, f.org.ID, PayoutFilter{TeacherID: &f.teacher.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].PeriodEnd.Equal(day("2024-04-30")))

	paid, err := svc.ListPayouts(ctx, f.org.ID, PayoutFilter{Status: ptr(models.PayoutPaid)})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, march.Payout.ID, paid[0].ID)

	other := f.otherOrg(t)
	none, err := svc.ListPayouts(ctx, other.ID, PayoutFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}
