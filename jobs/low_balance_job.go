package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anjiri1684/lesson_billing/notifications"
	"github.com/anjiri1684/lesson_billing/services"
	"github.com/robfig/cron/v3"
)

// LowBalanceJob warns students whose balance will run out within the next few lessons.
type LowBalanceJob struct {
	forecasts *services.ForecastService
	notifier  notifications.Notifier
	// Lessons is how many upcoming lessons ahead a depletion triggers a warning.
	Lessons int
}

func NewLowBalanceJob(forecasts *services.ForecastService, notifier notifications.Notifier, lessons int) *LowBalanceJob {
	return &LowBalanceJob{forecasts: forecasts, notifier: notifier, Lessons: lessons}
}

// Schedule registers the job on c under the given cron spec.
func (j *LowBalanceJob) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		j.Run(ctx)
	})
}

// Run scans every student with upcoming lessons and returns how many were notified.
func (j *LowBalanceJob) Run(ctx context.Context) int {
	slog.Info("Running job: low balance scan")

	students, err := j.forecasts.StudentsWithUpcomingLessons(ctx)
	if err != nil {
		slog.Error("Low balance scan failed", "error", err)
		return 0
	}

	notified := 0
	for _, student := range students {
		forecast, err := j.forecasts.ForecastBalance(ctx, student.ID, student.OrganizationID)
		if err != nil {
			slog.Error("Forecast failed", "student_id", student.ID, "error", err)
			continue
		}
		if forecast.LessonsUntilDepletion == nil || *forecast.LessonsUntilDepletion >= j.Lessons {
			continue
		}
		if student.Email == nil || *student.Email == "" {
			slog.Warn("Low balance but no email on file", "student_id", student.ID)
			continue
		}

		body := fmt.Sprintf(
			"<h1>Your balance is running low</h1><p>Hi %s,</p><p>Your current balance is %s %s. "+
				"After your lesson on %s it will drop to %s %s. Please top up to keep your schedule.</p>",
			student.FirstName,
			forecast.CurrentBalance.StringFixed(2), forecast.Currency,
			forecast.DepletionDate.Format("2006-01-02 15:04"),
			forecast.PerLessonRunningBalances[*forecast.LessonsUntilDepletion].BalanceAfter.StringFixed(2), forecast.Currency,
		)
		if err := j.notifier.SendEmail(ctx, student.FullName(), *student.Email, "Your balance is running low", body); err != nil {
			slog.Error("Failed to send low balance notice", "student_id", student.ID, "error", err)
			continue
		}
		notified++
	}

	slog.Info("Low balance scan finished", "students", len(students), "notified", notified)
	return notified
}
