package calculator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSimulateForecast_Depletion(t *testing.T) {
	start := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	lessons := []ForecastLesson{
		{LessonID: uuid.New(), ScheduledAt: start, Price: dec("100")},
		{LessonID: uuid.New(), ScheduledAt: start.AddDate(0, 0, 7), Price: dec("80")},
		{LessonID: uuid.New(), ScheduledAt: start.AddDate(0, 0, 14), Price: dec("50")},
	}

	f := SimulateForecast(dec("150"), lessons)

	require.Len(t, f.PerLessonRunningBalances, 3)
	assert.True(t, dec("50").Equal(f.PerLessonRunningBalances[0].BalanceAfter))
	assert.True(t, dec("-30").Equal(f.PerLessonRunningBalances[1].BalanceAfter))
	assert.True(t, dec("-80").Equal(f.PerLessonRunningBalances[2].BalanceAfter))

	require.NotNil(t, f.LessonsUntilDepletion)
	assert.Equal(t, 1, *f.LessonsUntilDepletion)
	require.NotNil(t, f.DepletionDate)
	assert.Equal(t, lessons[1].ScheduledAt, *f.DepletionDate)
	assert.Equal(t, 3, f.UpcomingLessonsCount)
	assert.True(t, dec("-80").Equal(f.ForecastedBalanceAfterAllLessons))
}

func TestSimulateForecast_NoDepletion(t *testing.T) {
	start := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	lessons := []ForecastLesson{
		{LessonID: uuid.New(), ScheduledAt: start, Price: dec("100")},
		{LessonID: uuid.New(), ScheduledAt: start.Add(time.Hour), Price: dec("100")},
	}

	f := SimulateForecast(dec("200"), lessons)

	assert.Nil(t, f.LessonsUntilDepletion)
	assert.Nil(t, f.DepletionDate)
	assert.True(t, f.ForecastedBalanceAfterAllLessons.IsZero())
}

func TestSimulateForecast_OrdersByScheduledTime(t *testing.T) {
	start := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	late := ForecastLesson{LessonID: uuid.New(), ScheduledAt: start.AddDate(0, 0, 1), Price: dec("100")}
	early := ForecastLesson{LessonID: uuid.New(), ScheduledAt: start, Price: dec("10")}

	f := SimulateForecast(dec("50"), []ForecastLesson{late, early})

	require.Len(t, f.PerLessonRunningBalances, 2)
	assert.Equal(t, early.LessonID, f.PerLessonRunningBalances[0].LessonID)
	require.NotNil(t, f.LessonsUntilDepletion)
	assert.Equal(t, 1, *f.LessonsUntilDepletion)
}

func TestSimulateForecast_NegativeStartDepletesOnFirstLesson(t *testing.T) {
	f := SimulateForecast(dec("-10"), []ForecastLesson{{LessonID: uuid.New(), ScheduledAt: time.Now(), Price: dec("0")}})

	require.NotNil(t, f.LessonsUntilDepletion)
	assert.Equal(t, 0, *f.LessonsUntilDepletion)
}

func TestSimulateForecast_Empty(t *testing.T) {
	f := SimulateForecast(dec("25"), nil)

	assert.Equal(t, 0, f.UpcomingLessonsCount)
	assert.Nil(t, f.LessonsUntilDepletion)
	assert.True(t, dec("25").Equal(f.ForecastedBalanceAfterAllLessons))
	assert.NotNil(t, f.PerLessonRunningBalances)
}
