package services

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/anjiri1684/lesson_billing/database"
	"github.com/anjiri1684/lesson_billing/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testSettings = Settings{DefaultCurrency: "PLN", MaxCommitAttempts: 10}

type fixture struct {
	db      *gorm.DB
	org     models.Organization
	student models.Student
	teacher models.Teacher
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "billing.db") + "?_pragma=busy_timeout(5000)"
	db, err := database.Open(sqlite.Open(dsn))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	org := models.Organization{Name: "Lingua School", Currency: "PLN"}
	require.NoError(t, db.Create(&org).Error)

	student := models.Student{OrganizationID: org.ID, FirstName: "Anna", LastName: "Nowak"}
	require.NoError(t, db.Create(&student).Error)

	teacher := models.Teacher{
		OrganizationID: org.ID,
		FirstName:      "Piotr",
		LastName:       "Kowalski",
		HourlyRate:     decimal.NewFromInt(100),
	}
	require.NoError(t, db.Create(&teacher).Error)

	return &fixture{db: db, org: org, student: student, teacher: teacher}
}

func (f *fixture) otherOrg(t *testing.T) models.Organization {
	t.Helper()
	org := models.Organization{Name: "Other School", Currency: "EUR"}
	require.NoError(t, f.db.Create(&org).Error)
	return org
}

func (f *fixture) addStudent(t *testing.T, first, last string) models.Student {
	t.Helper()
	student := models.Student{OrganizationID: f.org.ID, FirstName: first, LastName: last}
	require.NoError(t, f.db.Create(&student).Error)
	return student
}

func (f *fixture) addPayment(t *testing.T, status models.PaymentStatus, amount string, createdAt time.Time, paidAt *time.Time) models.Payment {
	t.Helper()
	payment := models.Payment{
		OrganizationID: f.org.ID,
		StudentID:      f.student.ID,
		Status:         status,
		Amount:         decimal.RequireFromString(amount),
		Currency:       "PLN",
		Method:         "transfer",
		CreatedAt:      createdAt,
		PaidAt:         paidAt,
	}
	require.NoError(t, f.db.Create(&payment).Error)
	return payment
}

func (f *fixture) addLesson(t *testing.T, status models.LessonStatus, scheduledAt time.Time, cancelledAt *time.Time) models.Lesson {
	t.Helper()
	lesson := models.Lesson{
		OrganizationID:  f.org.ID,
		TeacherID:       f.teacher.ID,
		StudentID:       f.student.ID,
		Title:           "Conversation " + scheduledAt.Format("Jan 2 15:04"),
		Status:          status,
		ScheduledAt:     scheduledAt,
		CancelledAt:     cancelledAt,
		DurationMinutes: 60,
		Currency:        "PLN",
	}
	require.NoError(t, f.db.Create(&lesson).Error)
	return lesson
}

func at(value string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func day(value string) time.Time {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	expected := decimal.RequireFromString(want)
	assert.Truef(t, expected.Equal(got), "expected %s, got %s %v", expected, got, msgAndArgs)
}

// assertLedgerChain replays the student's transactions oldest first and checks every link,
// then checks the budget sits on the newest BalanceAfter.
func assertLedgerChain(t *testing.T, db *gorm.DB, studentID, orgID uuid.UUID) {
	t.Helper()

	var txs []models.BalanceTransaction
	require.NoError(t, db.Where("student_id = ?", studentID).Order("sequence ASC").Find(&txs).Error)

	running := decimal.Zero
	for i, tx := range txs {
		assert.Equal(t, int64(i+1), tx.Sequence)
		assert.Truef(t, running.Equal(tx.BalanceBefore), "tx %d: balance_before %s, expected %s", tx.Sequence, tx.BalanceBefore, running)
		assert.Truef(t, tx.BalanceBefore.Add(tx.Amount).Equal(tx.BalanceAfter), "tx %d: broken arithmetic", tx.Sequence)
		running = tx.BalanceAfter
	}

	var budget models.StudentBudget
	err := db.Where("student_id = ? AND organization_id = ?", studentID, orgID).First(&budget).Error
	if len(txs) == 0 && errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	require.NoError(t, err)
	assert.Truef(t, running.Equal(budget.CurrentBalance), "budget %s, latest balance_after %s", budget.CurrentBalance, running)
}
