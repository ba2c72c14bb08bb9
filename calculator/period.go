package calculator

import "time"

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayBounds converts an inclusive day range into the half-open instant range [from, to)
// used by queries. Both ends are whole UTC days.
func DayBounds(periodStart, periodEnd time.Time) (from, to time.Time) {
	return StartOfDay(periodStart), StartOfDay(periodEnd).AddDate(0, 0, 1)
}
