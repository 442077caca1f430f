package common

import "time"

// DateLayout is the calendar-day format used on the wire and in SQLite.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Yesterday returns the calendar day before today.
func Yesterday(today time.Time) time.Time {
	return Day(today).AddDate(0, 0, -1)
}

// YearsBefore shifts a calendar day back by n years, keeping month and day.
// Feb 29 clamps to Feb 28 when the target year is not a leap year.
func YearsBefore(t time.Time, n int) time.Time {
	y, m, d := Day(t).Date()
	y -= n
	if m == time.February && d == 29 && !isLeap(y) {
		d = 28
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC calendar day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
