package utils

import "time"

// DateLayout is the calendar-day format used everywhere a date crosses an
// API or storage boundary.
const DateLayout = "2006-01-02"

// TodayString returns the current calendar date as YYYY-MM-DD in UTC.
func TodayString() string {
	return time.Now().UTC().Format(DateLayout)
}

// IsValidDate reports whether s is a well-formed YYYY-MM-DD date.
func IsValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// DaysInMonth returns the number of calendar days in the given month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOfDay returns the YYYY-MM-DD string for a day of the given month.
func DateOfDay(year, month, day int) string {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}

// AddDays shifts a YYYY-MM-DD date by n calendar days.
func AddDays(date string, n int) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, n).Format(DateLayout)
}
