package kpi

import (
	"fmt"
	"time"
)

// WeekKeyLayout formats the Friday that closes a Saturday..Friday week.
const WeekKeyLayout = "2006-01-02"

// WeekKeyFor returns the key of the week containing t: the Friday on or after t.
func WeekKeyFor(t time.Time) string {
	return weekEnd(t).Format(WeekKeyLayout)
}

func weekEnd(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, offset)
}

// ParseWeekKey validates a week key and returns its Friday.
func ParseWeekKey(value string) (time.Time, error) {
	day, err := time.Parse(WeekKeyLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWeekKey, value)
	}
	if day.Weekday() != time.Friday {
		return time.Time{}, fmt.Errorf("%w: %s is not a Friday", ErrInvalidWeekKey, value)
	}
	return day, nil
}

// FridaysInMonth lists the week keys whose closing Friday falls inside the
// month, in calendar order. A month has four or five of them.
func FridaysInMonth(year int, month time.Month) []string {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	keys := make([]string, 0, 5)
	for day := weekEnd(first); day.Month() == month; day = day.AddDate(0, 0, 7) {
		keys = append(keys, day.Format(WeekKeyLayout))
	}
	return keys
}

// MonthKeyOfWeek returns the YYYY-MM month a week key belongs to.
func MonthKeyOfWeek(weekKey string) (string, error) {
	day, err := ParseWeekKey(weekKey)
	if err != nil {
		return "", err
	}
	return day.Format("2006-01"), nil
}
