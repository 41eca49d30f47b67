package monthly

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"bizops/internal/domain/kpi"
)

var monthKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// MonthKey identifies a calendar month, written YYYY-MM.
type MonthKey struct {
	Year  int
	Month time.Month
}

func ParseMonthKey(value string) (MonthKey, error) {
	if !monthKeyPattern.MatchString(value) {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, value)
	}
	year, _ := strconv.Atoi(value[:4])
	month, _ := strconv.Atoi(value[5:])
	if year < 1 || month < 1 || month > 12 {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, value)
	}
	return MonthKey{Year: year, Month: time.Month(month)}, nil
}

func (m MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m MonthKey) Prev() MonthKey {
	if m.Month == time.January {
		return MonthKey{Year: m.Year - 1, Month: time.December}
	}
	return MonthKey{Year: m.Year, Month: m.Month - 1}
}

// Weeks returns the week keys whose closing Friday lies in the month.
func (m MonthKey) Weeks() []string {
	return kpi.FridaysInMonth(m.Year, m.Month)
}
