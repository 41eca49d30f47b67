package shared

import (
	"net/url"
	"time"
)

const dateLayout = "2006-01-02"

// DateRange reads an optional pair of RFC3339 or YYYY-MM-DD query values.
// A date-only upper bound covers that whole day.
func DateRange(query url.Values, fromKey, toKey string) (from, to *time.Time, issues []ValidationIssue) {
	if raw := query.Get(fromKey); raw != "" {
		if parsed, _, err := parseInstant(raw); err != nil {
			issues = append(issues, ValidationIssue{Field: fromKey, Reason: "must be a valid date in YYYY-MM-DD format"})
		} else {
			from = &parsed
		}
	}
	if raw := query.Get(toKey); raw != "" {
		if parsed, dateOnly, err := parseInstant(raw); err != nil {
			issues = append(issues, ValidationIssue{Field: toKey, Reason: "must be a valid date in YYYY-MM-DD format"})
		} else {
			if dateOnly {
				parsed = parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
			}
			to = &parsed
		}
	}
	if from != nil && to != nil && to.Before(*from) {
		issues = append(issues, ValidationIssue{Field: toKey, Reason: "must not be before " + fromKey})
	}
	return from, to, issues
}

func parseInstant(value string) (time.Time, bool, error) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, false, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	return parsed, true, err
}
