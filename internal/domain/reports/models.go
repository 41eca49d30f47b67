package reports

import "time"

// MonthSummary aggregates the stored results of one month.
type MonthSummary struct {
	MonthKey     string         `json:"monthKey"`
	Status       string         `json:"status"`
	Subjects     int            `json:"subjects"`
	Tiers        map[string]int `json:"tiers"`
	Complete     int            `json:"complete"`
	Incomplete   int            `json:"incomplete"`
	TotalFines   float64        `json:"totalFines"`
	TotalGifts   float64        `json:"totalGifts"`
	AverageScore *float64       `json:"averageScore"`
}

// JobRun is one recorded batch, usually a month compute. MonthKey is lifted
// from the details of monthly runs.
type JobRun struct {
	ID          string         `json:"id"`
	JobType     string         `json:"jobType"`
	Status      string         `json:"status"`
	MonthKey    string         `json:"monthKey,omitempty"`
	Details     map[string]any `json:"details"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	DurationMS  *int64         `json:"durationMs,omitempty"`
}

type JobRunFilter struct {
	JobType     string
	Status      string
	MonthKey    string
	StartedFrom *time.Time
	StartedTo   *time.Time
}
