package kpi

import "time"

// MarkSubmission is one marker's scores for a subject in one week.
type MarkSubmission struct {
	ID        string             `json:"id"`
	SubjectID string             `json:"subjectId"`
	WeekKey   string             `json:"weekKey"`
	MarkerID  string             `json:"markerId"`
	Marks     map[string]float64 `json:"marks"`
	Score     float64            `json:"score"`
	Note      string             `json:"note,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// WeeklyScore aggregates every submission for a subject and week.
type WeeklyScore struct {
	SubjectID    string  `json:"subjectId"`
	WeekKey      string  `json:"weekKey"`
	AverageScore float64 `json:"averageScore"`
	Submissions  int     `json:"submissions"`
	IsComplete   bool    `json:"isComplete"`
}

type SubmissionInput struct {
	SubjectID string
	WeekKey   string
	Marks     map[string]float64
	Note      string
}
