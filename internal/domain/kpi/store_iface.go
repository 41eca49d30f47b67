package kpi

import "context"

type StoreAPI interface {
	WithinTx(ctx context.Context, fn func(StoreAPI) error) error
	SubjectExists(ctx context.Context, tenantID, subjectID string) (bool, error)
	UpsertSubmission(ctx context.Context, tenantID string, sub MarkSubmission) (MarkSubmission, error)
	GetSubmission(ctx context.Context, tenantID, submissionID string) (MarkSubmission, error)
	DeleteSubmission(ctx context.Context, tenantID, submissionID string) error
	ListSubmissions(ctx context.Context, tenantID, subjectID, weekKey string) ([]MarkSubmission, error)
	UpsertWeeklyScore(ctx context.Context, tenantID string, score WeeklyScore) error
	DeleteWeeklyScore(ctx context.Context, tenantID, subjectID, weekKey string) error
	WeeklyScores(ctx context.Context, tenantID, subjectID string, weekKeys []string) ([]WeeklyScore, error)
	// MonthLocked reports whether a YYYY-MM month no longer accepts marks.
	// Inside a transaction it holds a shared lock on the month until commit.
	MonthLocked(ctx context.Context, tenantID, monthKey string) (bool, error)
}
