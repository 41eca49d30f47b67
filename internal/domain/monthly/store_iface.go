package monthly

import (
	"context"

	"bizops/internal/domain/funds"
	"bizops/internal/domain/kpi"
)

type StoreAPI interface {
	WithinTx(ctx context.Context, fn func(StoreAPI) error) error
	GetPeriod(ctx context.Context, tenantID, monthKey string) (Period, error)
	LockPeriod(ctx context.Context, tenantID, monthKey string, exclusive bool) (Period, error)
	SetPeriodStatus(ctx context.Context, tenantID, monthKey, status, actorID, reason string) error
	SubjectExists(ctx context.Context, tenantID, subjectID string) (bool, error)
	ActiveSubjectIDs(ctx context.Context, tenantID string) ([]string, error)
	WeeklyScores(ctx context.Context, tenantID, subjectID string, weekKeys []string) ([]kpi.WeeklyScore, error)
	CompletionByMonth(ctx context.Context, tenantID, subjectID string, monthKeys []string) (map[string]bool, error)
	UpsertResult(ctx context.Context, tenantID, actorID string, result MonthlyResult) error
	GetResult(ctx context.Context, tenantID, subjectID, monthKey string) (ResultItem, error)
	CountResults(ctx context.Context, tenantID, monthKey string, filter ResultFilter) (int, error)
	ListResults(ctx context.Context, tenantID, monthKey string, filter ResultFilter, limit, offset int) ([]ResultItem, error)
	AllResults(ctx context.Context, tenantID, monthKey string) ([]ResultItem, error)
	SetResultsStatus(ctx context.Context, tenantID, monthKey, status string) (int64, error)
	InsertFundEntry(ctx context.Context, tenantID string, entry funds.Entry) error
	VoidMonthFunds(ctx context.Context, tenantID, monthKey string) (int64, error)
}
