package reports

import (
	"context"
	"io"

	"bizops/internal/domain/monthly"
	"bizops/internal/platform/config"
)

// MonthlyReader is the read side of the monthly service.
type MonthlyReader interface {
	Period(ctx context.Context, tenantID, monthKey string) (monthly.Period, error)
	AllResults(ctx context.Context, tenantID, monthKey string) ([]monthly.ResultItem, error)
	Detail(ctx context.Context, tenantID, monthKey, subjectID string) (monthly.ResultDetail, error)
}

type JobRunStore interface {
	ListJobRuns(ctx context.Context, tenantID string, filter JobRunFilter, limit, offset int) ([]JobRun, error)
	CountJobRuns(ctx context.Context, tenantID string, filter JobRunFilter) (int, error)
	JobRunByID(ctx context.Context, tenantID, runID string) (JobRun, error)
}

type Service struct {
	store   JobRunStore
	monthly MonthlyReader
	contact config.Contact
}

func NewService(store JobRunStore, monthly MonthlyReader, contact config.Contact) *Service {
	return &Service{store: store, monthly: monthly, contact: contact}
}

func (s *Service) MonthSummary(ctx context.Context, tenantID, monthKey string) (MonthSummary, error) {
	period, err := s.monthly.Period(ctx, tenantID, monthKey)
	if err != nil {
		return MonthSummary{}, err
	}
	results, err := s.monthly.AllResults(ctx, tenantID, monthKey)
	if err != nil {
		return MonthSummary{}, err
	}
	return Summarize(period.MonthKey, period.Status, results), nil
}

func (s *Service) ExportCSV(ctx context.Context, tenantID, monthKey string, w io.Writer) error {
	results, err := s.monthly.AllResults(ctx, tenantID, monthKey)
	if err != nil {
		return err
	}
	return WriteResultsCSV(w, results)
}

func (s *Service) Statement(ctx context.Context, tenantID, monthKey, subjectID string, w io.Writer) error {
	period, err := s.monthly.Period(ctx, tenantID, monthKey)
	if err != nil {
		return err
	}
	detail, err := s.monthly.Detail(ctx, tenantID, monthKey, subjectID)
	if err != nil {
		return err
	}
	return RenderStatement(w, s.contact, period, detail)
}

func (s *Service) JobRuns(ctx context.Context, tenantID string, filter JobRunFilter, limit, offset int) ([]JobRun, int, error) {
	total, err := s.store.CountJobRuns(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	runs, err := s.store.ListJobRuns(ctx, tenantID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

func (s *Service) JobRun(ctx context.Context, tenantID, runID string) (JobRun, error) {
	return s.store.JobRunByID(ctx, tenantID, runID)
}
