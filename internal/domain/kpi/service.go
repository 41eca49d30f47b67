package kpi

import (
	"context"
	"strings"

	"bizops/internal/platform/config"
)

type Service struct {
	store  StoreAPI
	policy config.Policy
}

func NewService(store StoreAPI, policy config.Policy) *Service {
	return &Service{store: store, policy: policy}
}

func (s *Service) Criteria() []string {
	return append([]string(nil), s.policy.Criteria...)
}

// SubmitMarks stores one marker's submission, replacing an earlier one for the
// same subject and week, and refreshes the weekly aggregate.
func (s *Service) SubmitMarks(ctx context.Context, tenantID, markerID string, in SubmissionInput) (MarkSubmission, WeeklyScore, error) {
	if _, err := ParseWeekKey(in.WeekKey); err != nil {
		return MarkSubmission{}, WeeklyScore{}, err
	}
	marks := make(map[string]float64, len(in.Marks))
	for criterion, value := range in.Marks {
		marks[strings.ToLower(strings.TrimSpace(criterion))] = value
	}
	if err := ValidateMarks(marks, s.policy.Criteria); err != nil {
		return MarkSubmission{}, WeeklyScore{}, err
	}
	exists, err := s.store.SubjectExists(ctx, tenantID, in.SubjectID)
	if err != nil {
		return MarkSubmission{}, WeeklyScore{}, err
	}
	if !exists {
		return MarkSubmission{}, WeeklyScore{}, ErrSubjectNotFound
	}

	sub := MarkSubmission{
		SubjectID: in.SubjectID,
		WeekKey:   in.WeekKey,
		MarkerID:  markerID,
		Marks:     marks,
		Score:     SubmissionScore(marks),
		Note:      strings.TrimSpace(in.Note),
	}
	var weekly WeeklyScore
	err = s.store.WithinTx(ctx, func(tx StoreAPI) error {
		if err := ensureWeekOpen(ctx, tx, tenantID, in.WeekKey); err != nil {
			return err
		}
		saved, err := tx.UpsertSubmission(ctx, tenantID, sub)
		if err != nil {
			return err
		}
		sub = saved
		weekly, err = s.refreshWeek(ctx, tx, tenantID, in.SubjectID, in.WeekKey)
		return err
	})
	if err != nil {
		return MarkSubmission{}, WeeklyScore{}, err
	}
	return sub, weekly, nil
}

// DeleteSubmission removes a submission while its month is open and returns
// the refreshed weekly aggregate (zero submissions when none remain).
func (s *Service) DeleteSubmission(ctx context.Context, tenantID, submissionID string) (MarkSubmission, WeeklyScore, error) {
	sub, err := s.store.GetSubmission(ctx, tenantID, submissionID)
	if err != nil {
		return MarkSubmission{}, WeeklyScore{}, err
	}
	var weekly WeeklyScore
	err = s.store.WithinTx(ctx, func(tx StoreAPI) error {
		if err := ensureWeekOpen(ctx, tx, tenantID, sub.WeekKey); err != nil {
			return err
		}
		if err := tx.DeleteSubmission(ctx, tenantID, submissionID); err != nil {
			return err
		}
		weekly, err = s.refreshWeek(ctx, tx, tenantID, sub.SubjectID, sub.WeekKey)
		return err
	})
	if err != nil {
		return MarkSubmission{}, WeeklyScore{}, err
	}
	return sub, weekly, nil
}

func (s *Service) ListSubmissions(ctx context.Context, tenantID, subjectID, weekKey string) ([]MarkSubmission, error) {
	if _, err := ParseWeekKey(weekKey); err != nil {
		return nil, err
	}
	return s.store.ListSubmissions(ctx, tenantID, subjectID, weekKey)
}

func (s *Service) WeeklyScores(ctx context.Context, tenantID, subjectID string, weekKeys []string) ([]WeeklyScore, error) {
	return s.store.WeeklyScores(ctx, tenantID, subjectID, weekKeys)
}

func (s *Service) refreshWeek(ctx context.Context, tx StoreAPI, tenantID, subjectID, weekKey string) (WeeklyScore, error) {
	subs, err := tx.ListSubmissions(ctx, tenantID, subjectID, weekKey)
	if err != nil {
		return WeeklyScore{}, err
	}
	weekly := AggregateWeek(subjectID, weekKey, subs, s.policy.Criteria, s.policy.RequiredMarkers)
	if weekly.Submissions == 0 {
		return weekly, tx.DeleteWeeklyScore(ctx, tenantID, subjectID, weekKey)
	}
	return weekly, tx.UpsertWeeklyScore(ctx, tenantID, weekly)
}

// ensureWeekOpen runs inside the write transaction so that a lock committing
// meanwhile waits for the marks or sees them.
func ensureWeekOpen(ctx context.Context, tx StoreAPI, tenantID, weekKey string) error {
	monthKey, err := MonthKeyOfWeek(weekKey)
	if err != nil {
		return err
	}
	locked, err := tx.MonthLocked(ctx, tenantID, monthKey)
	if err != nil {
		return err
	}
	if locked {
		return ErrMonthLocked
	}
	return nil
}
