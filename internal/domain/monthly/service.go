package monthly

import (
	"context"
	"errors"
	"strings"

	"bizops/internal/domain/funds"
	"bizops/internal/domain/kpi"
	"bizops/internal/requestctx"
)

// JobRunner records a synchronous batch as a job run.
type JobRunner interface {
	RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error)
}

// Recorder receives computation and lifecycle events for metrics.
type Recorder interface {
	ObserveComputation(tier string)
	ObserveTransition(status string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveComputation(string) {}
func (noopRecorder) ObserveTransition(string) {}

type Service struct {
	store   StoreAPI
	calc    Calculator
	jobs    JobRunner
	metrics Recorder
}

func NewService(store StoreAPI, calc Calculator, jobs JobRunner, metrics Recorder) *Service {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Service{store: store, calc: calc, jobs: jobs, metrics: metrics}
}

func (s *Service) Calculator() Calculator {
	return s.calc
}

func (s *Service) Weeks(monthKey string) ([]string, error) {
	month, err := ParseMonthKey(monthKey)
	if err != nil {
		return nil, err
	}
	return month.Weeks(), nil
}

func (s *Service) Period(ctx context.Context, tenantID, monthKey string) (Period, error) {
	month, err := ParseMonthKey(monthKey)
	if err != nil {
		return Period{}, err
	}
	return s.store.GetPeriod(ctx, tenantID, month.String())
}

// ComputeSubject computes and stores the result of one subject. A locked
// month is rejected without touching the stored result.
func (s *Service) ComputeSubject(ctx context.Context, tenantID, actorID, monthKey, subjectID string) (MonthlyResult, error) {
	month, err := ParseMonthKey(monthKey)
	if err != nil {
		return MonthlyResult{}, err
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return MonthlyResult{}, ErrInvalidSubject
	}
	exists, err := s.store.SubjectExists(ctx, tenantID, subjectID)
	if err != nil {
		return MonthlyResult{}, err
	}
	if !exists {
		return MonthlyResult{}, ErrSubjectNotFound
	}

	var result MonthlyResult
	err = s.store.WithinTx(ctx, func(tx StoreAPI) error {
		period, err := tx.LockPeriod(ctx, tenantID, month.String(), false)
		if err != nil {
			return err
		}
		if period.Status == StatusLocked {
			return ErrMonthLocked
		}
		weekly, err := tx.WeeklyScores(ctx, tenantID, subjectID, month.Weeks())
		if err != nil {
			return err
		}
		in := Input{SubjectID: subjectID, Month: month, Weekly: weekly}
		result = s.calc.Compute(in)
		if result.Tier == TierFine && !result.IsCompleteMonth {
			streak, err := s.incompleteStreak(ctx, tx, tenantID, subjectID, month)
			if err != nil {
				return err
			}
			in.IncompleteStreak = streak
			result = s.calc.Compute(in)
		}
		return tx.UpsertResult(ctx, tenantID, actorID, result)
	})
	if err != nil {
		return MonthlyResult{}, err
	}
	s.metrics.ObserveComputation(result.Tier)
	return result, nil
}

// incompleteStreak counts consecutive earlier months with an incomplete
// stored result, stopping at the first complete or missing month.
func (s *Service) incompleteStreak(ctx context.Context, tx StoreAPI, tenantID, subjectID string, month MonthKey) (int, error) {
	keys := make([]string, 0, MaxIncompleteStreak)
	for m := month.Prev(); len(keys) < MaxIncompleteStreak; m = m.Prev() {
		keys = append(keys, m.String())
	}
	completion, err := tx.CompletionByMonth(ctx, tenantID, subjectID, keys)
	if err != nil {
		return 0, err
	}
	streak := 0
	for _, key := range keys {
		complete, ok := completion[key]
		if !ok || complete {
			break
		}
		streak++
	}
	return streak, nil
}

// ComputeMonth computes every active subject. A failing subject is reported
// in the summary and does not stop the others.
func (s *Service) ComputeMonth(ctx context.Context, tenantID, actorID, monthKey string) (BatchSummary, error) {
	month, err := ParseMonthKey(monthKey)
	if err != nil {
		return BatchSummary{}, err
	}
	period, err := s.store.GetPeriod(ctx, tenantID, month.String())
	if err != nil {
		return BatchSummary{}, err
	}
	if period.Status == StatusLocked {
		return BatchSummary{}, ErrMonthLocked
	}
	ids, err := s.store.ActiveSubjectIDs(ctx, tenantID)
	if err != nil {
		return BatchSummary{}, err
	}

	summary := BatchSummary{MonthKey: month.String(), Failed: []SubjectFailure{}, Tiers: map[string]int{}}
	run := func(ctx context.Context) (any, error) {
		for _, id := range ids {
			result, err := s.ComputeSubject(ctx, tenantID, actorID, month.String(), id)
			if err != nil {
				requestctx.Logger(ctx).Warn("monthly compute failed", "month", month.String(), "subjectId", id, "err", err)
				summary.Failed = append(summary.Failed, SubjectFailure{SubjectID: id, Error: err.Error()})
				continue
			}
			summary.Computed++
			summary.Tiers[result.Tier]++
		}
		return summary, nil
	}
	if s.jobs == nil {
		_, err = run(ctx)
	} else {
		_, err = s.jobs.RunNow(ctx, JobMonthlyCompute, tenantID, run)
	}
	if err != nil {
		return BatchSummary{}, err
	}
	return summary, nil
}

// Lock moves an OPEN month to LOCKED, freezes its results and posts their
// fines and gifts to the funds ledger.
func (s *Service) Lock(ctx context.Context, tenantID, actorID, monthKey string) (TransitionResult, error) {
	month, err := ParseMonthKey(monthKey)
	if err != nil {
		return TransitionResult{}, err
	}
	var out TransitionResult
	err = s.store.WithinTx(ctx, func(tx StoreAPI) error {
		period, err := tx.LockPeriod(ctx, tenantID, month.String(), true)
		if err != nil {
			return err
		}
		if period.Status == StatusLocked {
			return ErrInvalidTransition
		}
		results, err := tx.AllResults(ctx, tenantID, month.String())
		if err != nil {
			return err
		}
		if out.Results, err = tx.SetResultsStatus(ctx, tenantID, month.String(), StatusLocked); err != nil {
			return err
		}
		for _, r := range results {
			for _, entry := range funds.MonthEntries(r.SubjectID, month.String(), actorID, r.FinalFine, r.GiftAmount) {
				if err := tx.InsertFundEntry(ctx, tenantID, entry); err != nil {
					return err
				}
				out.FundEntries++
			}
		}
		if err := tx.SetPeriodStatus(ctx, tenantID, month.String(), StatusLocked, actorID, ""); err != nil {
			return err
		}
		out.Period, err = tx.GetPeriod(ctx, tenantID, month.String())
		return err
	})
	if err != nil {
		return TransitionResult{}, err
	}
	s.metrics.ObserveTransition(StatusLocked)
	return out, nil
}

// Unlock reopens a LOCKED month and voids the ledger lines its lock posted.
func (s *Service) Unlock(ctx context.Context, tenantID, actorID, monthKey, reason string) (TransitionResult, error) {
	month, err := ParseMonthKey(monthKey)
	if err != nil {
		return TransitionResult{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return TransitionResult{}, ErrUnlockReasonRequired
	}
	var out TransitionResult
	err = s.store.WithinTx(ctx, func(tx StoreAPI) error {
		period, err := tx.LockPeriod(ctx, tenantID, month.String(), true)
		if err != nil {
			return err
		}
		if period.Status != StatusLocked {
			return ErrInvalidTransition
		}
		if out.Results, err = tx.SetResultsStatus(ctx, tenantID, month.String(), StatusOpen); err != nil {
			return err
		}
		if out.FundEntries, err = tx.VoidMonthFunds(ctx, tenantID, month.String()); err != nil {
			return err
		}
		if err := tx.SetPeriodStatus(ctx, tenantID, month.String(), StatusOpen, actorID, reason); err != nil {
			return err
		}
		out.Period, err = tx.GetPeriod(ctx, tenantID, month.String())
		return err
	})
	if err != nil {
		return TransitionResult{}, err
	}
	s.metrics.ObserveTransition(StatusOpen)
	return out, nil
}

func (s *Service) GetResult(ctx context.Context, tenantID, monthKey, subjectID string) (ResultItem, error) {
	month, err := ParseMonthKey(monthKey)
	if err != nil {
		return ResultItem{}, err
	}
	return s.store.GetResult(ctx, tenantID, subjectID, month.String())
}

func (s *Service) ListResults(ctx context.Context, tenantID, monthKey string, filter ResultFilter, limit, offset int) ([]ResultItem, int, error) {
	month, err := ParseMonthKey(monthKey)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountResults(ctx, tenantID, month.String(), filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.ListResults(ctx, tenantID, month.String(), filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) AllResults(ctx context.Context, tenantID, monthKey string) ([]ResultItem, error) {
	month, err := ParseMonthKey(monthKey)
	if err != nil {
		return nil, err
	}
	return s.store.AllResults(ctx, tenantID, month.String())
}

// Detail returns a stored result with one breakdown row per expected week.
func (s *Service) Detail(ctx context.Context, tenantID, monthKey, subjectID string) (ResultDetail, error) {
	month, err := ParseMonthKey(monthKey)
	if err != nil {
		return ResultDetail{}, err
	}
	item, err := s.store.GetResult(ctx, tenantID, subjectID, month.String())
	if err != nil {
		return ResultDetail{}, err
	}
	weeks := month.Weeks()
	weekly, err := s.store.WeeklyScores(ctx, tenantID, subjectID, weeks)
	if err != nil {
		return ResultDetail{}, err
	}
	return ResultDetail{Result: item, Weeks: weeks, Weekly: Breakdown(weeks, weekly)}, nil
}

// Breakdown lines up weekly scores with the expected weeks.
func Breakdown(weeks []string, weekly []kpi.WeeklyScore) []WeeklyBreakdown {
	byWeek := make(map[string]kpi.WeeklyScore, len(weekly))
	for _, ws := range weekly {
		byWeek[ws.WeekKey] = ws
	}
	out := make([]WeeklyBreakdown, 0, len(weeks))
	for _, w := range weeks {
		row := WeeklyBreakdown{WeekKey: w}
		if ws, ok := byWeek[w]; ok {
			row.Recorded = true
			row.AverageScore = ws.AverageScore
			row.IsComplete = ws.IsComplete
		}
		out = append(out, row)
	}
	return out
}

// IsValidation reports whether err is caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidMonthKey) ||
		errors.Is(err, ErrInvalidSubject) ||
		errors.Is(err, ErrSubjectNotFound) ||
		errors.Is(err, ErrUnlockReasonRequired)
}
