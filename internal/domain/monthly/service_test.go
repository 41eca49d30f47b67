package monthly

import (
	"context"
	"errors"
	"sort"
	"testing"

	"bizops/internal/domain/funds"
	"bizops/internal/domain/kpi"
	"bizops/internal/platform/config"
)

type fakeStore struct {
	periods  map[string]Period
	subjects map[string]bool
	weekly   map[string][]kpi.WeeklyScore
	results  map[string]MonthlyResult
	entries  []funds.Entry
	failFor  string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		periods:  map[string]Period{},
		subjects: map[string]bool{},
		weekly:   map[string][]kpi.WeeklyScore{},
		results:  map[string]MonthlyResult{},
	}
}

func resultKey(subjectID, monthKey string) string { return subjectID + "/" + monthKey }

func (f *fakeStore) WithinTx(ctx context.Context, fn func(StoreAPI) error) error {
	return fn(f)
}

func (f *fakeStore) GetPeriod(ctx context.Context, tenantID, monthKey string) (Period, error) {
	if p, ok := f.periods[monthKey]; ok {
		return p, nil
	}
	return Period{MonthKey: monthKey, Status: StatusOpen}, nil
}

func (f *fakeStore) LockPeriod(ctx context.Context, tenantID, monthKey string, exclusive bool) (Period, error) {
	return f.GetPeriod(ctx, tenantID, monthKey)
}

func (f *fakeStore) SetPeriodStatus(ctx context.Context, tenantID, monthKey, status, actorID, reason string) error {
	f.periods[monthKey] = Period{MonthKey: monthKey, Status: status, LockedBy: actorID, UnlockReason: reason}
	return nil
}

func (f *fakeStore) SubjectExists(ctx context.Context, tenantID, subjectID string) (bool, error) {
	return f.subjects[subjectID], nil
}

func (f *fakeStore) ActiveSubjectIDs(ctx context.Context, tenantID string) ([]string, error) {
	var ids []string
	for id := range f.subjects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) WeeklyScores(ctx context.Context, tenantID, subjectID string, weekKeys []string) ([]kpi.WeeklyScore, error) {
	if subjectID == f.failFor {
		return nil, errors.New("boom")
	}
	return f.weekly[subjectID], nil
}

func (f *fakeStore) CompletionByMonth(ctx context.Context, tenantID, subjectID string, monthKeys []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, key := range monthKeys {
		if r, ok := f.results[resultKey(subjectID, key)]; ok {
			out[key] = r.IsCompleteMonth
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertResult(ctx context.Context, tenantID, actorID string, result MonthlyResult) error {
	if existing, ok := f.results[resultKey(result.SubjectID, result.MonthKey)]; ok && existing.Status == StatusLocked {
		return ErrMonthLocked
	}
	f.results[resultKey(result.SubjectID, result.MonthKey)] = result
	return nil
}

func (f *fakeStore) GetResult(ctx context.Context, tenantID, subjectID, monthKey string) (ResultItem, error) {
	r, ok := f.results[resultKey(subjectID, monthKey)]
	if !ok {
		return ResultItem{}, ErrResultNotFound
	}
	return ResultItem{MonthlyResult: r}, nil
}

func (f *fakeStore) CountResults(ctx context.Context, tenantID, monthKey string, filter ResultFilter) (int, error) {
	items, _ := f.AllResults(ctx, tenantID, monthKey)
	return len(items), nil
}

func (f *fakeStore) ListResults(ctx context.Context, tenantID, monthKey string, filter ResultFilter, limit, offset int) ([]ResultItem, error) {
	return f.AllResults(ctx, tenantID, monthKey)
}

func (f *fakeStore) AllResults(ctx context.Context, tenantID, monthKey string) ([]ResultItem, error) {
	var out []ResultItem
	for _, r := range f.results {
		if r.MonthKey == monthKey {
			out = append(out, ResultItem{MonthlyResult: r})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

func (f *fakeStore) SetResultsStatus(ctx context.Context, tenantID, monthKey, status string) (int64, error) {
	var n int64
	for key, r := range f.results {
		if r.MonthKey == monthKey {
			r.Status = status
			f.results[key] = r
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertFundEntry(ctx context.Context, tenantID string, entry funds.Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeStore) VoidMonthFunds(ctx context.Context, tenantID, monthKey string) (int64, error) {
	var n int64
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.MonthKey == monthKey {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return n, nil
}

type countingRecorder struct {
	tiers       map[string]int
	transitions []string
}

func (c *countingRecorder) ObserveComputation(tier string) { c.tiers[tier]++ }
func (c *countingRecorder) ObserveTransition(status string) {
	c.transitions = append(c.transitions, status)
}

type recordingJobs struct {
	runs []string
}

func (r *recordingJobs) RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error) {
	r.runs = append(r.runs, jobType)
	return run(ctx)
}

func febScores(subjectID string, scores ...float64) []kpi.WeeklyScore {
	weeks := kpi.FridaysInMonth(2024, 2)
	out := make([]kpi.WeeklyScore, 0, len(scores))
	for i, score := range scores {
		out = append(out, kpi.WeeklyScore{SubjectID: subjectID, WeekKey: weeks[i], AverageScore: score, IsComplete: true, Submissions: 1})
	}
	return out
}

func newTestService(store *fakeStore) (*Service, *countingRecorder, *recordingJobs) {
	rec := &countingRecorder{tiers: map[string]int{}}
	jobs := &recordingJobs{}
	return NewService(store, NewCalculator(config.DefaultPolicy()), jobs, rec), rec, jobs
}

func TestComputeSubjectStoresResult(t *testing.T) {
	store := newFakeStore()
	store.subjects["s1"] = true
	store.weekly["s1"] = febScores("s1", 92, 88, 95, 90)
	svc, rec, _ := newTestService(store)

	result, err := svc.ComputeSubject(context.Background(), "t1", "u1", "2024-02", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tier != TierBonus || *result.MonthlyScore != 91.25 || !result.IsCompleteMonth {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, ok := store.results["s1/2024-02"]; !ok {
		t.Fatal("expected result to be stored")
	}
	if rec.tiers[TierBonus] != 1 {
		t.Fatalf("expected one bonus observation, got %v", rec.tiers)
	}
}

func TestComputeSubjectValidation(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.ComputeSubject(ctx, "t1", "u1", "2024-2", "s1"); !errors.Is(err, ErrInvalidMonthKey) {
		t.Fatalf("expected ErrInvalidMonthKey, got %v", err)
	}
	if _, err := svc.ComputeSubject(ctx, "t1", "u1", "2024-02", " "); !errors.Is(err, ErrInvalidSubject) {
		t.Fatalf("expected ErrInvalidSubject, got %v", err)
	}
	_, err := svc.ComputeSubject(ctx, "t1", "u1", "2024-02", "ghost")
	if !errors.Is(err, ErrSubjectNotFound) || !IsValidation(err) {
		t.Fatalf("expected validation ErrSubjectNotFound, got %v", err)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.subjects["s1"] = true
	store.weekly["s1"] = febScores("s1", 71.1, 64.3, 59.9)
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	first, err := svc.ComputeSubject(ctx, "t1", "u1", "2024-02", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.ComputeSubject(ctx, "t1", "u1", "2024-02", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *first.MonthlyScore != *second.MonthlyScore || first.Tier != second.Tier || first.WeeksCountUsed != second.WeeksCountUsed {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestComputeLockedMonthLeavesResultUntouched(t *testing.T) {
	store := newFakeStore()
	store.subjects["s1"] = true
	store.weekly["s1"] = febScores("s1", 40)
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.ComputeSubject(ctx, "t1", "u1", "2024-02", "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Lock(ctx, "t1", "u1", "2024-02"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := store.results["s1/2024-02"]

	store.weekly["s1"] = febScores("s1", 99, 99, 99, 99)
	if _, err := svc.ComputeSubject(ctx, "t1", "u1", "2024-02", "s1"); !errors.Is(err, ErrMonthLocked) {
		t.Fatalf("expected ErrMonthLocked, got %v", err)
	}
	if _, err := svc.ComputeMonth(ctx, "t1", "u1", "2024-02"); !errors.Is(err, ErrMonthLocked) {
		t.Fatalf("expected ErrMonthLocked for batch, got %v", err)
	}
	after := store.results["s1/2024-02"]
	if after.Tier != before.Tier || *after.MonthlyScore != *before.MonthlyScore || after.Status != StatusLocked {
		t.Fatalf("expected locked result to be unchanged, before %+v after %+v", before, after)
	}
}

func TestComputeMonthContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	store.subjects["a"] = true
	store.subjects["b"] = true
	store.subjects["c"] = true
	store.weekly["a"] = febScores("a", 95, 95, 95, 95)
	store.weekly["c"] = febScores("c", 30)
	store.failFor = "b"
	svc, _, jobs := newTestService(store)

	summary, err := svc.ComputeMonth(context.Background(), "t1", "u1", "2024-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Computed != 2 || len(summary.Failed) != 1 || summary.Failed[0].SubjectID != "b" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Tiers[TierBonus] != 1 || summary.Tiers[TierFine] != 1 {
		t.Fatalf("unexpected tier counts: %v", summary.Tiers)
	}
	if len(jobs.runs) != 1 || jobs.runs[0] != JobMonthlyCompute {
		t.Fatalf("expected one job run, got %v", jobs.runs)
	}
}

func TestIncompleteStreakRaisesFine(t *testing.T) {
	store := newFakeStore()
	store.subjects["s1"] = true
	store.results["s1/2024-01"] = MonthlyResult{SubjectID: "s1", MonthKey: "2024-01", IsCompleteMonth: false}
	store.results["s1/2023-12"] = MonthlyResult{SubjectID: "s1", MonthKey: "2023-12", IsCompleteMonth: false}
	store.results["s1/2023-11"] = MonthlyResult{SubjectID: "s1", MonthKey: "2023-11", IsCompleteMonth: true}
	store.weekly["s1"] = febScores("s1", 45)
	svc, _, _ := newTestService(store)

	result, err := svc.ComputeSubject(context.Background(), "t1", "u1", "2024-02", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// streak of two: 1000 * min(1 + 0.5*2, 2)
	if result.BaseFine != 1000 || result.FinalFine != 2000 {
		t.Fatalf("expected fine 1000 raised to 2000, got %+v", result)
	}
}

func TestLockUnlockLifecycle(t *testing.T) {
	store := newFakeStore()
	store.subjects["a"] = true
	store.subjects["b"] = true
	store.subjects["c"] = true
	store.weekly["a"] = febScores("a", 95, 95, 95, 95)
	store.weekly["b"] = febScores("b", 30, 30, 30, 30)
	store.weekly["c"] = febScores("c", 70, 70, 70, 70)
	svc, rec, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.ComputeMonth(ctx, "t1", "u1", "2024-02"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Unlock(ctx, "t1", "u1", "2024-02", "typo"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	locked, err := svc.Lock(ctx, "t1", "u1", "2024-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locked.Period.Status != StatusLocked || locked.Results != 3 || locked.FundEntries != 2 {
		t.Fatalf("unexpected lock outcome: %+v", locked)
	}
	if period, _ := svc.Period(ctx, "t1", "2024-02"); period.Status != StatusLocked {
		t.Fatalf("expected month to report locked, got %+v", period)
	}
	if _, err := svc.Lock(ctx, "t1", "u1", "2024-02"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.Unlock(ctx, "t1", "u1", "2024-02", "  "); !errors.Is(err, ErrUnlockReasonRequired) {
		t.Fatalf("expected ErrUnlockReasonRequired, got %v", err)
	}

	unlocked, err := svc.Unlock(ctx, "t1", "u1", "2024-02", "late marks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unlocked.Period.Status != StatusOpen || unlocked.FundEntries != 2 || len(store.entries) != 0 {
		t.Fatalf("unexpected unlock outcome: %+v entries=%d", unlocked, len(store.entries))
	}
	if store.results["a/2024-02"].Status != StatusOpen {
		t.Fatal("expected results to reopen")
	}
	if len(rec.transitions) != 2 {
		t.Fatalf("expected two transitions, got %v", rec.transitions)
	}
}

func TestDetailBreakdown(t *testing.T) {
	store := newFakeStore()
	store.subjects["s1"] = true
	store.weekly["s1"] = febScores("s1", 80, 70)
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.ComputeSubject(ctx, "t1", "u1", "2024-02", "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	detail, err := svc.Detail(ctx, "t1", "2024-02", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detail.Weekly) != 4 || !detail.Weekly[0].Recorded || detail.Weekly[3].Recorded {
		t.Fatalf("unexpected breakdown: %+v", detail.Weekly)
	}
	if _, err := svc.Detail(ctx, "t1", "2024-02", "nobody"); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
}
