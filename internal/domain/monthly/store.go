package monthly

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"bizops/internal/domain/funds"
	"bizops/internal/domain/kpi"
	"bizops/internal/domain/subjects"
	"bizops/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(StoreAPI) error) error {
	return querier.InTx(ctx, s.DB, func(q querier.Querier) error {
		return fn(&Store{DB: q})
	})
}

func scanPeriod(row pgx.Row, monthKey string) (Period, error) {
	p := Period{MonthKey: monthKey}
	var lockedBy, reason *string
	err := row.Scan(&p.Status, &p.LockedAt, &lockedBy, &reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{MonthKey: monthKey, Status: StatusOpen}, nil
	}
	if err != nil {
		return Period{}, err
	}
	if lockedBy != nil {
		p.LockedBy = *lockedBy
	}
	if reason != nil {
		p.UnlockReason = *reason
	}
	return p, nil
}

// GetPeriod reads the month status; a month without a row is OPEN.
func (s *Store) GetPeriod(ctx context.Context, tenantID, monthKey string) (Period, error) {
	return scanPeriod(s.DB.QueryRow(ctx, `
    SELECT status, locked_at, locked_by::text, unlock_reason
    FROM monthly_periods
    WHERE tenant_id = $1 AND month_key = $2
  `, tenantID, monthKey), monthKey)
}

// LockPeriod creates the period row when missing and row-locks it for the
// rest of the transaction. Computes take a shared lock, lock and unlock an
// exclusive one.
func (s *Store) LockPeriod(ctx context.Context, tenantID, monthKey string, exclusive bool) (Period, error) {
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO monthly_periods (tenant_id, month_key, status)
    VALUES ($1,$2,$3)
    ON CONFLICT (tenant_id, month_key) DO NOTHING
  `, tenantID, monthKey, StatusOpen); err != nil {
		return Period{}, err
	}
	mode := "FOR SHARE"
	if exclusive {
		mode = "FOR UPDATE"
	}
	return scanPeriod(s.DB.QueryRow(ctx, `
    SELECT status, locked_at, locked_by::text, unlock_reason
    FROM monthly_periods
    WHERE tenant_id = $1 AND month_key = $2
  `+mode, tenantID, monthKey), monthKey)
}

func (s *Store) SetPeriodStatus(ctx context.Context, tenantID, monthKey, status, actorID, reason string) error {
	var err error
	if status == StatusLocked {
		_, err = s.DB.Exec(ctx, `
      UPDATE monthly_periods
      SET status = $1, locked_at = now(), locked_by = $2, unlock_reason = NULL, updated_at = now()
      WHERE tenant_id = $3 AND month_key = $4
    `, status, nullIfEmpty(actorID), tenantID, monthKey)
	} else {
		_, err = s.DB.Exec(ctx, `
      UPDATE monthly_periods
      SET status = $1, locked_at = NULL, locked_by = NULL, unlock_reason = $2, updated_at = now()
      WHERE tenant_id = $3 AND month_key = $4
    `, status, nullIfEmpty(reason), tenantID, monthKey)
	}
	return err
}

func (s *Store) SubjectExists(ctx context.Context, tenantID, subjectID string) (bool, error) {
	return subjects.NewStore(s.DB).Exists(ctx, tenantID, subjectID)
}

func (s *Store) ActiveSubjectIDs(ctx context.Context, tenantID string) ([]string, error) {
	return subjects.NewStore(s.DB).ActiveIDs(ctx, tenantID)
}

func (s *Store) WeeklyScores(ctx context.Context, tenantID, subjectID string, weekKeys []string) ([]kpi.WeeklyScore, error) {
	return kpi.NewStore(s.DB).WeeklyScores(ctx, tenantID, subjectID, weekKeys)
}

// CompletionByMonth maps each stored month of the subject to its
// is_complete_month flag. Months without a result are absent.
func (s *Store) CompletionByMonth(ctx context.Context, tenantID, subjectID string, monthKeys []string) (map[string]bool, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT month_key, is_complete_month
    FROM monthly_results
    WHERE tenant_id = $1 AND subject_id = $2 AND month_key = ANY($3::text[])
  `, tenantID, subjectID, monthKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool, len(monthKeys))
	for rows.Next() {
		var key string
		var complete bool
		if err := rows.Scan(&key, &complete); err != nil {
			return nil, err
		}
		out[key] = complete
	}
	return out, rows.Err()
}

// UpsertResult writes the result unless the stored row is LOCKED, in which
// case nothing changes and ErrMonthLocked is returned.
func (s *Store) UpsertResult(ctx context.Context, tenantID, actorID string, r MonthlyResult) error {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO monthly_results (
      tenant_id, subject_id, month_key, monthly_score, tier, action_type, base_fine, final_fine,
      gift_amount, weeks_count_used, expected_weeks_count, is_complete_month, status, computed_by, computed_at
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14, now())
    ON CONFLICT (tenant_id, subject_id, month_key) DO UPDATE SET
      monthly_score = EXCLUDED.monthly_score,
      tier = EXCLUDED.tier,
      action_type = EXCLUDED.action_type,
      base_fine = EXCLUDED.base_fine,
      final_fine = EXCLUDED.final_fine,
      gift_amount = EXCLUDED.gift_amount,
      weeks_count_used = EXCLUDED.weeks_count_used,
      expected_weeks_count = EXCLUDED.expected_weeks_count,
      is_complete_month = EXCLUDED.is_complete_month,
      computed_by = EXCLUDED.computed_by,
      computed_at = now()
    WHERE monthly_results.status = 'OPEN'
  `, tenantID, r.SubjectID, r.MonthKey, r.MonthlyScore, r.Tier, r.ActionType, r.BaseFine, r.FinalFine,
		r.GiftAmount, r.WeeksCountUsed, r.ExpectedWeeksCount, r.IsCompleteMonth, r.Status, nullIfEmpty(actorID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMonthLocked
	}
	return nil
}

const resultColumns = `
  r.subject_id, r.month_key, r.monthly_score, r.tier, r.action_type, r.base_fine::float8, r.final_fine::float8,
  r.gift_amount::float8, r.weeks_count_used, r.expected_weeks_count, r.is_complete_month, r.status,
  s.full_name, s.email, r.computed_at`

func scanResult(row pgx.Row) (ResultItem, error) {
	var item ResultItem
	var computedAt time.Time
	err := row.Scan(
		&item.SubjectID, &item.MonthKey, &item.MonthlyScore, &item.Tier, &item.ActionType, &item.BaseFine, &item.FinalFine,
		&item.GiftAmount, &item.WeeksCountUsed, &item.ExpectedWeeksCount, &item.IsCompleteMonth, &item.Status,
		&item.FullName, &item.Email, &computedAt,
	)
	if err != nil {
		return ResultItem{}, err
	}
	item.ComputedAt = computedAt
	return item, nil
}

func (s *Store) GetResult(ctx context.Context, tenantID, subjectID, monthKey string) (ResultItem, error) {
	item, err := scanResult(s.DB.QueryRow(ctx, `
    SELECT `+resultColumns+`
    FROM monthly_results r
    JOIN subjects s ON s.id = r.subject_id AND s.tenant_id = r.tenant_id
    WHERE r.tenant_id = $1 AND r.subject_id = $2 AND r.month_key = $3
  `, tenantID, subjectID, monthKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return ResultItem{}, ErrResultNotFound
	}
	return item, err
}

func (s *Store) resultQuery(prefix, tenantID, monthKey string, filter ResultFilter) (string, []any) {
	query := prefix + `
    FROM monthly_results r
    JOIN subjects s ON s.id = r.subject_id AND s.tenant_id = r.tenant_id
    WHERE r.tenant_id = $1 AND r.month_key = $2`
	args := []any{tenantID, monthKey}
	if filter.Tier != "" {
		query += fmt.Sprintf(" AND r.tier = $%d", len(args)+1)
		args = append(args, filter.Tier)
	}
	return query, args
}

func (s *Store) CountResults(ctx context.Context, tenantID, monthKey string, filter ResultFilter) (int, error) {
	query, args := s.resultQuery("SELECT COUNT(1)", tenantID, monthKey, filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListResults(ctx context.Context, tenantID, monthKey string, filter ResultFilter, limit, offset int) ([]ResultItem, error) {
	query, args := s.resultQuery("SELECT "+resultColumns, tenantID, monthKey, filter)
	query += fmt.Sprintf(" ORDER BY s.full_name, r.subject_id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	return s.collectResults(ctx, query, args...)
}

func (s *Store) AllResults(ctx context.Context, tenantID, monthKey string) ([]ResultItem, error) {
	query, args := s.resultQuery("SELECT "+resultColumns, tenantID, monthKey, ResultFilter{})
	query += " ORDER BY s.full_name, r.subject_id"
	return s.collectResults(ctx, query, args...)
}

func (s *Store) collectResults(ctx context.Context, query string, args ...any) ([]ResultItem, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultItem
	for rows.Next() {
		item, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) SetResultsStatus(ctx context.Context, tenantID, monthKey, status string) (int64, error) {
	tag, err := s.DB.Exec(ctx, "UPDATE monthly_results SET status = $1 WHERE tenant_id = $2 AND month_key = $3", status, tenantID, monthKey)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) InsertFundEntry(ctx context.Context, tenantID string, entry funds.Entry) error {
	_, err := funds.NewStore(s.DB).Insert(ctx, tenantID, entry)
	return err
}

func (s *Store) VoidMonthFunds(ctx context.Context, tenantID, monthKey string) (int64, error) {
	return funds.NewStore(s.DB).VoidMonth(ctx, tenantID, monthKey)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
