package funds

import (
	"context"
	"time"

	"bizops/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) SubjectExists(ctx context.Context, tenantID, subjectID string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM subjects WHERE tenant_id = $1 AND id = $2", tenantID, subjectID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) Insert(ctx context.Context, tenantID string, entry Entry) (Entry, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO fund_entries (tenant_id, subject_id, month_key, kind, amount, note, created_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id, created_at
  `, tenantID, entry.SubjectID, nullIfEmpty(entry.MonthKey), entry.Kind, entry.Amount, entry.Note, nullIfEmpty(entry.CreatedBy)).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// VoidMonth marks every live fine and gift sourced from monthKey as voided.
func (s *Store) VoidMonth(ctx context.Context, tenantID, monthKey string) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE fund_entries SET voided_at = now()
    WHERE tenant_id = $1 AND month_key = $2 AND voided_at IS NULL AND kind IN ($3, $4)
  `, tenantID, monthKey, KindFine, KindGift)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CountEntries(ctx context.Context, tenantID, subjectID string) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM fund_entries WHERE tenant_id = $1 AND subject_id = $2", tenantID, subjectID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListEntries(ctx context.Context, tenantID, subjectID string, limit, offset int) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, subject_id, COALESCE(month_key, ''), kind, amount::float8, note,
           COALESCE(created_by::text, ''), created_at, voided_at
    FROM fund_entries
    WHERE tenant_id = $1 AND subject_id = $2
    ORDER BY created_at DESC, id
    LIMIT $3 OFFSET $4
  `, tenantID, subjectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var voidedAt *time.Time
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.MonthKey, &e.Kind, &e.Amount, &e.Note, &e.CreatedBy, &e.CreatedAt, &voidedAt); err != nil {
			return nil, err
		}
		e.VoidedAt = voidedAt
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Balance(ctx context.Context, tenantID, subjectID string) (Balance, error) {
	b := Balance{SubjectID: subjectID}
	err := s.DB.QueryRow(ctx, `
    SELECT
      COALESCE(SUM(amount) FILTER (WHERE kind = $3), 0)::float8,
      COALESCE(SUM(amount) FILTER (WHERE kind = $4), 0)::float8,
      COALESCE(SUM(amount) FILTER (WHERE kind = $5), 0)::float8,
      COALESCE(SUM(amount), 0)::float8
    FROM fund_entries
    WHERE tenant_id = $1 AND subject_id = $2 AND voided_at IS NULL
  `, tenantID, subjectID, KindFine, KindGift, KindAdjustment).Scan(&b.Fines, &b.Gifts, &b.Adjustment, &b.Balance)
	return b, err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
