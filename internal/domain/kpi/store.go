package kpi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

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

// monthStatusLocked mirrors the LOCKED status of monthly_periods.
const monthStatusLocked = "LOCKED"

// MonthLocked creates the period row when missing, so a concurrent lock has a
// row to conflict on, and reads its status FOR SHARE.
func (s *Store) MonthLocked(ctx context.Context, tenantID, monthKey string) (bool, error) {
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO monthly_periods (tenant_id, month_key)
    VALUES ($1, $2)
    ON CONFLICT (tenant_id, month_key) DO NOTHING
  `, tenantID, monthKey); err != nil {
		return false, err
	}
	var status string
	if err := s.DB.QueryRow(ctx, `
    SELECT status FROM monthly_periods
    WHERE tenant_id = $1 AND month_key = $2
    FOR SHARE
  `, tenantID, monthKey).Scan(&status); err != nil {
		return false, err
	}
	return status == monthStatusLocked, nil
}

func (s *Store) SubjectExists(ctx context.Context, tenantID, subjectID string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM subjects WHERE tenant_id = $1 AND id = $2", tenantID, subjectID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) UpsertSubmission(ctx context.Context, tenantID string, sub MarkSubmission) (MarkSubmission, error) {
	marksJSON, err := json.Marshal(sub.Marks)
	if err != nil {
		return MarkSubmission{}, err
	}
	err = s.DB.QueryRow(ctx, `
    INSERT INTO kpi_mark_submissions (tenant_id, subject_id, week_key, marker_id, marks_json, score, note)
    VALUES ($1,$2,$3::date,$4,$5,$6,$7)
    ON CONFLICT (tenant_id, subject_id, week_key, marker_id)
    DO UPDATE SET marks_json = EXCLUDED.marks_json, score = EXCLUDED.score, note = EXCLUDED.note, updated_at = now()
    RETURNING id, updated_at
  `, tenantID, sub.SubjectID, sub.WeekKey, sub.MarkerID, marksJSON, sub.Score, sub.Note).Scan(&sub.ID, &sub.UpdatedAt)
	if err != nil {
		return MarkSubmission{}, err
	}
	return sub, nil
}

const submissionColumns = `id, subject_id, week_key, marker_id, marks_json, score, note, updated_at`

func scanSubmission(row pgx.Row) (MarkSubmission, error) {
	var sub MarkSubmission
	var week time.Time
	var marksJSON []byte
	if err := row.Scan(&sub.ID, &sub.SubjectID, &week, &sub.MarkerID, &marksJSON, &sub.Score, &sub.Note, &sub.UpdatedAt); err != nil {
		return MarkSubmission{}, err
	}
	sub.WeekKey = week.Format(WeekKeyLayout)
	if err := json.Unmarshal(marksJSON, &sub.Marks); err != nil {
		return MarkSubmission{}, err
	}
	return sub, nil
}

func (s *Store) GetSubmission(ctx context.Context, tenantID, submissionID string) (MarkSubmission, error) {
	sub, err := scanSubmission(s.DB.QueryRow(ctx, "SELECT "+submissionColumns+" FROM kpi_mark_submissions WHERE tenant_id = $1 AND id = $2", tenantID, submissionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return MarkSubmission{}, ErrSubmissionNotFound
	}
	return sub, err
}

func (s *Store) DeleteSubmission(ctx context.Context, tenantID, submissionID string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM kpi_mark_submissions WHERE tenant_id = $1 AND id = $2", tenantID, submissionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

func (s *Store) ListSubmissions(ctx context.Context, tenantID, subjectID, weekKey string) ([]MarkSubmission, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+submissionColumns+`
    FROM kpi_mark_submissions
    WHERE tenant_id = $1 AND subject_id = $2 AND week_key = $3::date
    ORDER BY marker_id
  `, tenantID, subjectID, weekKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MarkSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) UpsertWeeklyScore(ctx context.Context, tenantID string, score WeeklyScore) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO kpi_weekly_scores (tenant_id, subject_id, week_key, average_score, submissions, is_complete)
    VALUES ($1,$2,$3::date,$4,$5,$6)
    ON CONFLICT (tenant_id, subject_id, week_key)
    DO UPDATE SET average_score = EXCLUDED.average_score, submissions = EXCLUDED.submissions,
                  is_complete = EXCLUDED.is_complete, updated_at = now()
  `, tenantID, score.SubjectID, score.WeekKey, score.AverageScore, score.Submissions, score.IsComplete)
	return err
}

func (s *Store) DeleteWeeklyScore(ctx context.Context, tenantID, subjectID, weekKey string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM kpi_weekly_scores WHERE tenant_id = $1 AND subject_id = $2 AND week_key = $3::date", tenantID, subjectID, weekKey)
	return err
}

// WeeklyScores returns the stored scores of subjectID restricted to weekKeys,
// ordered by week.
func (s *Store) WeeklyScores(ctx context.Context, tenantID, subjectID string, weekKeys []string) ([]WeeklyScore, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT subject_id, week_key, average_score, submissions, is_complete
    FROM kpi_weekly_scores
    WHERE tenant_id = $1 AND subject_id = $2 AND to_char(week_key, 'YYYY-MM-DD') = ANY($3::text[])
    ORDER BY week_key
  `, tenantID, subjectID, weekKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WeeklyScore
	for rows.Next() {
		var score WeeklyScore
		var week time.Time
		if err := rows.Scan(&score.SubjectID, &week, &score.AverageScore, &score.Submissions, &score.IsComplete); err != nil {
			return nil, err
		}
		score.WeekKey = week.Format(WeekKeyLayout)
		out = append(out, score)
	}
	return out, rows.Err()
}
