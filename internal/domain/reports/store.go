package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"bizops/internal/platform/querier"
)

var ErrJobRunNotFound = errors.New("job run not found")

const jobRunColumns = `id, job_type, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at`

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) ListJobRuns(ctx context.Context, tenantID string, filter JobRunFilter, limit, offset int) ([]JobRun, error) {
	where, args := jobRunWhere(tenantID, filter)
	query := fmt.Sprintf("SELECT %s FROM job_runs WHERE %s ORDER BY started_at DESC LIMIT $%d OFFSET $%d",
		jobRunColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []JobRun{}
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) CountJobRuns(ctx context.Context, tenantID string, filter JobRunFilter) (int, error) {
	where, args := jobRunWhere(tenantID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM job_runs WHERE "+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) JobRunByID(ctx context.Context, tenantID, runID string) (JobRun, error) {
	run, err := scanJobRun(s.DB.QueryRow(ctx,
		"SELECT "+jobRunColumns+" FROM job_runs WHERE tenant_id = $1 AND id = $2", tenantID, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return JobRun{}, ErrJobRunNotFound
	}
	return run, err
}

func scanJobRun(row pgx.Row) (JobRun, error) {
	var run JobRun
	var raw []byte
	if err := row.Scan(&run.ID, &run.JobType, &run.Status, &raw, &run.StartedAt, &run.CompletedAt); err != nil {
		return JobRun{}, err
	}
	run.Details = decodeDetails(raw)
	if month, ok := run.Details["monthKey"].(string); ok {
		run.MonthKey = month
	}
	if run.CompletedAt != nil {
		ms := run.CompletedAt.Sub(run.StartedAt).Milliseconds()
		run.DurationMS = &ms
	}
	return run, nil
}

// jobRunWhere returns the WHERE clause body and its positional args.
func jobRunWhere(tenantID string, filter JobRunFilter) (string, []any) {
	clauses := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if value := strings.TrimSpace(filter.JobType); value != "" {
		add("job_type = $%d", value)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		add("status = $%d", value)
	}
	if value := strings.TrimSpace(filter.MonthKey); value != "" {
		add("details_json->>'monthKey' = $%d", value)
	}
	if filter.StartedFrom != nil {
		add("started_at >= $%d", *filter.StartedFrom)
	}
	if filter.StartedTo != nil {
		add("started_at <= $%d", *filter.StartedTo)
	}
	return strings.Join(clauses, " AND "), args
}

// decodeDetails keeps undecodable details visible under "raw".
func decodeDetails(raw []byte) map[string]any {
	details := map[string]any{}
	if len(raw) == 0 {
		return details
	}
	if err := json.Unmarshal(raw, &details); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return details
}
