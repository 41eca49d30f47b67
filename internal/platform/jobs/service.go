package jobs

import (
	"context"
	"encoding/json"

	"bizops/internal/platform/querier"
	"bizops/internal/requestctx"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Service records synchronous batch work in job_runs. Runs happen on the
// caller's goroutine; there is no queue or scheduler.
type Service struct {
	DB querier.Querier
}

func New(db querier.Querier) *Service {
	return &Service{DB: db}
}

// RunNow executes run and stores its outcome. Bookkeeping failures are
// logged and never mask the result of run.
func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error) {
	logger := requestctx.Logger(ctx).With("jobType", jobType)
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, tenantID, jobType, StatusRunning).Scan(&runID); err != nil {
		logger.Warn("job run insert failed", "err", err)
	}

	details, err := run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		details = map[string]any{"error": err.Error()}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		logger.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			logger.Warn("job run update failed", "runId", runID, "err", updErr)
		}
	}
	logger.Info("job run finished", "status", status, "runId", runID)
	return details, err
}
