package subjects

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"bizops/internal/platform/querier"
)

const uniqueViolation = "23505"

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const subjectColumns = `id, COALESCE(user_id::text, '') AS user_id, full_name, email, kind, status, created_at, updated_at`

func (s *Store) Get(ctx context.Context, tenantID, subjectID string) (Subject, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+subjectColumns+" FROM subjects WHERE tenant_id = $1 AND id = $2", tenantID, subjectID)
	if err != nil {
		return Subject{}, err
	}
	subject, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Subject])
	if errors.Is(err, pgx.ErrNoRows) {
		return Subject{}, ErrNotFound
	}
	return subject, err
}

func (s *Store) Exists(ctx context.Context, tenantID, subjectID string) (bool, error) {
	var found bool
	err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM subjects WHERE tenant_id = $1 AND id = $2)", tenantID, subjectID).Scan(&found)
	return found, err
}

// where renders the filter as a WHERE clause whose first argument is the tenant.
func where(tenantID string, filter Filter) (string, []any) {
	clauses := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.Status != "" {
		add("status = ?", filter.Status)
	}
	if filter.Kind != "" {
		add("kind = ?", filter.Kind)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		add("(full_name ILIKE ? OR email ILIKE ?)", "%"+escapeLike(q)+"%")
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(value)
}

func (s *Store) Count(ctx context.Context, tenantID string, filter Filter) (int, error) {
	clause, args := where(tenantID, filter)
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM subjects"+clause, args...).Scan(&total)
	return total, err
}

func (s *Store) List(ctx context.Context, tenantID string, filter Filter, limit, offset int) ([]Subject, error) {
	clause, args := where(tenantID, filter)
	n := len(args)
	args = append(args, limit, offset)
	rows, err := s.DB.Query(ctx, "SELECT "+subjectColumns+" FROM subjects"+clause+
		" ORDER BY full_name, id LIMIT $"+strconv.Itoa(n+1)+" OFFSET $"+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Subject])
}

// ActiveIDs lists the subjects a month-wide compute iterates over.
func (s *Store) ActiveIDs(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM subjects WHERE tenant_id = $1 AND status = $2 ORDER BY id", tenantID, StatusActive)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) Create(ctx context.Context, tenantID string, subject Subject) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO subjects (tenant_id, user_id, full_name, email, kind, status)
    VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6)
    RETURNING id
  `, tenantID, subject.UserID, subject.FullName, subject.Email, subject.Kind, subject.Status).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return "", ErrDuplicateEmail
	}
	return id, err
}

func (s *Store) UpdateStatus(ctx context.Context, tenantID, subjectID, status string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE subjects SET status = $1, updated_at = now()
    WHERE tenant_id = $2 AND id = $3
  `, status, tenantID, subjectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
