package auth

import (
	"context"
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

// Account is the login view of a user row.
type Account struct {
	ID           string `db:"id"`
	TenantID     string `db:"tenant_id"`
	RoleID       string `db:"role_id"`
	RoleName     string `db:"role_name"`
	PasswordHash string `db:"password_hash"`
}

// Profile is what a signed-in user may see about themselves.
type Profile struct {
	UserID      string     `json:"userId" db:"id"`
	TenantID    string     `json:"tenantId" db:"tenant_id"`
	Email       string     `json:"email" db:"email"`
	Role        string     `json:"role" db:"role_name"`
	Permissions []string   `json:"permissions" db:"permissions"`
	LastLogin   *time.Time `json:"lastLogin,omitempty" db:"last_login"`
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (Account, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id, u.tenant_id, u.role_id, r.name AS role_name, u.password_hash
    FROM users u
    JOIN roles r ON r.id = u.role_id
    WHERE u.email = lower($1) AND u.status = $2
  `, email, UserStatusActive)
	if err != nil {
		return Account{}, err
	}
	account, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Account])
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrInvalidCredentials
	}
	return account, err
}

func (s *Store) Profile(ctx context.Context, tenantID, userID string) (Profile, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id, u.tenant_id, u.email, r.name AS role_name, u.last_login,
      COALESCE(array_agg(p.key ORDER BY p.key) FILTER (WHERE p.key IS NOT NULL), '{}') AS permissions
    FROM users u
    JOIN roles r ON r.id = u.role_id
    LEFT JOIN role_permissions rp ON rp.role_id = r.id
    LEFT JOIN permissions p ON p.id = rp.permission_id
    WHERE u.tenant_id = $1 AND u.id = $2 AND u.status = $3
    GROUP BY u.id, r.name
  `, tenantID, userID, UserStatusActive)
	if err != nil {
		return Profile{}, err
	}
	profile, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Profile])
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrUserNotFound
	}
	return profile, err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

func (s *Store) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	var granted bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM role_permissions rp
      JOIN permissions p ON p.id = rp.permission_id
      WHERE rp.role_id = $1 AND p.key = $2
    )
  `, roleID, permission).Scan(&granted)
	return granted, err
}
