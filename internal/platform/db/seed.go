package db

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bizops/internal/domain/auth"
	"bizops/internal/platform/config"
)

// Seed ensures the default tenant, permission catalogue, roles and the first
// HR admin exist. Everything runs in one transaction and is safe to repeat.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		s := seeder{tx: tx}
		if err := s.tenant(ctx, cfg.SeedTenantName); err != nil {
			return fmt.Errorf("seed tenant: %w", err)
		}
		if err := s.permissions(ctx); err != nil {
			return fmt.Errorf("seed permissions: %w", err)
		}
		roleIDs, err := s.roles(ctx)
		if err != nil {
			return fmt.Errorf("seed roles: %w", err)
		}
		if _, err := tx.Exec(ctx, `
      INSERT INTO tenant_settings (tenant_id, email_notifications_enabled)
      VALUES ($1, $2) ON CONFLICT DO NOTHING
    `, s.tenantID, cfg.EmailEnabled); err != nil {
			return fmt.Errorf("seed tenant settings: %w", err)
		}
		if err := s.admin(ctx, roleIDs[auth.RoleHRAdmin], cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		return nil
	})
}

type seeder struct {
	tx       pgx.Tx
	tenantID string
}

func (s *seeder) tenant(ctx context.Context, name string) error {
	err := s.tx.QueryRow(ctx, "SELECT id FROM tenants WHERE name = $1", name).Scan(&s.tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = s.tx.QueryRow(ctx, "INSERT INTO tenants (name) VALUES ($1) RETURNING id", name).Scan(&s.tenantID)
	}
	return err
}

func (s *seeder) permissions(ctx context.Context) error {
	_, err := s.tx.Exec(ctx, `
    INSERT INTO permissions (key)
    SELECT unnest($1::text[])
    ON CONFLICT (key) DO NOTHING
  `, auth.DefaultPermissions)
	return err
}

// roles upserts every role of the tenant and grants its permission set. It
// returns role ids by name.
func (s *seeder) roles(ctx context.Context) (map[string]string, error) {
	names := make([]string, 0, len(auth.RolePermissions))
	for name := range auth.RolePermissions {
		names = append(names, name)
	}
	slices.Sort(names)

	roleIDs := make(map[string]string, len(names))
	for _, name := range names {
		var id string
		if err := s.tx.QueryRow(ctx, `
      INSERT INTO roles (tenant_id, name) VALUES ($1, $2)
      ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
      RETURNING id
    `, s.tenantID, name).Scan(&id); err != nil {
			return nil, err
		}
		roleIDs[name] = id

		perms := auth.RolePermissions[name]
		tag, err := s.tx.Exec(ctx, `
      INSERT INTO role_permissions (role_id, permission_id)
      SELECT $1, id FROM permissions WHERE key = ANY($2::text[])
      ON CONFLICT DO NOTHING
    `, id, perms)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() < int64(len(perms)) {
			if err := s.checkGrants(ctx, id, name, perms); err != nil {
				return nil, err
			}
		}
	}
	return roleIDs, nil
}

// checkGrants runs when fewer rows were inserted than requested, which is
// normal on a re-seed and an error when a permission key is unknown.
func (s *seeder) checkGrants(ctx context.Context, roleID, roleName string, perms []string) error {
	var granted int
	if err := s.tx.QueryRow(ctx, `
    SELECT COUNT(1) FROM role_permissions rp
    JOIN permissions p ON p.id = rp.permission_id
    WHERE rp.role_id = $1 AND p.key = ANY($2::text[])
  `, roleID, perms).Scan(&granted); err != nil {
		return err
	}
	if granted != len(perms) {
		return fmt.Errorf("role %s: %d of %d permissions granted", roleName, granted, len(perms))
	}
	return nil
}

func (s *seeder) admin(ctx context.Context, roleID, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return nil
	}
	var exists bool
	if err := s.tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE tenant_id = $1 AND email = $2)", s.tenantID, email).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.tx.Exec(ctx, "INSERT INTO users (tenant_id, email, password_hash, role_id) VALUES ($1, $2, $3, $4)", s.tenantID, email, hash, roleID)
	return err
}
