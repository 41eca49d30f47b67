package notifications

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"bizops/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateNotification(ctx context.Context, tenantID, userID, ntype, title, body string) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO notifications (tenant_id, user_id, type, title, body)
    VALUES ($1,$2,$3,$4,$5)
  `, tenantID, userID, ntype, title, body)
	return err
}

func inboxWhere(filter ListFilter) string {
	where := "tenant_id = $1 AND user_id = $2"
	if filter.UnreadOnly {
		where += " AND read_at IS NULL"
	}
	return where
}

func (s *Store) ListNotifications(ctx context.Context, tenantID, userID string, filter ListFilter, limit, offset int) ([]Notification, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, type, title, body, read_at, created_at
    FROM notifications
    WHERE `+inboxWhere(filter)+`
    ORDER BY created_at DESC
    LIMIT $3 OFFSET $4
  `, tenantID, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Notification])
}

func (s *Store) CountNotifications(ctx context.Context, tenantID, userID string, filter ListFilter) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM notifications WHERE "+inboxWhere(filter), tenantID, userID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// MarkAllRead stamps every unread notification of the user and returns how
// many changed.
func (s *Store) MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = now()
    WHERE tenant_id = $1 AND user_id = $2 AND read_at IS NULL
  `, tenantID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) MarkRead(ctx context.Context, tenantID, userID, notificationID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = COALESCE(read_at, now())
    WHERE tenant_id = $1 AND user_id = $2 AND id = $3
  `, tenantID, userID, notificationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const settingsColumns = "email_notifications_enabled, COALESCE(email_from, '') AS email_from, updated_at"

func collectSettings(rows pgx.Rows) (Settings, error) {
	settings, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Settings])
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, nil
	}
	return settings, err
}

func (s *Store) EmailSettings(ctx context.Context, tenantID string) (Settings, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+settingsColumns+" FROM tenant_settings WHERE tenant_id = $1", tenantID)
	if err != nil {
		return Settings{}, err
	}
	return collectSettings(rows)
}

// UpdateSettings upserts the tenant row and returns it as stored.
func (s *Store) UpdateSettings(ctx context.Context, tenantID string, settings Settings) (Settings, error) {
	rows, err := s.DB.Query(ctx, `
    INSERT INTO tenant_settings (tenant_id, email_notifications_enabled, email_from)
    VALUES ($1, $2, NULLIF($3, ''))
    ON CONFLICT (tenant_id) DO UPDATE SET
      email_notifications_enabled = EXCLUDED.email_notifications_enabled,
      email_from = EXCLUDED.email_from,
      updated_at = now()
    RETURNING `+settingsColumns, tenantID, settings.EmailEnabled, settings.EmailFrom)
	if err != nil {
		return Settings{}, err
	}
	return collectSettings(rows)
}
