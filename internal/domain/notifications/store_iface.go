package notifications

import "context"

type StoreAPI interface {
	CreateNotification(ctx context.Context, tenantID, userID, ntype, title, body string) error
	ListNotifications(ctx context.Context, tenantID, userID string, filter ListFilter, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, tenantID, userID string, filter ListFilter) (int, error)
	MarkRead(ctx context.Context, tenantID, userID, notificationID string) error
	MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error)
	EmailSettings(ctx context.Context, tenantID string) (Settings, error)
	UpdateSettings(ctx context.Context, tenantID string, settings Settings) (Settings, error)
}
