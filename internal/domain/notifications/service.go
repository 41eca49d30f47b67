package notifications

import (
	"context"
	"fmt"
	"strings"

	"bizops/internal/domain/monthly"
	"bizops/internal/domain/subjects"
	"bizops/internal/platform/config"
	"bizops/internal/requestctx"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	Contact     config.Contact
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer, contact config.Contact, defaultFrom string) *Service {
	return &Service{store: store, Mailer: mailer, Contact: contact, DefaultFrom: defaultFrom}
}

// Create stores an in-app notification and mirrors it by email when the
// tenant enabled email notifications.
func (s *Service) Create(ctx context.Context, tenantID, userID, email, ntype, title, body string) error {
	if err := s.store.CreateNotification(ctx, tenantID, userID, ntype, title, body); err != nil {
		return err
	}
	if s.Mailer == nil || strings.TrimSpace(email) == "" {
		return nil
	}
	settings, err := s.store.EmailSettings(ctx, tenantID)
	if err != nil {
		requestctx.Logger(ctx).Warn("notification settings lookup failed", "err", err)
		return nil
	}
	if !settings.EmailEnabled {
		return nil
	}
	if err := s.Mailer.Send(ctx, s.from(settings), email, title, body); err != nil {
		requestctx.Logger(ctx).Warn("notification email send failed", "userId", userID, "err", err)
	}
	return nil
}

// NotifyMonthlyResult emails the result and its weekly breakdown to the
// subject when the tenant has email enabled and, when the subject has a
// login, leaves an in-app copy.
func (s *Service) NotifyMonthlyResult(ctx context.Context, tenantID string, subject subjects.Subject, detail monthly.ResultDetail) (Delivery, error) {
	title, body := ComposeMonthlyResult(s.Contact, detail)
	delivery := Delivery{To: subject.Email, Subject: title}

	if s.Mailer != nil && subject.Email != "" {
		settings, err := s.store.EmailSettings(ctx, tenantID)
		if err != nil {
			return Delivery{}, err
		}
		if settings.EmailEnabled {
			if err := s.Mailer.Send(ctx, s.from(settings), subject.Email, title, body); err != nil {
				return Delivery{}, err
			}
			delivery.Emailed = true
		}
	}
	if subject.UserID != "" {
		if err := s.store.CreateNotification(ctx, tenantID, subject.UserID, TypeMonthlyResult, title, body); err != nil {
			return Delivery{}, err
		}
		delivery.InApp = true
	}
	return delivery, nil
}

// MonthTransition leaves an in-app record of a lock or unlock for the actor
// who performed it.
func (s *Service) MonthTransition(ctx context.Context, tenantID, actorID string, transition monthly.TransitionResult) error {
	period := transition.Period
	ntype := TypeMonthUnlocked
	title := "Month " + period.MonthKey + " unlocked"
	body := fmt.Sprintf("%s is open again. %d fund entries were voided.", period.MonthKey, transition.FundEntries)
	if period.UnlockReason != "" {
		body += " Reason: " + period.UnlockReason
	}
	if period.Status == monthly.StatusLocked {
		ntype = TypeMonthLocked
		title = "Month " + period.MonthKey + " locked"
		body = fmt.Sprintf("%s is locked. %d results finalized and %d fund entries posted.", period.MonthKey, transition.Results, transition.FundEntries)
	}
	return s.store.CreateNotification(ctx, tenantID, actorID, ntype, title, body)
}

func (s *Service) List(ctx context.Context, tenantID, userID string, filter ListFilter, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, tenantID, userID, filter, limit, offset)
}

func (s *Service) Count(ctx context.Context, tenantID, userID string, filter ListFilter) (int, error) {
	return s.store.CountNotifications(ctx, tenantID, userID, filter)
}

func (s *Service) MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, tenantID, userID)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, userID, notificationID string) error {
	return s.store.MarkRead(ctx, tenantID, userID, notificationID)
}

func (s *Service) GetSettings(ctx context.Context, tenantID string) (Settings, error) {
	return s.store.EmailSettings(ctx, tenantID)
}

func (s *Service) UpdateSettings(ctx context.Context, tenantID string, settings Settings) (Settings, error) {
	settings.EmailFrom = strings.TrimSpace(settings.EmailFrom)
	return s.store.UpdateSettings(ctx, tenantID, settings)
}

func (s *Service) from(settings Settings) string {
	if settings.EmailFrom != "" {
		return settings.EmailFrom
	}
	return s.DefaultFrom
}
