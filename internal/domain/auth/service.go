package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (Account, error)
	Profile(ctx context.Context, tenantID, userID string) (Profile, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
}

// decoyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt round.
var decoyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("decoy-password")
	if err != nil {
		return ""
	}
	return hash
})

type Service struct {
	store  StoreAPI
	secret string
	ttl    time.Duration
}

func NewService(store StoreAPI, secret string, ttl time.Duration) *Service {
	return &Service{store: store, secret: secret, ttl: ttl}
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
}

// Login verifies credentials and issues a signed bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.store.FindActiveUserByEmail(ctx, email)
	if errors.Is(err, ErrInvalidCredentials) {
		_ = CheckPassword(decoyHash(), password)
		return Session{}, err
	}
	if err != nil {
		return Session{}, err
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, expires, err := GenerateToken(s.secret, Claims{UserID: user.ID, TenantID: user.TenantID, RoleID: user.RoleID, RoleName: user.RoleName}, s.ttl)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("last login update failed", "userId", user.ID, "err", err)
	}
	return Session{Token: token, ExpiresAt: expires, UserID: user.ID, Role: user.RoleName}, nil
}

func (s *Service) Profile(ctx context.Context, tenantID, userID string) (Profile, error) {
	return s.store.Profile(ctx, tenantID, userID)
}

func (s *Service) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	return s.store.HasPermission(ctx, roleID, permission)
}
