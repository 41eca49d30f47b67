package authhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bizops/internal/domain/auth"
	"bizops/internal/transport/http/middleware"
)

type fakeStore struct {
	email string
	user  auth.Account
}

func (f *fakeStore) FindActiveUserByEmail(ctx context.Context, email string) (auth.Account, error) {
	if email != f.email {
		return auth.Account{}, auth.ErrInvalidCredentials
	}
	return f.user, nil
}

func (f *fakeStore) Profile(ctx context.Context, tenantID, userID string) (auth.Profile, error) {
	if userID != f.user.ID {
		return auth.Profile{}, auth.ErrUserNotFound
	}
	return auth.Profile{UserID: f.user.ID, TenantID: f.user.TenantID, Email: f.email, Role: f.user.RoleName}, nil
}

func (f *fakeStore) UpdateLastLogin(ctx context.Context, userID string) error {
	return nil
}

func (f *fakeStore) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	return true, nil
}

func newHandler(t *testing.T) *Handler {
	t.Helper()
	hash, err := auth.HashPassword("Secret123!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := &fakeStore{
		email: "admin@test.local",
		user:  auth.Account{ID: "u1", TenantID: "t1", RoleID: "r1", RoleName: auth.RoleHRAdmin, PasswordHash: hash},
	}
	return NewHandler(auth.NewService(store, "secret", time.Hour))
}

func TestHandleLogin(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "valid credentials", body: `{"email":"admin@test.local","password":"Secret123!"}`, wantCode: http.StatusOK},
		{name: "wrong password", body: `{"email":"admin@test.local","password":"nope"}`, wantCode: http.StatusUnauthorized},
		{name: "unknown user", body: `{"email":"ghost@test.local","password":"Secret123!"}`, wantCode: http.StatusUnauthorized},
		{name: "invalid email", body: `{"email":"not-an-email","password":"x"}`, wantCode: http.StatusBadRequest},
		{name: "malformed body", body: `{`, wantCode: http.StatusBadRequest},
	}

	h := newHandler(t)
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			h.HandleLogin(rec, req)
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLoginTokenAuthenticatesMe(t *testing.T) {
	h := newHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{"email":"admin@test.local","password":"Secret123!"}`))
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, req)

	var env struct {
		Data auth.Session `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Token == "" {
		t.Fatal("expected token")
	}

	me := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	me.Header.Set("Authorization", "Bearer "+env.Data.Token)
	meRec := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(h.HandleMe)).ServeHTTP(meRec, me)
	if meRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", meRec.Code)
	}
	var profile struct {
		Data auth.Profile `json:"data"`
	}
	if err := json.Unmarshal(meRec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if profile.Data.Email != "admin@test.local" || profile.Data.Role != auth.RoleHRAdmin {
		t.Fatalf("unexpected profile: %+v", profile.Data)
	}
}
