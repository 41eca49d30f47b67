package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bizops/internal/domain/auth"
	"bizops/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
}

// StaticPermissions answers from the built-in role table keyed by role name.
// It backs handler tests and deployments without seeded role_permissions.
type StaticPermissions map[string]string

func (s StaticPermissions) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	return auth.RoleAllows(s[roleID], permission), nil
}

// CachedPermissions memoizes answers from an underlying store for ttl.
// Errors are never cached.
type CachedPermissions struct {
	store PermissionStore
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedGrant
}

type cachedGrant struct {
	allowed bool
	expires time.Time
}

func NewCachedPermissions(store PermissionStore, ttl time.Duration) *CachedPermissions {
	return &CachedPermissions{store: store, ttl: ttl, now: time.Now, entries: map[string]cachedGrant{}}
}

func (c *CachedPermissions) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	key := roleID + "\x00" + permission
	now := c.now()

	c.mu.RLock()
	grant, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Before(grant.expires) {
		return grant.allowed, nil
	}

	allowed, err := c.store.HasPermission(ctx, roleID, permission)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	c.entries[key] = cachedGrant{allowed: allowed, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return allowed, nil
}

func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}

			allowed, err := store.HasPermission(r.Context(), user.RoleID, permission)
			if err != nil {
				slog.Error("permission check failed", "roleId", user.RoleID, "permission", permission, "err", err)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", GetRequestID(r.Context()))
				return
			}
			if !allowed {
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects anonymous callers on routes without a permission gate.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
