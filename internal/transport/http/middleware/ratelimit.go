package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"bizops/internal/transport/http/api"
	"bizops/internal/transport/http/shared"
)

// Limiter scopes, also used as the metrics label.
const (
	ScopeGlobal   = "global"
	ScopeLogin    = "login"
	ScopeMonthOps = "month_ops"
)

// sweepAfter is the bucket count above which expired windows are dropped.
const sweepAfter = 4096

// RateLimitObserver is told about every rejected request.
type RateLimitObserver interface {
	ObserveRateLimited(scope string)
}

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*windowLimiter)

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(l *windowLimiter) {
		if fn != nil {
			l.key = fn
		}
	}
}

func WithObserver(observer RateLimitObserver) RateLimitOption {
	return func(l *windowLimiter) {
		l.observer = observer
	}
}

// windowLimiter counts requests per key in fixed windows.
type windowLimiter struct {
	scope    string
	limit    int
	window   time.Duration
	key      RateLimitKeyFunc
	observer RateLimitObserver

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	hits  int
	reset time.Time
}

type verdict struct {
	allowed   bool
	remaining int
	resetIn   time.Duration
}

func newWindowLimiter(scope string, limit int, period time.Duration, key RateLimitKeyFunc, opts ...RateLimitOption) *windowLimiter {
	l := &windowLimiter{
		scope:   scope,
		limit:   limit,
		window:  period,
		key:     key,
		windows: map[string]*window{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.key == nil {
		l.key = actorKey
	}
	return l
}

func (l *windowLimiter) hit(key string, now time.Time) verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.windows) > sweepAfter && now.Sub(l.lastSweep) > l.window {
		for k, w := range l.windows {
			if now.After(w.reset) {
				delete(l.windows, k)
			}
		}
		l.lastSweep = now
	}

	w, ok := l.windows[key]
	if !ok || now.After(w.reset) {
		w = &window{reset: now.Add(l.window)}
		l.windows[key] = w
	}
	w.hits++
	return verdict{
		allowed:   w.hits <= l.limit,
		remaining: max(l.limit-w.hits, 0),
		resetIn:   w.reset.Sub(now),
	}
}

// admit writes the rate headers and, when the key is over its limit, a 429.
func (l *windowLimiter) admit(w http.ResponseWriter, r *http.Request) bool {
	if l.limit <= 0 {
		return true
	}
	key := l.key(r)
	if key == "" {
		key = "ip:" + shared.ClientIP(r)
	}
	v := l.hit(key, time.Now())

	resetSec := ceilSeconds(v.resetIn)
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
	headers.Set("X-RateLimit-Reset", strconv.Itoa(resetSec))
	if v.allowed {
		return true
	}

	headers.Set("Retry-After", strconv.Itoa(max(resetSec, 1)))
	slog.Warn("rate limit exceeded",
		"scope", l.scope,
		"key", key,
		"method", r.Method,
		"path", r.URL.Path,
		"limit", l.limit,
	)
	if l.observer != nil {
		l.observer.ObserveRateLimited(l.scope)
	}
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

// RateLimit caps every request at limit per window, keyed by the signed-in
// user or the client address.
func RateLimit(limit int, period time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	l := newWindowLimiter(ScopeGlobal, limit, period, actorKey, opts...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.admit(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SensitiveMutationRateLimit applies tighter budgets to login attempts and to
// the month operations that move money or send mail.
func SensitiveMutationRateLimit(baseLimit int, period time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	loginLimit := max(baseLimit/4, 1)
	loginByIP := newWindowLimiter(ScopeLogin, loginLimit, period, ipKey, opts...)
	loginByEmail := newWindowLimiter(ScopeLogin, loginLimit, period, loginEmailKey, opts...)
	monthOps := newWindowLimiter(ScopeMonthOps, max(baseLimit/2, 1), period, actorKey, opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch sensitiveScopeOf(r) {
			case ScopeLogin:
				if !loginByIP.admit(w, r) || !loginByEmail.admit(w, r) {
					return
				}
			case ScopeMonthOps:
				if !monthOps.admit(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sensitiveRoutes maps mutation patterns under /api/v1 to their scope.
// Each * matches exactly one path segment.
var sensitiveRoutes = []struct {
	method  string
	pattern string
	scope   string
}{
	{http.MethodPost, "/auth/login", ScopeLogin},
	{http.MethodPost, "/months/*/compute", ScopeMonthOps},
	{http.MethodPost, "/months/*/subjects/*/compute", ScopeMonthOps},
	{http.MethodPost, "/months/*/lock", ScopeMonthOps},
	{http.MethodPost, "/months/*/unlock", ScopeMonthOps},
	{http.MethodPost, "/months/*/results/*/notify", ScopeMonthOps},
	{http.MethodPost, "/kpi/marks", ScopeMonthOps},
	{http.MethodDelete, "/kpi/marks/*", ScopeMonthOps},
	{http.MethodPost, "/funds/adjustments", ScopeMonthOps},
}

func sensitiveScopeOf(r *http.Request) string {
	if r == nil {
		return ""
	}
	route := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1"), "/")
	for _, candidate := range sensitiveRoutes {
		if candidate.method != r.Method {
			continue
		}
		if ok, _ := path.Match(candidate.pattern, route); ok {
			return candidate.scope
		}
	}
	return ""
}

func actorKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.TenantID + ":" + user.UserID
	}
	return ipKey(r)
}

func ipKey(r *http.Request) string {
	return "ip:" + shared.ClientIP(r)
}

// loginEmailKey keys login attempts by the submitted email, restoring the
// body for the handler. Unreadable bodies fall back to the client address.
func loginEmailKey(r *http.Request) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ipKey(r)
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return ipKey(r)
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var login struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &login); err != nil || strings.TrimSpace(login.Email) == "" {
		return ipKey(r)
	}
	return "email:" + strings.ToLower(strings.TrimSpace(login.Email))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
