package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bizops/internal/domain/auth"
)

type observedLimits map[string]int

func (o observedLimits) ObserveRateLimited(scope string) {
	o[scope]++
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func loginRequest(email, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{"email":"`+email+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	return req
}

func TestRateLimitKeysSignedInUserAcrossAddresses(t *testing.T) {
	limited := RateLimit(1, time.Minute)(http.HandlerFunc(noContent))
	userCtx := context.WithValue(context.Background(), ctxKeyUser, auth.UserContext{TenantID: "tenant-1", UserID: "user-1"})

	first := httptest.NewRequest(http.MethodPost, "/api/v1/months/2024-03/lock", nil).WithContext(userCtx)
	first.RemoteAddr = "198.51.100.11:2222"
	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, first)
	if firstRec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/months/2024-03/lock", nil).WithContext(userCtx)
	second.RemoteAddr = "198.51.100.12:3333"
	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, second)
	if secondRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled by user key, got %d", secondRec.Code)
	}
}

func TestRateLimitFallsBackToClientAddress(t *testing.T) {
	limited := RateLimit(1, time.Minute)(http.HandlerFunc(noContent))

	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, loginRequest("a@example.com", "203.0.113.10:4444"))
	if firstRec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", firstRec.Code)
	}

	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, loginRequest("b@example.com", "203.0.113.10:5555"))
	if secondRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled by address, got %d", secondRec.Code)
	}
}

func TestRateLimitWindowReset(t *testing.T) {
	limited := RateLimit(1, 40*time.Millisecond)(http.HandlerFunc(noContent))

	rec1 := httptest.NewRecorder()
	limited.ServeHTTP(rec1, loginRequest("a@example.com", "192.0.2.20:1111"))
	rec2 := httptest.NewRecorder()
	limited.ServeHTTP(rec2, loginRequest("a@example.com", "192.0.2.20:1111"))
	if rec1.Code != http.StatusNoContent || rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected pass then throttle, got %d and %d", rec1.Code, rec2.Code)
	}

	time.Sleep(50 * time.Millisecond)

	rec3 := httptest.NewRecorder()
	limited.ServeHTTP(rec3, loginRequest("a@example.com", "192.0.2.20:1111"))
	if rec3.Code != http.StatusNoContent {
		t.Fatalf("expected request after window reset to pass, got %d", rec3.Code)
	}
}

func TestRateLimitReturnsRetryMetadataAndNotifiesObserver(t *testing.T) {
	observed := observedLimits{}
	limited := RateLimit(1, time.Minute, WithObserver(observed))(http.HandlerFunc(noContent))

	limited.ServeHTTP(httptest.NewRecorder(), loginRequest("a@example.com", "192.0.2.30:1234"))
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, loginRequest("a@example.com", "192.0.2.30:1234"))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected throttled response, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatal("expected Retry-After and X-RateLimit-Reset headers")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected no remaining budget, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if observed[ScopeGlobal] != 1 {
		t.Fatalf("expected one global rejection, got %v", observed)
	}
}

func TestRateLimitCustomKey(t *testing.T) {
	limited := RateLimit(1, time.Minute, WithKeyFunc(func(*http.Request) string { return "shared" }))(http.HandlerFunc(noContent))

	limited.ServeHTTP(httptest.NewRecorder(), loginRequest("a@example.com", "192.0.2.1:1"))
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, loginRequest("b@example.com", "192.0.2.2:2"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected custom key to group requests, got %d", rec.Code)
	}
}

func TestSensitiveMutationRateLimitScope(t *testing.T) {
	observed := observedLimits{}
	limited := SensitiveMutationRateLimit(4, time.Minute, WithObserver(observed))(http.HandlerFunc(noContent))

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/months/2024-03/results", nil)
		req.RemoteAddr = "198.51.100.40:8888"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected read request %d to bypass sensitive limits, got %d", i+1, rec.Code)
		}
	}

	userCtx := context.WithValue(context.Background(), ctxKeyUser, auth.UserContext{TenantID: "tenant-1", UserID: "hr-1"})
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/months/2024-03/lock", nil).WithContext(userCtx)
		req.RemoteAddr = "198.51.100.41:9999"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if i < 2 && rec.Code != http.StatusNoContent {
			t.Fatalf("expected month operation %d to pass, got %d", i+1, rec.Code)
		}
		if i == 2 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected third month operation to be throttled, got %d", rec.Code)
		}
	}
	if observed[ScopeMonthOps] != 1 {
		t.Fatalf("expected one month_ops rejection, got %v", observed)
	}
}

func TestSensitiveLoginLimitKeepsBodyReadable(t *testing.T) {
	var seen string
	limited := SensitiveMutationRateLimit(4, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		seen = buf.String()
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, loginRequest("admin@example.com", "192.0.2.50:1"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected login to pass, got %d", rec.Code)
	}
	if seen != `{"email":"admin@example.com"}` {
		t.Fatalf("expected body to reach the handler, got %q", seen)
	}

	// A second attempt for the same email from another address trips the email limiter.
	rec = httptest.NewRecorder()
	limited.ServeHTTP(rec, loginRequest("Admin@Example.com", "192.0.2.51:1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected email limiter to throttle, got %d", rec.Code)
	}
}

func TestSensitiveScopeOf(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodPost, "/api/v1/auth/login", ScopeLogin},
		{http.MethodPost, "/api/v1/months/2024-03/compute", ScopeMonthOps},
		{http.MethodPost, "/api/v1/months/2024-03/subjects/s1/compute", ScopeMonthOps},
		{http.MethodPost, "/api/v1/months/2024-03/unlock/", ScopeMonthOps},
		{http.MethodPost, "/api/v1/months/2024-03/results/s1/notify", ScopeMonthOps},
		{http.MethodDelete, "/api/v1/kpi/marks/m1", ScopeMonthOps},
		{http.MethodPost, "/api/v1/funds/adjustments", ScopeMonthOps},
		{http.MethodGet, "/api/v1/months/2024-03/status", ""},
		{http.MethodGet, "/api/v1/auth/login", ""},
		{http.MethodPost, "/api/v1/subjects", ""},
		{http.MethodPost, "/api/v1/months/2024-03/extra/compute", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if got := sensitiveScopeOf(req); got != tc.want {
			t.Fatalf("%s %s: expected scope %q, got %q", tc.method, tc.path, tc.want, got)
		}
	}
}

func TestWindowLimiterSweepsExpiredWindows(t *testing.T) {
	l := newWindowLimiter(ScopeGlobal, 1, time.Millisecond, nil)
	start := time.Now()
	for i := 0; i <= sweepAfter; i++ {
		l.hit("k"+time.Duration(i).String(), start)
	}
	l.hit("fresh", start.Add(time.Second))
	if len(l.windows) != 1 {
		t.Fatalf("expected expired windows to be swept, got %d", len(l.windows))
	}
}
