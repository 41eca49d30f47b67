package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bizops/internal/domain/auth"
)

func TestRequestHashDeterministic(t *testing.T) {
	hash1 := RequestHash("2024-03", "false")
	hash2 := RequestHash("2024-03", "false")
	hash3 := RequestHash("2024-03", "true")

	if hash1 != hash2 {
		t.Fatal("expected deterministic hash")
	}
	if hash1 == hash3 {
		t.Fatal("expected different hash for different request")
	}
	if RequestHash("2024-0", "3false") == hash1 {
		t.Fatal("expected part boundaries to matter")
	}
}

func TestScopeForReadsHeader(t *testing.T) {
	user := auth.UserContext{TenantID: "t1", UserID: "u1"}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/months/2024-03/lock", nil)
	if _, ok := ScopeFor(req, user, "monthly.lock"); ok {
		t.Fatal("expected no scope without a key")
	}

	req.Header.Set("Idempotency-Key", "  lock-1 ")
	scope, ok := ScopeFor(req, user, "monthly.lock")
	if !ok || scope.Key != "lock-1" || scope.TenantID != "t1" || scope.Endpoint != "monthly.lock" {
		t.Fatalf("unexpected scope %+v", scope)
	}
}

func TestIdempotencyStoreWithoutDatabaseIsInert(t *testing.T) {
	var store *IdempotencyStore
	scope := IdempotencyScope{TenantID: "t1", UserID: "u1", Endpoint: "monthly.lock", Key: "key"}

	stored, found, err := store.Check(context.Background(), scope, "hash")
	if err != nil || found || stored != nil {
		t.Fatalf("expected nil store to miss, got %v %v %v", stored, found, err)
	}
	if err := store.Save(context.Background(), scope, "hash", map[string]string{"status": "LOCKED"}); err != nil {
		t.Fatalf("expected nil store save to succeed, got %v", err)
	}
	if n, err := store.Purge(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected nil store purge to be a no-op, got %d %v", n, err)
	}
}

func TestNewIdempotencyStoreDefaultsTTL(t *testing.T) {
	if store := NewIdempotencyStore(nil, 0); store.ttl != DefaultIdempotencyTTL {
		t.Fatalf("expected default ttl, got %v", store.ttl)
	}
}
