package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"bizops/internal/domain/auth"
	"bizops/internal/platform/querier"
)

// DefaultIdempotencyTTL is how long a stored response can be replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// IdempotencyScope identifies one caller's use of a key on one endpoint.
type IdempotencyScope struct {
	TenantID string
	UserID   string
	Endpoint string
	Key      string
}

// ScopeFor builds the scope from the Idempotency-Key header. ok is false
// when the caller sent no key.
func ScopeFor(r *http.Request, user auth.UserContext, endpoint string) (IdempotencyScope, bool) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	return IdempotencyScope{TenantID: user.TenantID, UserID: user.UserID, Endpoint: endpoint, Key: key}, key != ""
}

// IdempotencyStore replays the stored response of a mutation retried with the
// same Idempotency-Key and rejects reuse of a key for a different request.
type IdempotencyStore struct {
	db  querier.Querier
	ttl time.Duration
}

func NewIdempotencyStore(db querier.Querier, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{db: db, ttl: ttl}
}

// RequestHash fingerprints the parts that make two requests the same.
func RequestHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Check returns the stored response for scope, if any. Entries older than
// the TTL are treated as absent.
func (s *IdempotencyStore) Check(ctx context.Context, scope IdempotencyScope, requestHash string) (json.RawMessage, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, nil
	}
	var storedHash string
	var stored json.RawMessage
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_json
    FROM idempotency_keys
    WHERE tenant_id = $1 AND user_id = $2 AND key = $3 AND endpoint = $4
      AND created_at > now() - make_interval(secs => $5)
  `, scope.TenantID, scope.UserID, scope.Key, scope.Endpoint, s.ttl.Seconds()).Scan(&storedHash, &stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if storedHash != requestHash {
		return nil, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

// Save stores response for scope. An expired entry under the same key is
// replaced; a live one with a different hash is a conflict.
func (s *IdempotencyStore) Save(ctx context.Context, scope IdempotencyScope, requestHash string, response any) error {
	if s == nil || s.db == nil {
		return nil
	}
	encoded, err := json.Marshal(response)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (tenant_id, user_id, key, endpoint, request_hash, response_json)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (tenant_id, user_id, key, endpoint)
    DO UPDATE SET request_hash = EXCLUDED.request_hash, response_json = EXCLUDED.response_json, created_at = now()
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
       OR idempotency_keys.created_at <= now() - make_interval(secs => $7)
  `, scope.TenantID, scope.UserID, scope.Key, scope.Endpoint, requestHash, encoded, s.ttl.Seconds())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at <= now() - make_interval(secs => $1)`, s.ttl.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
