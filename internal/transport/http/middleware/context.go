package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"bizops/internal/requestctx"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

const maxRequestIDLen = 128

// RequestID propagates a well-formed X-Request-ID or mints a fresh one.
// Inbound ids end up in logs and audit rows, so anything outside
// [A-Za-z0-9._:-] or longer than 128 bytes is replaced.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if !validRequestID(reqID) {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(requestctx.WithRequestID(r.Context(), reqID)))
	})
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == ':':
		default:
			return false
		}
	}
	return true
}
