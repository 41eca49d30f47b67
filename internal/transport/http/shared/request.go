package shared

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"bizops/internal/requestctx"
)

func requestIDFrom(r *http.Request) string {
	return requestctx.GetRequestID(r.Context())
}

// ClientIP prefers the first X-Forwarded-For hop over RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// ValidID reports whether value is a UUID, which every entity id is.
func ValidID(value string) bool {
	_, err := uuid.Parse(strings.TrimSpace(value))
	return err == nil
}
