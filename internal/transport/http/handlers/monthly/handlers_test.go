package monthlyhandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"bizops/internal/domain/monthly"
	"bizops/internal/domain/subjects"
)

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "bad month", err: fmt.Errorf("%w: %q", monthly.ErrInvalidMonthKey, "2024-13"), wantCode: http.StatusBadRequest, wantErr: "invalid_month_key"},
		{name: "unknown subject", err: monthly.ErrSubjectNotFound, wantCode: http.StatusNotFound, wantErr: "not_found"},
		{name: "subject lookup", err: subjects.ErrNotFound, wantCode: http.StatusNotFound, wantErr: "not_found"},
		{name: "missing result", err: monthly.ErrResultNotFound, wantCode: http.StatusNotFound, wantErr: "not_found"},
		{name: "missing reason", err: monthly.ErrUnlockReasonRequired, wantCode: http.StatusBadRequest, wantErr: "validation_error"},
		{name: "locked month", err: monthly.ErrMonthLocked, wantCode: http.StatusConflict, wantErr: "month_locked"},
		{name: "double lock", err: monthly.ErrInvalidTransition, wantCode: http.StatusConflict, wantErr: "invalid_state"},
		{name: "storage failure", err: errors.New("connection reset"), wantCode: http.StatusInternalServerError, wantErr: "lock_failed"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/months/2024-03/lock", nil)
			writeError(rec, req, tc.err, "lock_failed", "failed to lock month")

			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			var env struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Error.Code != tc.wantErr {
				t.Fatalf("expected code %q, got %q", tc.wantErr, env.Error.Code)
			}
		})
	}
}

func TestHandlersRequireUser(t *testing.T) {
	h := &Handler{}
	for name, fn := range map[string]http.HandlerFunc{
		"lock":    h.handleLock,
		"unlock":  h.handleUnlock,
		"compute": h.handleComputeMonth,
		"results": h.handleListResults,
	} {
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}
