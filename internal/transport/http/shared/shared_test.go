package shared

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

type adjustmentPayload struct {
	SubjectID string  `json:"subjectId" validate:"required,uuid"`
	Amount    float64 `json:"amount" validate:"required"`
	Note      string  `json:"note" validate:"required,max=500"`
}

func TestDecodeReportsJSONFieldNames(t *testing.T) {
	body := bytes.NewBufferString(`{"subjectId":"nope","amount":10}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/funds/adjustments", body)
	rec := httptest.NewRecorder()

	var payload adjustmentPayload
	if Decode(rec, req, &payload) {
		t.Fatal("expected decode to fail validation")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var env struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Fields []ValidationIssue `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.Error.Code != "validation_error" {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}
	if len(env.Error.Details.Fields) != 2 {
		t.Fatalf("expected 2 issues, got %+v", env.Error.Details.Fields)
	}
	if env.Error.Details.Fields[0].Field != "note" || env.Error.Details.Fields[1].Field != "subjectId" {
		t.Fatalf("unexpected issue order: %+v", env.Error.Details.Fields)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{`))
	rec := httptest.NewRecorder()
	var payload adjustmentPayload
	if Decode(rec, req, &payload) {
		t.Fatal("expected malformed body to fail")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPageOfClamps(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=9000&offset=-3", nil)
	page := PageOf(req, 100, 500)
	if page.Limit != 500 || page.Offset != 0 {
		t.Fatalf("unexpected page %+v", page)
	}

	req = httptest.NewRequest(http.MethodGet, "/?limit=abc&offset=20", nil)
	page = PageOf(req, 100, 500)
	if page.Limit != 100 || page.Offset != 20 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestPageWriteTotal(t *testing.T) {
	rec := httptest.NewRecorder()
	Page{Limit: 10, Offset: 10}.WriteTotal(rec, 25)
	if rec.Header().Get("X-Total-Count") != "25" || rec.Header().Get("X-Has-More") != "true" {
		t.Fatalf("unexpected headers %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	Page{Limit: 10, Offset: 20}.WriteTotal(rec, 25)
	if rec.Header().Get("X-Has-More") != "false" {
		t.Fatalf("expected last page, got %v", rec.Header())
	}
}

func TestDateRange(t *testing.T) {
	query := url.Values{"from": {"2024-03-01"}, "to": {"2024-03-31"}}
	from, to, issues := DateRange(query, "from", "to")
	if len(issues) != 0 {
		t.Fatalf("unexpected issues %v", issues)
	}
	if from.Format(time.RFC3339) != "2024-03-01T00:00:00Z" {
		t.Fatalf("unexpected from %v", from)
	}
	if to.Day() != 31 || to.Hour() != 23 {
		t.Fatalf("expected inclusive end of day, got %v", to)
	}

	_, _, issues = DateRange(url.Values{"from": {"2024-03-10"}, "to": {"2024-03-01T00:00:00Z"}}, "from", "to")
	if len(issues) != 1 || issues[0].Field != "to" {
		t.Fatalf("expected reversed range issue, got %v", issues)
	}

	_, _, issues = DateRange(url.Values{"from": {"march"}}, "from", "to")
	if len(issues) != 1 || issues[0].Field != "from" {
		t.Fatalf("expected invalid date issue, got %v", issues)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if ClientIP(req) != "10.0.0.1" {
		t.Fatalf("unexpected ip %q", ClientIP(req))
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ClientIP(req) != "203.0.113.9" {
		t.Fatalf("unexpected forwarded ip %q", ClientIP(req))
	}
}
