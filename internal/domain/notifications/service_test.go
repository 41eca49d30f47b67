package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bizops/internal/domain/monthly"
	"bizops/internal/domain/subjects"
	"bizops/internal/platform/config"
)

type fakeStore struct {
	created  []Notification
	settings Settings
}

func (f *fakeStore) CreateNotification(ctx context.Context, tenantID, userID, ntype, title, body string) error {
	f.created = append(f.created, Notification{Type: ntype, Title: title, Body: body})
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, tenantID, userID string, filter ListFilter, limit, offset int) ([]Notification, error) {
	out := []Notification{}
	for _, n := range f.created {
		if filter.UnreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeStore) CountNotifications(ctx context.Context, tenantID, userID string, filter ListFilter) (int, error) {
	items, _ := f.ListNotifications(ctx, tenantID, userID, filter, 0, 0)
	return len(items), nil
}

func (f *fakeStore) MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error) {
	var changed int64
	now := time.Now()
	for i := range f.created {
		if f.created[i].ReadAt == nil {
			f.created[i].ReadAt = &now
			changed++
		}
	}
	return changed, nil
}

func (f *fakeStore) MarkRead(ctx context.Context, tenantID, userID, notificationID string) error {
	return ErrNotFound
}

func (f *fakeStore) EmailSettings(ctx context.Context, tenantID string) (Settings, error) {
	return f.settings, nil
}

func (f *fakeStore) UpdateSettings(ctx context.Context, tenantID string, settings Settings) (Settings, error) {
	now := time.Now()
	settings.UpdatedAt = &now
	f.settings = settings
	return settings, nil
}

type sentMail struct {
	from, to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{from, to, subject, body})
	return nil
}

var testContact = config.Contact{CompanyName: "Acme Training", Email: "hr@acme.test", Phone: "+1 555 0100", Currency: "USD"}

func sampleDetail() monthly.ResultDetail {
	score := 45.0
	return monthly.ResultDetail{
		Result: monthly.ResultItem{
			MonthlyResult: monthly.MonthlyResult{
				SubjectID: "s1", MonthKey: "2024-02", MonthlyScore: &score, Tier: monthly.TierFine,
				BaseFine: 1000, FinalFine: 1500, WeeksCountUsed: 1, ExpectedWeeksCount: 4,
			},
			FullName: "Ada Lovelace",
			Email:    "ada@acme.test",
		},
		Weeks: []string{"2024-02-02", "2024-02-09", "2024-02-16", "2024-02-23"},
		Weekly: []monthly.WeeklyBreakdown{
			{WeekKey: "2024-02-02", Recorded: true, AverageScore: 45},
			{WeekKey: "2024-02-09"},
			{WeekKey: "2024-02-16"},
			{WeekKey: "2024-02-23"},
		},
	}
}

func TestComposeMonthlyResult(t *testing.T) {
	subject, body := ComposeMonthlyResult(testContact, sampleDetail())
	if !strings.Contains(subject, "2024-02") || !strings.Contains(subject, "Acme Training") {
		t.Fatalf("unexpected subject: %s", subject)
	}
	for _, want := range []string{
		"Hello Ada Lovelace",
		"Monthly score: 45.00",
		"Tier: Fine",
		"Weeks scored: 1 of 4 (incomplete)",
		"Fine: 1,500.00 USD (base 1,000.00 USD",
		"Week ending 2024-02-02: 45.00",
		"Week ending 2024-02-09: not recorded",
		"hr@acme.test or +1 555 0100",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestComposeNoData(t *testing.T) {
	detail := sampleDetail()
	detail.Result.MonthlyScore = nil
	detail.Result.Tier = monthly.TierNoData
	detail.Result.BaseFine, detail.Result.FinalFine = 0, 0
	_, body := ComposeMonthlyResult(config.Contact{CompanyName: "Acme"}, detail)
	if !strings.Contains(body, "no weekly scores recorded") || strings.Contains(body, "Fine:") {
		t.Fatalf("unexpected no-data body:\n%s", body)
	}
	if strings.Contains(body, "Questions?") {
		t.Fatal("expected no contact line without contact details")
	}
}

func TestMoney(t *testing.T) {
	cases := map[float64]string{
		0:         "0.00 USD",
		999.5:     "999.50 USD",
		1000:      "1,000.00 USD",
		1234567.8: "1,234,567.80 USD",
		-1500:     "-1,500.00 USD",
		-0.004:    "0.00 USD",
		-0.005:    "-0.01 USD",
		-999.999:  "-1,000.00 USD",
	}
	for amount, want := range cases {
		if got := Money(amount, "USD"); got != want {
			t.Fatalf("Money(%v): expected %s, got %s", amount, want, got)
		}
	}
}

func TestNotifyMonthlyResult(t *testing.T) {
	store := &fakeStore{settings: Settings{EmailEnabled: true, EmailFrom: "kpi@acme.test"}}
	mailer := &fakeMailer{}
	svc := New(store, mailer, testContact, "no-reply@acme.test")

	delivery, err := svc.NotifyMonthlyResult(context.Background(), "t1", subjects.Subject{ID: "s1", Email: "ada@acme.test", UserID: "u1"}, sampleDetail())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !delivery.Emailed || !delivery.InApp {
		t.Fatalf("expected email and in-app delivery, got %+v", delivery)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].from != "kpi@acme.test" || mailer.sent[0].to != "ada@acme.test" {
		t.Fatalf("unexpected mail: %+v", mailer.sent)
	}
	if len(store.created) != 1 || store.created[0].Type != TypeMonthlyResult {
		t.Fatalf("unexpected in-app notifications: %+v", store.created)
	}
}

func TestNotifyMonthlyResultMailerFailure(t *testing.T) {
	store := &fakeStore{settings: Settings{EmailEnabled: true}}
	svc := New(store, &fakeMailer{err: errors.New("smtp down")}, testContact, "no-reply@acme.test")

	if _, err := svc.NotifyMonthlyResult(context.Background(), "t1", subjects.Subject{ID: "s1", Email: "ada@acme.test"}, sampleDetail()); err == nil {
		t.Fatal("expected mailer error")
	}
	if len(store.created) != 0 {
		t.Fatal("expected no in-app notification after a failed send")
	}
}

func TestCreateRespectsTenantEmailSetting(t *testing.T) {
	store := &fakeStore{}
	mailer := &fakeMailer{}
	svc := New(store, mailer, testContact, "no-reply@acme.test")
	ctx := context.Background()

	if err := svc.Create(ctx, "t1", "u1", "ada@acme.test", TypeMonthLocked, "Locked", "2024-02 locked"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatal("expected no email while tenant email is disabled")
	}

	store.settings = Settings{EmailEnabled: true}
	if err := svc.Create(ctx, "t1", "u1", "ada@acme.test", TypeMonthLocked, "Locked", "2024-02 locked"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].from != "no-reply@acme.test" {
		t.Fatalf("expected one email from the default sender, got %+v", mailer.sent)
	}
}

func TestNotifyMonthlyResultSkipsMailWhenTenantDisabled(t *testing.T) {
	store := &fakeStore{settings: Settings{EmailEnabled: false, EmailFrom: "kpi@acme.test"}}
	mailer := &fakeMailer{}
	svc := New(store, mailer, testContact, "no-reply@acme.test")

	delivery, err := svc.NotifyMonthlyResult(context.Background(), "t1", subjects.Subject{ID: "s1", Email: "ada@acme.test", UserID: "u1"}, sampleDetail())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no mail while tenant email is disabled, got %+v", mailer.sent)
	}
	if delivery.Emailed || !delivery.InApp {
		t.Fatalf("expected in-app delivery only, got %+v", delivery)
	}
}

func TestNotifyMonthlyResultWithoutMailer(t *testing.T) {
	store := &fakeStore{settings: Settings{EmailEnabled: true}}
	svc := New(store, nil, testContact, "no-reply@acme.test")

	delivery, err := svc.NotifyMonthlyResult(context.Background(), "t1", subjects.Subject{ID: "s1", Email: "ada@acme.test"}, sampleDetail())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivery.Emailed || delivery.InApp {
		t.Fatalf("expected no delivery without a mailer or login, got %+v", delivery)
	}
}

func TestMonthTransitionRecordsInApp(t *testing.T) {
	store := &fakeStore{}
	svc := New(store, &fakeMailer{}, testContact, "no-reply@acme.test")
	ctx := context.Background()

	locked := monthly.TransitionResult{Period: monthly.Period{MonthKey: "2024-02", Status: monthly.StatusLocked}, Results: 3, FundEntries: 2}
	if err := svc.MonthTransition(ctx, "t1", "u1", locked); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unlocked := monthly.TransitionResult{Period: monthly.Period{MonthKey: "2024-02", Status: monthly.StatusOpen, UnlockReason: "late marks"}, FundEntries: 2}
	if err := svc.MonthTransition(ctx, "t1", "u1", unlocked); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.created) != 2 {
		t.Fatalf("expected two notifications, got %+v", store.created)
	}
	if store.created[0].Type != TypeMonthLocked || !strings.Contains(store.created[0].Body, "3 results finalized") {
		t.Fatalf("unexpected lock notification %+v", store.created[0])
	}
	if store.created[1].Type != TypeMonthUnlocked || !strings.Contains(store.created[1].Body, "Reason: late marks") {
		t.Fatalf("unexpected unlock notification %+v", store.created[1])
	}
}

func TestMarkAllReadClearsUnreadFilter(t *testing.T) {
	store := &fakeStore{}
	svc := New(store, nil, testContact, "no-reply@acme.test")
	ctx := context.Background()

	for _, title := range []string{"a", "b"} {
		if err := svc.Create(ctx, "t1", "u1", "", TypeMonthLocked, title, "body"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n, _ := svc.Count(ctx, "t1", "u1", ListFilter{UnreadOnly: true}); n != 2 {
		t.Fatalf("expected two unread, got %d", n)
	}

	changed, err := svc.MarkAllRead(ctx, "t1", "u1")
	if err != nil || changed != 2 {
		t.Fatalf("expected two marked read, got %d %v", changed, err)
	}
	if n, _ := svc.Count(ctx, "t1", "u1", ListFilter{UnreadOnly: true}); n != 0 {
		t.Fatalf("expected no unread, got %d", n)
	}
	if n, _ := svc.Count(ctx, "t1", "u1", ListFilter{}); n != 2 {
		t.Fatalf("expected all notifications kept, got %d", n)
	}
}
