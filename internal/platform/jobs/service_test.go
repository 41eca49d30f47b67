package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	id  string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.id
	return nil
}

type fakeDB struct {
	insertErr error
	updates   []string
	details   []string
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.updates = append(f.updates, args[0].(string))
	f.details = append(f.details, string(args[1].([]byte)))
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{id: "run-1", err: f.insertErr}
}

func TestRunNowRecordsCompletion(t *testing.T) {
	db := &fakeDB{}
	svc := New(db)

	out, err := svc.RunNow(context.Background(), "monthly_compute", "t1", func(ctx context.Context) (any, error) {
		return map[string]int{"computed": 3}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.(map[string]int)["computed"] != 3 {
		t.Fatalf("unexpected details %v", out)
	}
	if len(db.updates) != 1 || db.updates[0] != StatusCompleted {
		t.Fatalf("expected one completed update, got %v", db.updates)
	}
	if !strings.Contains(db.details[0], `"computed":3`) {
		t.Fatalf("unexpected stored details %s", db.details[0])
	}
}

func TestRunNowRecordsFailure(t *testing.T) {
	db := &fakeDB{}
	svc := New(db)
	boom := errors.New("boom")

	_, err := svc.RunNow(context.Background(), "monthly_compute", "t1", func(ctx context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected run error, got %v", err)
	}
	if db.updates[0] != StatusFailed || !strings.Contains(db.details[0], "boom") {
		t.Fatalf("expected failed update with error detail, got %v %v", db.updates, db.details)
	}
}

func TestRunNowSurvivesBookkeepingFailure(t *testing.T) {
	db := &fakeDB{insertErr: errors.New("insert failed")}
	svc := New(db)

	ran := false
	if _, err := svc.RunNow(context.Background(), "monthly_compute", "t1", func(ctx context.Context) (any, error) {
		ran = true
		return nil, nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("expected job to run without a job_runs row")
	}
	if len(db.updates) != 0 {
		t.Fatal("expected no update without a run id")
	}
}
