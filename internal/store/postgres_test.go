package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stayguard/stayguard/internal/models"
)

type mockDB struct {
	ExecFn         func(ctx context.Context, sql string, args ...any) error
	QueryFn        func(ctx context.Context, sql string, args ...any) (interface{}, error)
	QueryRowFn     func(ctx context.Context, sql string, args ...any) interface{}
	HealthFn       func(ctx context.Context) error
	IsConfiguredFn func() bool
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) error {
	if m.ExecFn != nil {
		return m.ExecFn(ctx, sql, args...)
	}
	return nil
}
func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (interface{}, error) {
	if m.QueryFn != nil {
		return m.QueryFn(ctx, sql, args...)
	}
	return nil, nil
}
func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) interface{} {
	if m.QueryRowFn != nil {
		return m.QueryRowFn(ctx, sql, args...)
	}
	return nil
}
func (m *mockDB) Health(ctx context.Context) error {
	if m.HealthFn != nil {
		return m.HealthFn(ctx)
	}
	return nil
}
func (m *mockDB) IsConfigured() bool {
	if m.IsConfiguredFn != nil {
		return m.IsConfiguredFn()
	}
	return true
}

func TestPostgresRepository_Save_BuildsInsertAndPropagatesError(t *testing.T) {
	var gotSQL string
	db := &mockDB{ExecFn: func(ctx context.Context, sql string, args ...any) error {
		gotSQL = sql
		return errors.New("exec failure")
	}}
	r := NewPostgresRepository(db)
	alert := models.Alert{ID: "id1", City: "Edinburgh", MainType: models.MainTypeStrike, Title: "t"}
	err := r.Save(context.Background(), alert)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(gotSQL, "INSERT INTO alerts") {
		t.Errorf("unexpected SQL: %s", gotSQL)
	}
}

func TestPostgresRepository_Update_BuildsUpdate(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	db := &mockDB{ExecFn: func(ctx context.Context, sql string, args ...any) error {
		gotSQL = sql
		gotArgs = args
		return nil
	}}
	r := NewPostgresRepository(db)
	alert := models.Alert{ID: "id1", City: "Edinburgh", MainType: models.MainTypeStrike, Title: "t"}
	if err := r.Update(context.Background(), alert); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.Contains(gotSQL, "UPDATE alerts SET") {
		t.Errorf("unexpected SQL: %s", gotSQL)
	}
	if len(gotArgs) == 0 || gotArgs[0] != "id1" {
		t.Errorf("expected id as first arg, got %v", gotArgs)
	}
}

func TestPostgresRepository_Query_ErrorFromDB(t *testing.T) {
	db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (interface{}, error) {
		return nil, errors.New("db error")
	}}
	r := NewPostgresRepository(db)
	_, err := r.Query(context.Background(), models.AlertQuery{})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "query alerts") {
		t.Errorf("wrap missing: %v", err)
	}
}

func TestPostgresRepository_Query_InvalidRowsType(t *testing.T) {
	db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (interface{}, error) {
		return 123, nil
	}}
	r := NewPostgresRepository(db)
	_, err := r.Query(context.Background(), models.AlertQuery{})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid rows type") {
		t.Errorf("got %v", err)
	}
}

func TestPostgresRepository_Query_BuildsFilters(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (interface{}, error) {
		gotSQL = sql
		gotArgs = args
		return nil, errors.New("stop here")
	}}
	r := NewPostgresRepository(db)
	q := models.AlertQuery{
		Cities:    []string{"Edinburgh"},
		MainTypes: []models.MainType{models.MainTypeStrike},
		Statuses:  []models.AlertStatus{models.StatusApproved},
		Limit:     10,
		Offset:    5,
	}
	_, _ = r.Query(context.Background(), q)

	for _, want := range []string{"city = ANY($1)", "main_type = ANY($2)", "status = ANY($3)", "LIMIT $4", "OFFSET $5"} {
		if !strings.Contains(gotSQL, want) {
			t.Errorf("SQL missing %q: %s", want, gotSQL)
		}
	}
	if len(gotArgs) != 5 {
		t.Errorf("expected 5 args, got %d: %v", len(gotArgs), gotArgs)
	}
}

func TestPostgresRepository_FindCandidates_BuildsWindow(t *testing.T) {
	var gotSQL string
	db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (interface{}, error) {
		gotSQL = sql
		return nil, errors.New("stop here")
	}}
	r := NewPostgresRepository(db)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, _ = r.FindCandidates(context.Background(), "Edinburgh", models.MainTypeStrike, start, start.AddDate(0, 0, 6))

	for _, want := range []string{"city = $1", "main_type = $2", "status != $3", "end_date IS NULL OR end_date >= $4", "start_date <= $5"} {
		if !strings.Contains(gotSQL, want) {
			t.Errorf("SQL missing %q: %s", want, gotSQL)
		}
	}
}

type fakeRow struct{ err error }

func (r fakeRow) Scan(dest ...any) error { return r.err }

func TestPostgresRepository_Get_InvalidRowType(t *testing.T) {
	db := &mockDB{QueryRowFn: func(ctx context.Context, sql string, args ...any) interface{} { return 123 }}
	r := NewPostgresRepository(db)
	_, err := r.Get(context.Background(), "x")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid row type") {
		t.Errorf("got %v", err)
	}
}

func TestPostgresRepository_Get_NoRows(t *testing.T) {
	db := &mockDB{QueryRowFn: func(ctx context.Context, sql string, args ...any) interface{} {
		return fakeRow{err: pgx.ErrNoRows}
	}}
	r := NewPostgresRepository(db)
	res, err := r.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil, got %+v", res)
	}
}

type fakeRows struct {
	pgx.Rows
	ids []string
	i   int
}

func (r *fakeRows) Next() bool { return r.i < len(r.ids) }
func (r *fakeRows) Scan(dest ...any) error {
	if p, ok := dest[0].(*string); ok {
		*p = r.ids[r.i]
	}
	r.i++
	return nil
}
func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

func TestPostgresRepository_ArchiveExpired_CountsFlippedRows(t *testing.T) {
	var gotSQL string
	db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (interface{}, error) {
		gotSQL = sql
		return &fakeRows{ids: []string{"a1", "a2", "a3"}}, nil
	}}
	r := NewPostgresRepository(db)
	n, err := r.ArchiveExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 archived alerts, got %d", n)
	}
	// A single statement returns the flipped IDs, so the count cannot
	// drift from the rows actually updated.
	for _, want := range []string{"UPDATE alerts", "RETURNING id"} {
		if !strings.Contains(gotSQL, want) {
			t.Errorf("SQL missing %q: %s", want, gotSQL)
		}
	}
}

func TestPostgresRepository_ArchiveExpired_QueryError(t *testing.T) {
	db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (interface{}, error) {
		return nil, errors.New("update failed")
	}}
	r := NewPostgresRepository(db)
	_, err := r.ArchiveExpired(context.Background(), time.Now())
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "archive expired alerts") {
		t.Errorf("got %v", err)
	}
}
