package migrate

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/deicod/pizzeria/errors"
)

func sqlFile(body string) *fstest.MapFile {
	return &fstest.MapFile{Mode: 0o644, Data: []byte(body)}
}

func newMock(t *testing.T) pgxmock.PgxConnIface {
	t.Helper()
	mock, err := pgxmock.NewConn(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("pgxmock.NewConn: %v", err)
	}
	t.Cleanup(func() { _ = mock.Close(context.Background()) })
	return mock
}

func expectLocked(mock pgxmock.PgxConnIface, ensure bool) {
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(advisoryLockSQL).WithArgs(defaultAdvisoryLock).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	if ensure {
		mock.ExpectExec(createTrackingSQL).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
}

func TestParseVersion(t *testing.T) {
	cases := map[string]string{
		"001_init.sql":         "001",
		"20240101__create.sql": "20240101",
		"002-links.sql":        "002",
		"plain.sql":            "plain",
		"001_init.down.sql":    "001",
	}
	for name, want := range cases {
		got, err := ParseVersion(name)
		if err != nil {
			t.Fatalf("ParseVersion(%q) unexpected error: %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseVersion(%q) = %q, want %q", name, got, want)
		}
	}
	if _, err := ParseVersion(".sql"); err == nil {
		t.Fatal("expected error for empty stem")
	}
}

func TestDiscoverSortsAndClassifies(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_links.sql":     sqlFile("-- noop"),
		"migrations/001_init.sql":      sqlFile("-- noop"),
		"migrations/001_init.down.sql": sqlFile("-- noop"),
		"migrations/README.md":         sqlFile("ignore"),
	}
	migs, err := Discover(context.Background(), fsys, "migrations")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(migs) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migs))
	}
	if migs[0].Name != "001_init.down.sql" || migs[0].Direction != Down {
		t.Fatalf("expected down script first within version, got %+v", migs[0])
	}
	if migs[1].Name != "001_init.sql" || migs[1].Direction != Up {
		t.Fatalf("unexpected second migration %+v", migs[1])
	}
	if migs[2].Path != "migrations/002_links.sql" {
		t.Fatalf("unexpected path %q", migs[2].Path)
	}

	fsys["migrations/002_again.sql"] = sqlFile("-- noop")
	if _, err := Discover(context.Background(), fsys, "migrations"); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestDiscoverMissingDirectory(t *testing.T) {
	migs, err := Discover(context.Background(), fstest.MapFS{}, "migrations")
	if err != nil || migs != nil {
		t.Fatalf("expected empty result, got %v, %v", migs, err)
	}
}

func TestApplyRunsPendingMigrations(t *testing.T) {
	mock := newMock(t)
	fsys := fstest.MapFS{
		"migrations/001_init.sql":  sqlFile("create table restaurants ();"),
		"migrations/002_links.sql": sqlFile("create table restaurant_pizzas ();"),
	}

	expectLocked(mock, true)
	mock.ExpectQuery(listAppliedSQL).WillReturnRows(mock.NewRows([]string{"version"}))
	mock.ExpectExec("create table restaurants ();").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(recordSQL).WithArgs("001", "001_init.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("create table restaurant_pizzas ();").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(recordSQL).WithArgs("002", "002_links.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ran, err := Apply(context.Background(), mock, fsys)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(ran) != 2 || ran[1].Version != "002" {
		t.Fatalf("unexpected applied set %+v", ran)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplySkipsRecordedVersions(t *testing.T) {
	mock := newMock(t)
	fsys := fstest.MapFS{"migrations/001_init.sql": sqlFile("create table restaurants ();")}

	expectLocked(mock, true)
	mock.ExpectQuery(listAppliedSQL).WillReturnRows(mock.NewRows([]string{"version"}).AddRow("001"))
	mock.ExpectCommit()

	ran, err := Apply(context.Background(), mock, fsys)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(ran) != 0 {
		t.Fatalf("expected nothing to run, got %+v", ran)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyHonorsBatchSize(t *testing.T) {
	mock := newMock(t)
	fsys := fstest.MapFS{
		"migrations/001_init.sql":  sqlFile("create table restaurants ();"),
		"migrations/002_links.sql": sqlFile("create table restaurant_pizzas ();"),
	}

	expectLocked(mock, true)
	mock.ExpectQuery(listAppliedSQL).WillReturnRows(mock.NewRows([]string{"version"}))
	mock.ExpectExec("create table restaurants ();").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(recordSQL).WithArgs("001", "001_init.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if _, err := Apply(context.Background(), mock, fsys, WithBatchSize(1)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	mock := newMock(t)
	fsys := fstest.MapFS{"migrations/001_init.sql": sqlFile("create table broken (")}

	expectLocked(mock, true)
	mock.ExpectQuery(listAppliedSQL).WillReturnRows(mock.NewRows([]string{"version"}))
	mock.ExpectExec("create table broken (").WillReturnError(&pgconn.PgError{Code: "42601", Message: "syntax error", Position: 20})
	mock.ExpectRollback()

	_, err := Apply(context.Background(), mock, fsys)
	if err == nil || !strings.Contains(err.Error(), "migrations/001_init.sql:1:20") {
		t.Fatalf("expected located syntax error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInspectWithoutTrackingTable(t *testing.T) {
	mock := newMock(t)
	fsys := fstest.MapFS{"migrations/001_init.sql": sqlFile("-- noop")}

	expectLocked(mock, false)
	mock.ExpectQuery(listAppliedSQL).WillReturnError(&pgconn.PgError{Code: "42P01"})
	mock.ExpectRollback()

	plan, err := Inspect(context.Background(), mock, fsys)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(plan.Pending) != 1 || plan.Pending[0].Version != "001" {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInspectDetectsDrift(t *testing.T) {
	mock := newMock(t)
	fsys := fstest.MapFS{"migrations/001_init.sql": sqlFile("-- noop")}

	expectLocked(mock, false)
	mock.ExpectQuery(listAppliedSQL).WillReturnRows(mock.NewRows([]string{"version"}).AddRow("001").AddRow("009"))
	mock.ExpectRollback()

	_, err := Inspect(context.Background(), mock, fsys)
	var drift DriftError
	if !errors.As(err, &drift) || len(drift.Missing) != 1 || drift.Missing[0] != "009" {
		t.Fatalf("expected drift on 009, got %v", err)
	}
}

func TestRollbackRevertsLatest(t *testing.T) {
	mock := newMock(t)
	fsys := fstest.MapFS{
		"migrations/001_init.sql":      sqlFile("create table restaurants ();"),
		"migrations/001_init.down.sql": sqlFile("drop table restaurants;"),
	}

	expectLocked(mock, true)
	mock.ExpectQuery(latestSQL).WillReturnRows(mock.NewRows([]string{"version"}).AddRow("001"))
	mock.ExpectExec("drop table restaurants;").WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(forgetSQL).WithArgs("001").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	down, err := Rollback(context.Background(), mock, fsys)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if down.Name != "001_init.down.sql" {
		t.Fatalf("unexpected rollback script %+v", down)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRollbackWithNothingApplied(t *testing.T) {
	mock := newMock(t)
	expectLocked(mock, true)
	mock.ExpectQuery(latestSQL).WillReturnRows(mock.NewRows([]string{"version"}))
	mock.ExpectRollback()

	_, err := Rollback(context.Background(), mock, fstest.MapFS{})
	if !errors.Is(err, ErrNoAppliedMigrations) {
		t.Fatalf("expected ErrNoAppliedMigrations, got %v", err)
	}
}

func TestWrapExecErrorUsesLine(t *testing.T) {
	pgErr := &pgconn.PgError{Line: 3}
	err := wrapExecError("migrations/001_init.sql", "", pgErr)
	if !errors.Is(err, pgErr) {
		t.Fatal("wrapExecError should retain underlying error")
	}
	if !strings.HasPrefix(err.Error(), "migrations/001_init.sql:3: ") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
