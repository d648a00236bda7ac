package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/domain/schema"
	"github.com/appforge/platform/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestGetAppNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .* FROM platform_apps").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetApp(context.Background(), "missing")
	if !errors.Is(err, storage.ErrAppNotFound) {
		t.Fatalf("err = %v, want ErrAppNotFound", err)
	}
}

func TestCreateColumnsFirstWriteWins(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	// No inserts expected: the table already has columns recorded.
	mock.ExpectRollback()

	err := store.CreateColumns(context.Background(), "tbl-1", []schema.Column{{Name: "id", Type: "uuid", Primary: true}})
	if err != nil {
		t.Fatalf("create columns: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateColumnsInserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO platform_app_table_columns").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO platform_app_table_columns").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cols := []schema.Column{
		{Name: "id", Type: "uuid", Primary: true},
		{Name: "title", Type: "text", Required: true},
	}
	if err := store.CreateColumns(context.Background(), "tbl-1", cols); err != nil {
		t.Fatalf("create columns: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	store, err := Open(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	created, err := store.CreateApp(ctx, app.App{Slug: "itest-app", Name: "Integration App"})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}

	tbl, err := store.UpsertTable(ctx, schema.Table{AppID: created.ID, Name: "todos", DisplayName: "Todos", Scope: schema.UserScoped})
	if err != nil {
		t.Fatalf("upsert table: %v", err)
	}

	again, err := store.UpsertTable(ctx, schema.Table{AppID: created.ID, Name: "todos", DisplayName: "Todos", Scope: schema.UserScoped})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != tbl.ID {
		t.Fatalf("upsert not idempotent: %s != %s", again.ID, tbl.ID)
	}
}
