package state

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger, _ := zap.NewDevelopment()
	return &PostgresStore{db: db, logger: logger}, mock
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT value::text FROM ledger_entries WHERE key").
		WithArgs("filled/abc").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("123456789012345678901234567890"))

	v, err := store.Get(ctx, "filled/abc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if v.String() != "123456789012345678901234567890" {
		t.Errorf("expected large value, got %s", v)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT value::text FROM ledger_entries WHERE key").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	v, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if v.Sign() != 0 {
		t.Errorf("expected zero, got %s", v)
	}
}

func TestPostgresStore_Commit(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries \\(key, value\\) SELECT unnest").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT key, value::text FROM ledger_entries").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("a", "5").
			AddRow("b", "0"))
	mock.ExpectExec("ON CONFLICT \\(key\\) DO UPDATE").
		WithArgs("a", "7").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Commit(context.Background(), []Write{
		{Key: "a", Prev: big.NewInt(5), Next: big.NewInt(7)},
		{Key: "b", Prev: big.NewInt(0), Next: big.NewInt(0)},
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_CommitConflict(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries \\(key, value\\) SELECT unnest").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT key, value::text FROM ledger_entries").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).AddRow("a", "6"))
	mock.ExpectRollback()

	err := store.Commit(context.Background(), []Write{
		{Key: "a", Prev: big.NewInt(5), Next: big.NewInt(7)},
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_CommitEmpty(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	if err := store.Commit(context.Background(), nil); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_Close(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectClose()

	if err := store.Close(); err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
