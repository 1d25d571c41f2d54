package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func TestWithTransactionCommits(t *testing.T) {
	mock, pool := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM love_tree_items").WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM love_trees").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := pool.WithTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.Exec(ctx, "DELETE FROM love_tree_items WHERE tree_id = $1", "t1"); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "DELETE FROM love_trees WHERE id = $1", "t1")
		return err
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %s", err)
	}
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	mock, pool := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := pool.WithTransaction(context.Background(), func(Transaction) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("WithTransaction() error = %v, want the callback error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %s", err)
	}
}

func TestWithTransactionRollbackFailure(t *testing.T) {
	mock, pool := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("conn closed"))

	err := pool.WithTransaction(context.Background(), func(Transaction) error { return errors.New("boom") })
	if err == nil || !strings.Contains(err.Error(), "failed to rollback") {
		t.Errorf("WithTransaction() error = %v, want rollback failure", err)
	}
}

func TestWithTransactionRollsBackOnPanic(t *testing.T) {
	mock, pool := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		if recover() == nil {
			t.Error("panic was swallowed")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unfulfilled expectations: %s", err)
		}
	}()
	_ = pool.WithTransaction(context.Background(), func(Transaction) error { panic("kaboom") })
}

func TestBeginFailure(t *testing.T) {
	mock, pool := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := pool.WithTransaction(context.Background(), func(Transaction) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Errorf("WithTransaction() error = %v, called = %v; want error without running fn", err, called)
	}
}
