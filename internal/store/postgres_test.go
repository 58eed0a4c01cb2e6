package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/sharehunt/shares-sniper/pkg/types"
)

func newMockPositions(t *testing.T) (*postgresPositions, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &postgresPositions{db: db}, mock
}

func newMockCandidates(t *testing.T) (*postgresCandidates, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &postgresCandidates{db: db}, mock
}

func TestPostgresGetPositionNotFound(t *testing.T) {
	positions, mock := newMockPositions(t)

	mock.ExpectQuery("SELECT total_amount FROM positions").
		WithArgs("0xaa").
		WillReturnRows(sqlmock.NewRows([]string{"total_amount"}))

	_, err := positions.Get(context.Background(), "0xAA")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresAddUpsertsAndRecordsPurchase(t *testing.T) {
	positions, mock := newMockPositions(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO positions").
		WithArgs("0xaa", uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO purchases").
		WithArgs("0xaa", uint64(3), "0xtx", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := positions.Add(context.Background(), "0xAA", 3, "0xtx")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRemoveToZeroDeletesRows(t *testing.T) {
	positions, mock := newMockPositions(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT total_amount FROM positions").
		WithArgs("0xaa").
		WillReturnRows(sqlmock.NewRows([]string{"total_amount"}).AddRow(2))
	mock.ExpectExec("DELETE FROM purchases").
		WithArgs("0xaa").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM positions").
		WithArgs("0xaa").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := positions.Remove(context.Background(), "0xaa", 2)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRemoveExceedingHeldFails(t *testing.T) {
	positions, mock := newMockPositions(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT total_amount FROM positions").
		WithArgs("0xaa").
		WillReturnRows(sqlmock.NewRows([]string{"total_amount"}).AddRow(1))
	mock.ExpectRollback()

	err := positions.Remove(context.Background(), "0xaa", 5)
	if err == nil {
		t.Fatal("removing more than held must fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresCreateCandidateDuplicate(t *testing.T) {
	candidates, mock := newMockCandidates(t)

	mock.ExpectExec("INSERT INTO candidates").
		WillReturnError(&pq.Error{Code: "23505"})

	err := candidates.Create(context.Background(), &types.Candidate{
		TokenAddress: "0xbb",
		CreatedAt:    time.Now(),
		LastChecked:  time.Now(),
		Status:       types.StatusPending,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUpdateMissingCandidate(t *testing.T) {
	candidates, mock := newMockCandidates(t)

	mock.ExpectExec("UPDATE candidates").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := candidates.Update(context.Background(), &types.Candidate{
		TokenAddress: "0xbb",
		Status:       types.StatusPending,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresCheckpointUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	checkpoint := &postgresCheckpoint{db: db}

	mock.ExpectExec("INSERT INTO checkpoint").
		WithArgs(uint64(777)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT block_number FROM checkpoint").
		WillReturnRows(sqlmock.NewRows([]string{"block_number"}).AddRow(777))

	if err := checkpoint.SaveLastBlock(context.Background(), 777); err != nil {
		t.Fatalf("save: %v", err)
	}
	block, err := checkpoint.LastBlock(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if block != 777 {
		t.Errorf("expected 777, got %d", block)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
