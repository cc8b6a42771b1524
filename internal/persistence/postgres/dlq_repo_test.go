package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/marketpipe/ingestor/internal/persistence"
)

func newMockDLQRepo(t *testing.T) (*DLQRepo, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewDLQRepo(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestDLQRepo_AddFailedItem(t *testing.T) {
	repo, mock := newMockDLQRepo(t)

	mock.ExpectQuery("INSERT INTO dlq_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.AddFailedItem(context.Background(), persistence.DLQItem{
		Symbol: "AAPL", Stage: "ingestion", ErrorMessage: "timeout",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDLQRepo_GetUnresolved(t *testing.T) {
	repo, mock := newMockDLQRepo(t)

	rows := sqlmock.NewRows([]string{"id", "symbol", "stage", "error_message", "context", "created_at", "resolved"}).
		AddRow(int64(1), "AAPL", "ingestion", "timeout", nil, time.Now(), false)
	mock.ExpectQuery("SELECT id, symbol, stage, error_message, context, created_at, resolved FROM dlq_items").
		WillReturnRows(rows)

	items, err := repo.GetUnresolved(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "AAPL", items[0].Symbol)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDLQRepo_MarkResolved(t *testing.T) {
	repo, mock := newMockDLQRepo(t)

	mock.ExpectExec("UPDATE dlq_items SET resolved").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkResolved(context.Background(), 7)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
