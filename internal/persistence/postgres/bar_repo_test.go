package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/marketpipe/ingestor/internal/model"
)

func newMockBarRepo(t *testing.T) (*BarRepo, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewBarRepo(sqlx.NewDb(mockDB, "postgres")), mock
}

func sampleBar() model.Bar {
	return model.Bar{
		Symbol: "AAPL", Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Open: 100, High: 105, Low: 99, Close: 104, Volume: 1000,
		Source: "fake", IngestedAt: time.Now(),
	}
}

func TestBarRepo_Save_InsertsNewRow(t *testing.T) {
	repo, mock := newMockBarRepo(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO bars")
	mock.ExpectQuery("INSERT INTO bars").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectCommit()

	result, err := repo.Save(context.Background(), "AAPL", []model.Bar{sampleBar()}, model.FreqDaily, "fake", false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Inserted)
	require.Equal(t, 0, result.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBarRepo_Save_UpdatesWhenIncomingNewer(t *testing.T) {
	repo, mock := newMockBarRepo(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO bars")
	mock.ExpectQuery("INSERT INTO bars").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))
	mock.ExpectCommit()

	result, err := repo.Save(context.Background(), "AAPL", []model.Bar{sampleBar()}, model.FreqDaily, "fake", false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBarRepo_Save_SkipsWhenStoredRowNewerAndNotForced(t *testing.T) {
	repo, mock := newMockBarRepo(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO bars")
	mock.ExpectQuery("INSERT INTO bars").WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	result, err := repo.Save(context.Background(), "AAPL", []model.Bar{sampleBar()}, model.FreqDaily, "fake", false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, 1, result.DuplicatesPrevented)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBarRepo_Exists(t *testing.T) {
	repo, mock := newMockBarRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("AAPL", sqlmock.AnyArg(), "daily").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "AAPL", time.Now(), model.FreqDaily)
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
