package rowstore

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS capability_rows").WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewPostgresStore(context.Background(), db)
	require.NoError(t, err)
	return store, mock
}

func TestPostgresStoreInsertExecutesParameterizedInsert(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO capability_rows`).
		WithArgs("tenant-a", "files", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Insert(context.Background(), "tenant-a", "files", Row{"name": "a.txt"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreQueryDecodesJSONBRows(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"name":"a.txt"}`)).
		AddRow([]byte(`{"name":"b.txt"}`))
	mock.ExpectQuery(`SELECT data FROM capability_rows`).
		WithArgs("tenant-a", "files").
		WillReturnRows(rows)

	got, err := store.Query(context.Background(), "tenant-a", "files", Filter{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.txt", got[0]["name"])
	assert.Equal(t, "b.txt", got[1]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCloseClosesUnderlyingConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS capability_rows").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	store, err := NewPostgresStore(context.Background(), db)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
