package docstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printops/order-sync-api/pkg/logger"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresStoreWithDB(sqlx.NewDb(db, "postgres"), logger.NewNop()), mock
}

func TestPostgresGet(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"doc"}).AddRow([]byte(`{"order_number":"1001","customer":"Acme"}`))
	mock.ExpectQuery(`SELECT doc FROM documents WHERE collection = \$1 AND key = \$2`).
		WithArgs(CollectionOrders, "1001").
		WillReturnRows(rows)

	doc, err := store.Get(context.Background(), CollectionOrders, "1001")
	require.NoError(t, err)
	assert.Equal(t, "Acme", doc["customer"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT doc FROM documents`).
		WithArgs(CollectionOrders, "9999").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	_, err := store.Get(context.Background(), CollectionOrders, "9999")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO documents .+ ON CONFLICT \(collection, key\) DO UPDATE SET doc = EXCLUDED.doc`).
		WithArgs(CollectionOrders, "1001", []byte(`{"customer":"Acme"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Set(context.Background(), CollectionOrders, "1001", Document{"customer": "Acme"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetMergedUsesJSONBConcat(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`ON CONFLICT \(collection, key\) DO UPDATE SET doc = documents.doc \|\| EXCLUDED.doc`).
		WithArgs(CollectionOrders, "1001", []byte(`{"status":"SHIPPED"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SetMerged(context.Background(), CollectionOrders, "1001", Document{"status": "SHIPPED"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM documents WHERE collection = \$1 AND key = \$2`).
		WithArgs(CollectionManualOrders, "Manual-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), CollectionManualOrders, "Manual-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteField(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE documents SET doc = doc - \$3 WHERE collection = \$1 AND key = \$2`).
		WithArgs(CollectionOverrides, "1001", "print_date_range").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.DeleteField(context.Background(), CollectionOverrides, "1001", "print_date_range")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryWithContainmentFilter(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"doc"}).
		AddRow([]byte(`{"order_number":"1001","needs_detail_fetch":true}`)).
		AddRow([]byte(`{"order_number":"1003","needs_detail_fetch":true}`))

	mock.ExpectQuery(`SELECT doc FROM documents WHERE collection = \$1 AND doc @> \$2 ORDER BY key LIMIT 60`).
		WithArgs(CollectionOrders, []byte(`{"needs_detail_fetch":true}`)).
		WillReturnRows(rows)

	docs, err := store.Query(context.Background(), CollectionOrders, &Filter{
		Field: "needs_detail_fetch",
		Value: true,
		Limit: 60,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1001", docs[0]["order_number"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryNoFilter(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT doc FROM documents WHERE collection = \$1 ORDER BY key`).
		WithArgs(CollectionOrders).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	docs, err := store.Query(context.Background(), CollectionOrders, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
