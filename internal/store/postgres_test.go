package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var recordColumns = []string{"kind", "id", "version", "body", "created_at", "updated_at"}

func newPostgresWidgets(t *testing.T) (*PostgresCollection[widget, *widget], sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewPostgres[widget](db, widgetKind), mock
}

func widgetRow(t *testing.T, w *widget) *sqlmock.Rows {
	t.Helper()
	body, err := json.Marshal(w)
	require.NoError(t, err)
	return sqlmock.NewRows(recordColumns).
		AddRow(widgetKind.Name, w.ID, w.Version, body, w.CreatedAt, w.UpdatedAt)
}

func TestPostgres_InsertDuplicate(t *testing.T) {
	c, mock := newPostgresWidgets(t)
	mock.ExpectExec(`INSERT INTO "registry_records"`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := c.Insert(context.Background(), &widget{Meta: Meta{ID: "WID-1"}, Name: "a"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMissing(t *testing.T) {
	c, mock := newPostgresWidgets(t)
	mock.ExpectQuery(`SELECT \* FROM "registry_records" WHERE kind = \$1 AND id = \$2`).
		WillReturnRows(sqlmock.NewRows(recordColumns))

	_, err := c.Get(context.Background(), "WID-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateConflictsAfterRetries(t *testing.T) {
	c, mock := newPostgresWidgets(t)
	now := time.Now().UTC()
	stored := &widget{Meta: Meta{ID: "WID-1", Version: 7, CreatedAt: now, UpdatedAt: now}, Name: "a"}
	for i := 0; i < maxUpdateAttempts; i++ {
		mock.ExpectQuery(`SELECT \* FROM "registry_records"`).WillReturnRows(widgetRow(t, stored))
		mock.ExpectExec(`UPDATE "registry_records" SET .* WHERE kind = \$\d+ AND id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	_, err := c.Update(context.Background(), "WID-1", func(w *widget) error {
		w.Count++
		return nil
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateApplies(t *testing.T) {
	c, mock := newPostgresWidgets(t)
	now := time.Now().UTC()
	stored := &widget{Meta: Meta{ID: "WID-1", Version: 7, CreatedAt: now, UpdatedAt: now}, Name: "a"}
	mock.ExpectQuery(`SELECT \* FROM "registry_records"`).WillReturnRows(widgetRow(t, stored))
	mock.ExpectExec(`UPDATE "registry_records"`).WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := c.Update(context.Background(), "WID-1", func(w *widget) error {
		w.Name = "b"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "b", updated.Name)
	assert.Equal(t, int64(8), updated.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteMissing(t *testing.T) {
	c, mock := newPostgresWidgets(t)
	mock.ExpectExec(`DELETE FROM "registry_records"`).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, c.Delete(context.Background(), "WID-NOPE"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
