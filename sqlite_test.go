package tally

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteSessionManager(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS sessions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS sessions_expiry_idx")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	sm, err := NewSQLiteSessionManager(db, 0)
	require.NoError(t, err)
	require.NotNil(t, sm)
	assert.IsType(t, &sqlite3store.SQLite3Store{}, sm.Store)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLiteSessionManager_SchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("disk full"))

	sm, err := NewSQLiteSessionManager(db, 0)
	assert.Nil(t, sm)
	assert.ErrorContains(t, err, "create sessions table")
	assert.NoError(t, mock.ExpectationsWereMet())
}
