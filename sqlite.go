package tally

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

const sessionsSchema = `CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expiry REAL NOT NULL
)`

const sessionsExpiryIndex = `CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry)`

// NewSQLiteSessionManager creates the sessions table in db if needed and
// returns a session manager storing its data there. Expired sessions are
// purged every cleanup interval; zero disables the background cleanup.
//
// db must be opened with the "sqlite3" driver (github.com/mattn/go-sqlite3).
func NewSQLiteSessionManager(db *sql.DB, cleanup time.Duration) (*scs.SessionManager, error) {
	if _, err := db.Exec(sessionsSchema); err != nil {
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	if _, err := db.Exec(sessionsExpiryIndex); err != nil {
		return nil, fmt.Errorf("create sessions index: %w", err)
	}
	sm := scs.New()
	sm.Store = sqlite3store.NewWithCleanupInterval(db, cleanup)
	return sm, nil
}
