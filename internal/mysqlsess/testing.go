package mysqlsess

import "database/sql"

// NewSessionForTesting wraps an already-open *sql.DB (typically a
// DATA-DOG/go-sqlmock database) as a Session, bypassing Connect's dialing
// and TLS setup. Used by every package in this module that needs a mocked
// Session in its table-driven tests.
func NewSessionForTesting(db *sql.DB) *Session {
	return &Session{db: db}
}
