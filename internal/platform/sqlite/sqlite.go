package sqlite

import (
	"database/sql"
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // Register sqlite driver
)

//go:embed migrations/001_initial.sql
var migration string

// DB is the embedded store used when no Postgres DSN is configured.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at dsn and applies the schema.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", withConnPragmas(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "open database")
	}

	// In-memory databases are per-connection; multiple connections each get a
	// separate empty database. Limit to one connection so migrations and
	// queries all see the same data.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Fetch workers write concurrently; WAL plus a busy timeout lets them
	// queue on the write lock instead of failing with SQLITE_BUSY.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "exec %s", pragma)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "migrate")
	}

	return &DB{db}, nil
}

// withConnPragmas repeats the per-connection pragmas in the DSN so every
// pooled connection gets them, not only the one the Exec loop ran on.
func withConnPragmas(dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(migration)
	return err
}
