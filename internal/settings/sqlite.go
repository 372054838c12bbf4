package settings

import (
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/spf13/cast"
	_ "modernc.org/sqlite" // sqlite driver
)

const (
	createTableQuery = `CREATE TABLE IF NOT EXISTS settings (key TEXT PRIMARY KEY, value TEXT NOT NULL);`
	selectAllQuery   = `SELECT key, value FROM settings;`
	upsertQuery      = `INSERT INTO settings(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value;`
)

// sqliteBackend keeps settings as rows of a key/value table.
type sqliteBackend struct {
	db         *sql.DB
	path       string
	upsertStmt *sql.Stmt
}

// OpenSQLite opens a SQLite-backed store at path, creating the database and
// table if they do not exist.
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite", buildSQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create settings table: %w", err)
	}

	upsertStmt, err := db.Prepare(upsertQuery)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare settings upsert: %w", err)
	}

	return newStore(&sqliteBackend{db: db, path: path, upsertStmt: upsertStmt})
}

// buildSQLiteDSN creates a WAL DSN with a busy timeout for the given path.
func buildSQLiteDSN(path string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(3000)")
	q.Add("_pragma", "journal_mode(WAL)")
	u.RawQuery = q.Encode()
	return u.String()
}

func (b *sqliteBackend) load() (map[string]any, error) {
	rows, err := b.db.Query(selectAllQuery)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	values := make(map[string]any)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return values, nil
}

func (b *sqliteBackend) save(key string, value any) error {
	text, err := cast.ToStringE(value)
	if err != nil {
		return err
	}
	if _, err := b.upsertStmt.Exec(key, text); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

func (b *sqliteBackend) close() error {
	_ = b.upsertStmt.Close()
	return b.db.Close()
}

func (b *sqliteBackend) location() string { return b.path }
