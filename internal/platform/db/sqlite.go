package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver, registers "sqlite"
)

// sqlitePragmas are applied to every connection through the DSN.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

// SQLiteDSN appends the connection pragmas to a file path.
func SQLiteDSN(path string) string {
	params := url.Values{}
	for _, p := range sqlitePragmas {
		params.Add("_pragma", p)
	}
	if strings.Contains(path, "?") {
		return path + "&" + params.Encode()
	}
	return "file:" + path + "?" + params.Encode()
}

// OpenSQLite opens the embedded database at path. Writes are funneled through
// a single connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := SQLiteDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}
