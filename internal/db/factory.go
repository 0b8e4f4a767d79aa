// Package db opens the optional generation history database.
package db

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// backend describes how a configured driver name maps onto a database/sql driver.
type backend struct {
	sqlDriver string
	dsn       func(string) string
	init      []string
}

var backends = map[string]backend{
	// modernc/sqlite registers itself as "sqlite" (CGO-free).
	"sqlite3": {sqlDriver: "sqlite", init: []string{"PRAGMA journal_mode=WAL"}},
	// parseTime makes DATETIME/TIMESTAMP columns scan into time.Time.
	"mysql":    {sqlDriver: "mysql", dsn: withParseTime},
	"postgres": {sqlDriver: "postgres"},
}

// New opens a database connection for the given driver and DSN.
// Supported drivers: sqlite3, mysql, postgres.
func New(driver, dsn string) (*sqlx.DB, error) {
	b, ok := backends[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported DB driver %q: must be sqlite3, mysql, or postgres", driver)
	}
	if b.dsn != nil {
		dsn = b.dsn(dsn)
	}

	db, err := sqlx.Open(b.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	for _, stmt := range b.init {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %q: %w", driver, stmt, err)
		}
	}
	return db, nil
}

func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}
