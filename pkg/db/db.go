// Package db persists the converter's auxiliary state in sqlite: cached
// character readings, manual headword/reading overrides and the log of pages
// that produced no entries.
package db

import (
	"database/sql"
	_ "embed"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var migrationsSQL string

// builder renders sqlite-style "?" placeholders.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Open opens (creating if needed) the sqlite database at path and applies the
// schema. ":memory:" databases are pinned to one connection so every caller
// sees the same schema.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}
	if err := InitDB(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// InitDB runs migrations on the given DB connection using the embedded SQL.
func InitDB(db *sql.DB) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
