package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private database that lives as long as the DB.
const MemoryPath = ":memory:"

//go:embed schema.sql
var schema string

// pragmas run on every open. The busy timeout lets a second agentcli
// process record while another one holds the write lock.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// DB is the transcript history database.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens the history database at path, creating it and its directory on
// first use.
func Open(path string) (*DB, error) {
	if path != MemoryPath {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		path = expanded
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Runs are recorded by a single goroutine; one connection also keeps a
	// :memory: database from splitting into several.
	conn.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &DB{conn: conn, path: path}, nil
}

// ExpandPath replaces a leading ~/ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}

// Migrate creates any missing tables. It is safe to call on every open.
func (d *DB) Migrate() error {
	_, err := d.conn.Exec(schema)
	return err
}

// Path is the file backing d after ~ expansion.
func (d *DB) Path() string {
	return d.path
}

func (d *DB) Conn() *sql.DB {
	return d.conn
}

func (d *DB) Close() error {
	return d.conn.Close()
}
