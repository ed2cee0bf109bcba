// Package store provides the SQLite persistence layer and the filesystem
// blob store. One connection, WAL mode; all stores share the same *DB.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the shared SQLite handle. It implements model.Transactor; the
// per-entity stores hang off it.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids table-lock errors under concurrent writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &DB{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database handle.
func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS departments (
		id         TEXT PRIMARY KEY,
		code       TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		file_path     TEXT NOT NULL,
		num_pages     INTEGER,
		department_id TEXT NOT NULL REFERENCES departments(id),
		uploaded_by   TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_department ON documents(department_id);

	CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_index INTEGER NOT NULL,
		page        INTEGER,
		content     TEXT NOT NULL,
		embedding   BLOB NOT NULL,
		created_at  TIMESTAMP NOT NULL,
		UNIQUE(document_id, chunk_index)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id            TEXT PRIMARY KEY,
		action        TEXT NOT NULL,
		status        TEXT NOT NULL,
		actor_id      TEXT NOT NULL DEFAULT '',
		document_id   TEXT NOT NULL DEFAULT '',
		department_id TEXT NOT NULL DEFAULT '',
		message       TEXT NOT NULL DEFAULT '',
		meta          TEXT NOT NULL DEFAULT '{}',
		created_at    TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_logs(created_at);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		id                   TEXT PRIMARY KEY,
		user_id              TEXT NOT NULL DEFAULT '',
		answer_department_id TEXT NOT NULL DEFAULT '',
		title                TEXT NOT NULL DEFAULT '',
		created_at           TIMESTAMP NOT NULL,
		updated_at           TIMESTAMP NOT NULL,
		ended_at             TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_open ON chat_sessions(user_id, ended_at);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id             TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		role           TEXT NOT NULL,
		content        TEXT NOT NULL,
		routing_meta   TEXT,
		retrieval_meta TEXT,
		citations      TEXT,
		created_at     TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// txKey carries an open transaction through context so nested store calls
// join it.
type txKey struct{}

// WithTx runs fn inside one transaction. Store calls made with the context
// fn receives are executed on that transaction; any error rolls back.
func (s *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		// Already inside a transaction; join it.
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction from ctx when present, the raw handle
// otherwise.
func (s *DB) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// encodeEmbedding packs a vector as little-endian float32 bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks little-endian float32 bytes.
func decodeEmbedding(data []byte) []float32 {
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
