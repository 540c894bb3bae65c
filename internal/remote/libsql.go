package remote

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// LibSQLConfig configures the libSQL (Turso) backend.
type LibSQLConfig struct {
	URL       string
	AuthToken string
}

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	owner_id TEXT NOT NULL,
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (owner_id, collection, id)
)`

// LibSQL stores documents in a single table of a remote libSQL database.
type LibSQL struct {
	conn *sql.DB
}

// NewLibSQL connects to the database at cfg.URL (libsql://... or
// https://...) and creates the documents table if needed.
func NewLibSQL(ctx context.Context, cfg LibSQLConfig) (*LibSQL, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("libsql url is required")
	}

	dsn, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse libsql URL: %w", err)
	}
	if cfg.AuthToken != "" {
		q := dsn.Query()
		q.Set("authToken", cfg.AuthToken)
		dsn.RawQuery = q.Encode()
	}

	conn, err := sql.Open("libsql", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql database: %w", err)
	}
	l, err := NewLibSQLFromDB(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return l, nil
}

// NewLibSQLFromDB uses an open SQLite-compatible connection and creates the
// documents table if needed.
func NewLibSQLFromDB(ctx context.Context, conn *sql.DB) (*LibSQL, error) {
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping libsql database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, documentsSchema); err != nil {
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	return &LibSQL{conn: conn}, nil
}

// Put implements Backend.
func (l *LibSQL) Put(ctx context.Context, owner, collection, id string, data []byte) error {
	query := `
	INSERT INTO documents (owner_id, collection, id, data, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(owner_id, collection, id) DO UPDATE SET
		data = excluded.data,
		updated_at = excluded.updated_at
	`
	_, err := l.conn.ExecContext(ctx, query, owner, collection, id, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

// Delete implements Backend.
func (l *LibSQL) Delete(ctx context.Context, owner, collection, id string) error {
	query := `DELETE FROM documents WHERE owner_id = ? AND collection = ? AND id = ?`
	if _, err := l.conn.ExecContext(ctx, query, owner, collection, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// List implements Backend. Documents are returned in id order.
func (l *LibSQL) List(ctx context.Context, owner, collection string) ([]Document, error) {
	query := `SELECT id, data FROM documents WHERE owner_id = ? AND collection = ? ORDER BY id`
	rows, err := l.conn.QueryContext(ctx, query, owner, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			id   string
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, Document{ID: id, Data: []byte(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}

// Close implements Backend.
func (l *LibSQL) Close() error {
	return l.conn.Close()
}
