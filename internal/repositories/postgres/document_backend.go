// Package postgres stores the venue document as a single jsonb row.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huanth/bi-a-manager/internal/repositories/docstore"
)

const defaultDocumentName = "venue"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS venue_documents (
    name       text PRIMARY KEY,
    body       jsonb NOT NULL DEFAULT '{}'::jsonb,
    version    bigint NOT NULL DEFAULT 0,
    updated_at timestamptz NOT NULL DEFAULT now()
)`

// DocumentBackend reads and writes one named row of venue_documents.
type DocumentBackend struct {
	pool *pgxpool.Pool
	name string
}

var (
	_ docstore.Backend = (*DocumentBackend)(nil)
	_ docstore.Pinger  = (*DocumentBackend)(nil)
)

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn, name string) (*DocumentBackend, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres document backend: dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres document backend: connect: %w", err)
	}
	backend, err := NewDocumentBackend(pool, name)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := backend.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return backend, nil
}

// NewDocumentBackend wraps an existing pool.
func NewDocumentBackend(pool *pgxpool.Pool, name string) (*DocumentBackend, error) {
	if pool == nil {
		return nil, errors.New("postgres document backend: pool is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultDocumentName
	}
	return &DocumentBackend{pool: pool, name: name}, nil
}

// EnsureSchema creates the table when missing.
func (b *DocumentBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, schemaSQL); err != nil {
		return classify("postgres.schema", err)
	}
	return nil
}

// Fetch implements docstore.Backend. A missing row reads as an empty document.
func (b *DocumentBackend) Fetch(ctx context.Context) (docstore.Document, error) {
	var body []byte
	err := b.pool.QueryRow(ctx, `SELECT body FROM venue_documents WHERE name = $1`, b.name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Document{}, nil
	}
	if err != nil {
		return nil, classify("postgres.fetch", err)
	}
	doc := docstore.Document{}
	if len(body) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &docstore.Error{Op: "postgres.fetch", Err: fmt.Errorf("decode body: %w", err)}
	}
	return doc, nil
}

// Replace implements docstore.Backend. Each write bumps the row version.
func (b *DocumentBackend) Replace(ctx context.Context, doc docstore.Document) error {
	if doc == nil {
		doc = docstore.Document{}
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return &docstore.Error{Op: "postgres.replace", Err: fmt.Errorf("encode body: %w", err)}
	}

	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return classify("postgres.replace", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO venue_documents (name, body, version, updated_at)
        VALUES ($1, $2::jsonb, 1, now())
        ON CONFLICT (name) DO UPDATE
        SET body = EXCLUDED.body,
            version = venue_documents.version + 1,
            updated_at = now()
    `, b.name, string(body))
	if err != nil {
		return classify("postgres.replace", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("postgres.replace", err)
	}
	return nil
}

// Version returns the current row version, zero when the row does not exist.
func (b *DocumentBackend) Version(ctx context.Context) (int64, error) {
	var version int64
	err := b.pool.QueryRow(ctx, `SELECT version FROM venue_documents WHERE name = $1`, b.name).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify("postgres.version", err)
	}
	return version, nil
}

// Ping implements docstore.Pinger.
func (b *DocumentBackend) Ping(ctx context.Context) error {
	if err := b.pool.Ping(ctx); err != nil {
		return classify("postgres.ping", err)
	}
	return nil
}

// Close releases the pool.
func (b *DocumentBackend) Close() {
	if b != nil && b.pool != nil {
		b.pool.Close()
	}
}

// serialization_failure and deadlock_detected
var conflictCodes = map[string]struct{}{"40001": {}, "40P01": {}}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := conflictCodes[pgErr.Code]; ok {
			return &docstore.Error{Op: op, Err: err, Conflict: true}
		}
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") {
			return docstore.Unavailable(op, err)
		}
		return &docstore.Error{Op: op, Err: err}
	}
	// Anything without a server error code never reached Postgres.
	return docstore.Unavailable(op, err)
}
