// Package postgres implements the store port on a PostgreSQL JSONB table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

const schema = `CREATE TABLE IF NOT EXISTS ledger_documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	seq BIGSERIAL NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_ledger_documents_seq ON ledger_documents (collection, seq);`

// Store persists documents in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the documents table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store/postgres: migrate: %w", err)
	}
	return nil
}

// WithTx executes fn within a repeatable-read transaction.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, store.Writer) error) error {
	if s == nil || s.pool == nil {
		return errors.New("store/postgres: not initialised")
	}
	return mapError(db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	}))
}

// Snapshot executes fn within a read-only repeatable-read transaction.
func (s *Store) Snapshot(ctx context.Context, fn func(context.Context, store.Reader) error) error {
	if s == nil || s.pool == nil {
		return errors.New("store/postgres: not initialised")
	}
	return db.ReadOnly(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

func (r *txStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var doc store.Document
	err := r.tx.QueryRow(ctx, `SELECT id, seq, data FROM ledger_documents WHERE collection=$1 AND id=$2`, collection, id).
		Scan(&doc.ID, &doc.Seq, &doc.Data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Document{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
		}
		return store.Document{}, mapError(err)
	}
	return doc, nil
}

func (r *txStore) List(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, seq, data FROM ledger_documents WHERE collection=$1 ORDER BY seq ASC`, collection)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var docs []store.Document
	for rows.Next() {
		var doc store.Document
		if err := rows.Scan(&doc.ID, &doc.Seq, &doc.Data); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *txStore) Append(ctx context.Context, collection string, data []byte) (string, error) {
	id := uuid.NewString()
	if err := r.Put(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (r *txStore) Put(ctx context.Context, collection, id string, data []byte) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_documents (collection, id, data) VALUES ($1,$2,$3::jsonb)`, collection, id, string(data))
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *txStore) Update(ctx context.Context, collection, id string, patch []byte) error {
	var current []byte
	err := r.tx.QueryRow(ctx, `SELECT data FROM ledger_documents WHERE collection=$1 AND id=$2 FOR UPDATE`, collection, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
		}
		return mapError(err)
	}
	merged, err := store.MergePatch(current, patch)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `UPDATE ledger_documents SET data=$3::jsonb, updated_at=NOW() WHERE collection=$1 AND id=$2`, collection, id, string(merged))
	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
		}
	}
	return err
}

var _ store.Store = (*Store)(nil)
