// Package sqlite implements the store port on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// Store keeps a single-connection writer and a pooled reader, both in WAL mode.
type Store struct {
	writer *sql.DB
	reader *sql.DB
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(runtime.NumCPU())

	s := &Store{writer: writer, reader: reader}
	if err := s.migrate(context.Background()); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases both connection pools.
func (s *Store) Close() error {
	err1 := s.writer.Close()
	err2 := s.reader.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.writer.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			UNIQUE (collection, id)
		)`)
	return err
}

// WithTx runs fn on the writer connection and commits on success.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, store.Writer) error) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Snapshot runs fn inside a read-only transaction on the reader pool.
func (s *Store) Snapshot(ctx context.Context, fn func(context.Context, store.Reader) error) error {
	tx, err := s.reader.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()
	return fn(ctx, &txStore{tx: tx})
}

type txStore struct {
	tx *sql.Tx
}

func (r *txStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var doc store.Document
	var data string
	err := r.tx.QueryRowContext(ctx, `SELECT id, seq, data FROM documents WHERE collection = ? AND id = ?`, collection, id).
		Scan(&doc.ID, &doc.Seq, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
		}
		return store.Document{}, err
	}
	doc.Data = []byte(data)
	return doc, nil
}

func (r *txStore) List(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT id, seq, data FROM documents WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()
	var docs []store.Document
	for rows.Next() {
		var doc store.Document
		var data string
		if err := rows.Scan(&doc.ID, &doc.Seq, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc.Data = []byte(data)
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
	_, err := r.tx.ExecContext(ctx, `INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`, collection, id, string(data))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s/%s exists", store.ErrConflict, collection, id)
		}
		return fmt.Errorf("insert %s: %w", collection, err)
	}
	return nil
}

func (r *txStore) Update(ctx context.Context, collection, id string, patch []byte) error {
	doc, err := r.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	merged, err := store.MergePatch(doc.Data, patch)
	if err != nil {
		return err
	}
	if _, err := r.tx.ExecContext(ctx, `UPDATE documents SET data = ? WHERE collection = ? AND id = ?`, string(merged), collection, id); err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
