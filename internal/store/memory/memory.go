// Package memory provides an in-process implementation of the store port.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

type collection struct {
	docs  []store.Document
	index map[string]int
}

func (c *collection) clone() *collection {
	out := &collection{
		docs:  make([]store.Document, len(c.docs)),
		index: make(map[string]int, len(c.index)),
	}
	copy(out.docs, c.docs)
	for k, v := range c.index {
		out.index[k] = v
	}
	return out
}

// Store keeps committed collections in memory. Committed collections are never
// mutated in place; a transaction clones what it touches and swaps the clones in
// on commit, so snapshots stay consistent without holding the lock.
type Store struct {
	mu          sync.RWMutex
	writeMu     sync.Mutex
	seq         int64
	collections map[string]*collection
	closed      bool
}

// New constructs an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Close marks the store unusable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) view() (map[string]*collection, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, 0, store.ErrClosed
	}
	cols := make(map[string]*collection, len(s.collections))
	for k, v := range s.collections {
		cols[k] = v
	}
	return cols, s.seq, nil
}

// Snapshot runs fn against the state committed at call time.
func (s *Store) Snapshot(ctx context.Context, fn func(context.Context, store.Reader) error) error {
	cols, _, err := s.view()
	if err != nil {
		return err
	}
	return fn(ctx, &reader{cols: cols})
}

// WithTx runs fn in a serialised transaction and commits only when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, store.Writer) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cols, seq, err := s.view()
	if err != nil {
		return err
	}
	tx := &txWriter{reader: reader{cols: cols}, staged: make(map[string]*collection), seq: seq}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	for name, col := range tx.staged {
		s.collections[name] = col
	}
	s.seq = tx.seq
	return nil
}

type reader struct {
	cols map[string]*collection
}

func (r *reader) Get(ctx context.Context, name, id string) (store.Document, error) {
	col, ok := r.cols[name]
	if !ok {
		return store.Document{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, name, id)
	}
	idx, ok := col.index[id]
	if !ok {
		return store.Document{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, name, id)
	}
	return col.docs[idx], nil
}

func (r *reader) List(ctx context.Context, name string) ([]store.Document, error) {
	col, ok := r.cols[name]
	if !ok {
		return nil, nil
	}
	out := make([]store.Document, len(col.docs))
	copy(out, col.docs)
	return out, nil
}

type txWriter struct {
	reader
	staged map[string]*collection
	seq    int64
}

func (tx *txWriter) writable(name string) *collection {
	if col, ok := tx.staged[name]; ok {
		return col
	}
	var col *collection
	if base, ok := tx.cols[name]; ok {
		col = base.clone()
	} else {
		col = &collection{index: make(map[string]int)}
	}
	tx.staged[name] = col
	tx.cols[name] = col
	return col
}

func (tx *txWriter) Append(ctx context.Context, name string, data []byte) (string, error) {
	id := uuid.NewString()
	if err := tx.Put(ctx, name, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (tx *txWriter) Put(ctx context.Context, name, id string, data []byte) error {
	if id == "" {
		return fmt.Errorf("memory: id required for %s", name)
	}
	col := tx.writable(name)
	if _, exists := col.index[id]; exists {
		return fmt.Errorf("%w: %s/%s exists", store.ErrConflict, name, id)
	}
	tx.seq++
	payload := make([]byte, len(data))
	copy(payload, data)
	col.index[id] = len(col.docs)
	col.docs = append(col.docs, store.Document{ID: id, Seq: tx.seq, Data: payload})
	return nil
}

func (tx *txWriter) Update(ctx context.Context, name, id string, patch []byte) error {
	if _, err := tx.Get(ctx, name, id); err != nil {
		return err
	}
	col := tx.writable(name)
	idx := col.index[id]
	merged, err := store.MergePatch(col.docs[idx].Data, patch)
	if err != nil {
		return err
	}
	col.docs[idx] = store.Document{ID: id, Seq: col.docs[idx].Seq, Data: merged}
	return nil
}

var _ store.Store = (*Store)(nil)
