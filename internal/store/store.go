// Package store defines the persistence port used by the ledger core.
//
// The core never talks to a database directly. It reads and writes JSON
// documents grouped in named collections through Reader and Writer, and
// relies on Store for atomic transactions and consistent read views.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names used by the ledger core.
const (
	CollectionAccounts       = "accounts"
	CollectionJournalEntries = "journal_entries"
	CollectionSourceLinks    = "source_links"
	CollectionSales          = "sales"
	CollectionPurchases      = "purchases"
	CollectionProducts       = "products"
	CollectionAuditLogs      = "audit_logs"
	CollectionSequences      = "sequences"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("store: document not found")
	// ErrConflict indicates a duplicate id or a concurrent modification.
	ErrConflict = errors.New("store: conflict")
	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store: closed")
)

// Document is a stored record. Seq is global and increases with every insert,
// so it doubles as insertion order across collections.
type Document struct {
	ID   string
	Seq  int64
	Data json.RawMessage
}

// Reader exposes read operations over a consistent view.
type Reader interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
}

// Writer exposes mutating operations inside a transaction.
type Writer interface {
	Reader
	Append(ctx context.Context, collection string, data []byte) (string, error)
	Put(ctx context.Context, collection, id string, data []byte) error
	Update(ctx context.Context, collection, id string, patch []byte) error
}

// Store is the persistence collaborator injected into every component.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Writer) error) error
	Snapshot(ctx context.Context, fn func(context.Context, Reader) error) error
}

// Decode unmarshals the document payload into a value of type T.
func Decode[T any](doc Document) (T, error) {
	var out T
	if err := json.Unmarshal(doc.Data, &out); err != nil {
		return out, fmt.Errorf("store: decode %s: %w", doc.ID, err)
	}
	return out, nil
}

// GetAs loads a single document and decodes it.
func GetAs[T any](ctx context.Context, r Reader, collection, id string) (T, Document, error) {
	var zero T
	doc, err := r.Get(ctx, collection, id)
	if err != nil {
		return zero, Document{}, err
	}
	out, err := Decode[T](doc)
	if err != nil {
		return zero, Document{}, err
	}
	return out, doc, nil
}

// ListAs loads and decodes a whole collection in insertion order.
func ListAs[T any](ctx context.Context, r Reader, collection string) ([]T, []Document, error) {
	docs, err := r.List(ctx, collection)
	if err != nil {
		return nil, nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := Decode[T](doc)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, item)
	}
	return out, docs, nil
}

// AppendJSON marshals v and appends it to the collection.
func AppendJSON(ctx context.Context, w Writer, collection string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("store: encode %s: %w", collection, err)
	}
	return w.Append(ctx, collection, data)
}

// PutJSON marshals v and stores it under a caller supplied id.
func PutJSON(ctx context.Context, w Writer, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", collection, err)
	}
	return w.Put(ctx, collection, id, data)
}

// UpdateJSON marshals patch and merges it into the stored document.
func UpdateJSON(ctx context.Context, w Writer, collection, id string, patch any) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("store: encode patch %s: %w", collection, err)
	}
	return w.Update(ctx, collection, id, data)
}

// MergePatch applies a shallow merge of the top-level keys in patch onto base.
// A null value in patch removes the key.
func MergePatch(base, patch []byte) ([]byte, error) {
	target := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &target); err != nil {
			return nil, fmt.Errorf("store: merge base: %w", err)
		}
	}
	changes := map[string]json.RawMessage{}
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, fmt.Errorf("store: merge patch: %w", err)
	}
	for key, value := range changes {
		if string(value) == "null" {
			delete(target, key)
			continue
		}
		target[key] = value
	}
	return json.Marshal(target)
}
