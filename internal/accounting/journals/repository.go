package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// sourceNamespace scopes deterministic source link ids.
var sourceNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("odyssey-ledger.source-links"))

// Repository is the append-only ledger store. It operates on the reader or
// writer of the caller's transaction.
type Repository interface {
	// Append stores entry as-is, assigning its id and sequential number. It
	// does not re-check the balance; callers build entries through Factory.
	Append(ctx context.Context, w store.Writer, entry JournalEntry) (JournalEntry, error)
	List(ctx context.Context, r store.Reader) ([]JournalEntry, error)
	Get(ctx context.Context, r store.Reader, id string) (JournalEntry, error)
	LinkSource(ctx context.Context, w store.Writer, kind, sourceID, entryID string) error
	FindSourceLink(ctx context.Context, r store.Reader, kind, sourceID string) (SourceLink, error)
}

type repository struct {
	now func() time.Time
}

// NewRepository constructs the store backed ledger repository.
func NewRepository() Repository {
	return &repository{now: time.Now}
}

// entrySequence is the counter document numbering journal entries. Every
// append rewrites it, so two transactions numbering concurrently collide on
// it and one of them fails with store.ErrConflict.
type entrySequence struct {
	Last int64 `json:"last"`
}

const entrySequenceID = "journal_entries"

func (r *repository) nextNumber(ctx context.Context, w store.Writer) (int64, error) {
	seq, _, err := store.GetAs[entrySequence](ctx, w, store.CollectionSequences, entrySequenceID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Ledgers written before the counter existed continue after their
		// last entry.
		docs, err := w.List(ctx, store.CollectionJournalEntries)
		if err != nil {
			return 0, err
		}
		next := int64(len(docs)) + 1
		return next, store.PutJSON(ctx, w, store.CollectionSequences, entrySequenceID, entrySequence{Last: next})
	case err != nil:
		return 0, err
	}
	next := seq.Last + 1
	return next, store.UpdateJSON(ctx, w, store.CollectionSequences, entrySequenceID, entrySequence{Last: next})
}

func (r *repository) Append(ctx context.Context, w store.Writer, entry JournalEntry) (JournalEntry, error) {
	number, err := r.nextNumber(ctx, w)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("accounting: number entry: %w", err)
	}
	entry.ID = uuid.NewString()
	entry.Number = number
	if entry.PostedAt.IsZero() {
		entry.PostedAt = r.now().UTC()
	}
	if err := store.PutJSON(ctx, w, store.CollectionJournalEntries, entry.ID, entry); err != nil {
		return JournalEntry{}, fmt.Errorf("accounting: append entry: %w", err)
	}
	doc, err := w.Get(ctx, store.CollectionJournalEntries, entry.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Seq = doc.Seq
	return entry, nil
}

func (r *repository) List(ctx context.Context, rd store.Reader) ([]JournalEntry, error) {
	entries, docs, err := store.ListAs[JournalEntry](ctx, rd, store.CollectionJournalEntries)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Seq = docs[i].Seq
	}
	return entries, nil
}

func (r *repository) Get(ctx context.Context, rd store.Reader, id string) (JournalEntry, error) {
	entry, doc, err := store.GetAs[JournalEntry](ctx, rd, store.CollectionJournalEntries, id)
	if errors.Is(err, store.ErrNotFound) {
		return JournalEntry{}, fmt.Errorf("%w: %s", ErrJournalNotFound, id)
	}
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Seq = doc.Seq
	return entry, nil
}

// SourceLinkID derives the link id for a document and kind.
func SourceLinkID(kind, sourceID string) string {
	return uuid.NewSHA1(sourceNamespace, []byte(kind+":"+sourceID)).String()
}

func (r *repository) LinkSource(ctx context.Context, w store.Writer, kind, sourceID, entryID string) error {
	link := SourceLink{
		ID:       SourceLinkID(kind, sourceID),
		Kind:     kind,
		SourceID: sourceID,
		EntryID:  entryID,
		LinkedAt: r.now().UTC(),
	}
	err := store.PutJSON(ctx, w, store.CollectionSourceLinks, link.ID, link)
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%w: %s %s", ErrSourceAlreadyLinked, kind, sourceID)
	}
	return err
}

func (r *repository) FindSourceLink(ctx context.Context, rd store.Reader, kind, sourceID string) (SourceLink, error) {
	link, _, err := store.GetAs[SourceLink](ctx, rd, store.CollectionSourceLinks, SourceLinkID(kind, sourceID))
	return link, err
}
