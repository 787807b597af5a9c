package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// ErrDocumentNotFound indicates an unknown sale or purchase id.
var ErrDocumentNotFound = errors.New("documents: not found")

// Repository reads sales and purchases and applies the few patches the
// ledger is allowed to make to them.
type Repository interface {
	GetSale(ctx context.Context, r store.Reader, id string) (SaleDocument, error)
	ListSales(ctx context.Context, r store.Reader) ([]SaleDocument, error)
	GetPurchase(ctx context.Context, r store.Reader, id string) (PurchaseDocument, error)
	ListPurchases(ctx context.Context, r store.Reader) ([]PurchaseDocument, error)

	InsertSale(ctx context.Context, w store.Writer, sale SaleDocument) (SaleDocument, error)
	InsertPurchase(ctx context.Context, w store.Writer, purchase PurchaseDocument) (PurchaseDocument, error)
	MarkSalePaid(ctx context.Context, w store.Writer, id string) error
	MarkPurchasePaid(ctx context.Context, w store.Writer, id string) error
	MarkSalePosted(ctx context.Context, w store.Writer, id, entryID string, entryNumber int64, lines []SaleLine) error
	MarkPurchasePosted(ctx context.Context, w store.Writer, id, entryID string, entryNumber int64) error
}

type repository struct{}

// NewRepository constructs the store backed document repository.
func NewRepository() Repository {
	return repository{}
}

func (repository) GetSale(ctx context.Context, r store.Reader, id string) (SaleDocument, error) {
	sale, doc, err := store.GetAs[SaleDocument](ctx, r, store.CollectionSales, id)
	if errors.Is(err, store.ErrNotFound) {
		return SaleDocument{}, fmt.Errorf("%w: sale %s", ErrDocumentNotFound, id)
	}
	if err != nil {
		return SaleDocument{}, err
	}
	sale.ID, sale.Seq = id, doc.Seq
	return sale, nil
}

func (repository) ListSales(ctx context.Context, r store.Reader) ([]SaleDocument, error) {
	sales, docs, err := store.ListAs[SaleDocument](ctx, r, store.CollectionSales)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].ID = docs[i].ID
		sales[i].Seq = docs[i].Seq
	}
	return sales, nil
}

func (repository) GetPurchase(ctx context.Context, r store.Reader, id string) (PurchaseDocument, error) {
	purchase, doc, err := store.GetAs[PurchaseDocument](ctx, r, store.CollectionPurchases, id)
	if errors.Is(err, store.ErrNotFound) {
		return PurchaseDocument{}, fmt.Errorf("%w: purchase %s", ErrDocumentNotFound, id)
	}
	if err != nil {
		return PurchaseDocument{}, err
	}
	purchase.ID, purchase.Seq = id, doc.Seq
	return purchase, nil
}

func (repository) ListPurchases(ctx context.Context, r store.Reader) ([]PurchaseDocument, error) {
	purchases, docs, err := store.ListAs[PurchaseDocument](ctx, r, store.CollectionPurchases)
	if err != nil {
		return nil, err
	}
	for i := range purchases {
		purchases[i].ID = docs[i].ID
		purchases[i].Seq = docs[i].Seq
	}
	return purchases, nil
}

func (repository) InsertSale(ctx context.Context, w store.Writer, sale SaleDocument) (SaleDocument, error) {
	if err := sale.Validate(); err != nil {
		return SaleDocument{}, err
	}
	id, err := insert(ctx, w, store.CollectionSales, sale.ID, sale)
	sale.ID = id
	return sale, err
}

func (repository) InsertPurchase(ctx context.Context, w store.Writer, purchase PurchaseDocument) (PurchaseDocument, error) {
	if err := purchase.Validate(); err != nil {
		return PurchaseDocument{}, err
	}
	id, err := insert(ctx, w, store.CollectionPurchases, purchase.ID, purchase)
	purchase.ID = id
	return purchase, err
}

func insert(ctx context.Context, w store.Writer, collection, id string, doc any) (string, error) {
	if id == "" {
		return store.AppendJSON(ctx, w, collection, doc)
	}
	return id, store.PutJSON(ctx, w, collection, id, doc)
}

func (repository) MarkSalePaid(ctx context.Context, w store.Writer, id string) error {
	return store.UpdateJSON(ctx, w, store.CollectionSales, id, map[string]any{"paid": true})
}

func (repository) MarkPurchasePaid(ctx context.Context, w store.Writer, id string) error {
	return store.UpdateJSON(ctx, w, store.CollectionPurchases, id, map[string]any{"paid": true})
}

// MarkSalePosted links the sale to its entry and stores the issue cost
// snapshot on its lines. The entry number records posting order, which the
// Kardex replays costs in.
func (repository) MarkSalePosted(ctx context.Context, w store.Writer, id, entryID string, entryNumber int64, lines []SaleLine) error {
	return store.UpdateJSON(ctx, w, store.CollectionSales, id, map[string]any{
		"entry_id":     entryID,
		"entry_number": entryNumber,
		"lines":        lines,
	})
}

func (repository) MarkPurchasePosted(ctx context.Context, w store.Writer, id, entryID string, entryNumber int64) error {
	return store.UpdateJSON(ctx, w, store.CollectionPurchases, id, map[string]any{
		"entry_id":     entryID,
		"entry_number": entryNumber,
	})
}
