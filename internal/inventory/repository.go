package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// Repository reads and writes products through the caller's transaction.
type Repository interface {
	Get(ctx context.Context, r store.Reader, id string) (Product, error)
	List(ctx context.Context, r store.Reader) ([]Product, error)
	Insert(ctx context.Context, w store.Writer, p Product) (Product, error)
	// Save writes the costing fields if the stored version still equals
	// p.Version, then bumps the version. A mismatch is store.ErrConflict.
	Save(ctx context.Context, w store.Writer, p Product) (Product, error)
}

type repository struct {
	now func() time.Time
}

// NewRepository constructs the store backed product repository.
func NewRepository() Repository {
	return &repository{now: time.Now}
}

func (r *repository) Get(ctx context.Context, rd store.Reader, id string) (Product, error) {
	p, _, err := store.GetAs[Product](ctx, rd, store.CollectionProducts, id)
	if errors.Is(err, store.ErrNotFound) {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return Product{}, err
	}
	p.ID = id
	return p, nil
}

func (r *repository) List(ctx context.Context, rd store.Reader) ([]Product, error) {
	products, docs, err := store.ListAs[Product](ctx, rd, store.CollectionProducts)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].ID = docs[i].ID
	}
	sort.SliceStable(products, func(i, j int) bool { return products[i].Code < products[j].Code })
	return products, nil
}

func (r *repository) Insert(ctx context.Context, w store.Writer, p Product) (Product, error) {
	p.Version = 1
	p.UpdatedAt = r.now().UTC()
	if p.ID == "" {
		id, err := store.AppendJSON(ctx, w, store.CollectionProducts, p)
		if err != nil {
			return Product{}, err
		}
		p.ID = id
		return p, nil
	}
	return p, store.PutJSON(ctx, w, store.CollectionProducts, p.ID, p)
}

func (r *repository) Save(ctx context.Context, w store.Writer, p Product) (Product, error) {
	current, err := r.Get(ctx, w, p.ID)
	if err != nil {
		return Product{}, err
	}
	if current.Version != p.Version {
		return Product{}, fmt.Errorf("%w: product %s version %d != %d", store.ErrConflict, p.ID, current.Version, p.Version)
	}
	p.Version++
	p.UpdatedAt = r.now().UTC()
	err = store.UpdateJSON(ctx, w, store.CollectionProducts, p.ID, map[string]any{
		"quantity_on_hand":  p.QuantityOnHand,
		"average_unit_cost": p.AverageUnitCost,
		"version":           p.Version,
		"updated_at":        p.UpdatedAt,
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}
