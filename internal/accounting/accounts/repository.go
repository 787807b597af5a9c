package accounts

import (
	"context"
	"fmt"
	"sort"

	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// Repository reads and seeds the accounts collection.
type Repository interface {
	List(ctx context.Context, r store.Reader) ([]Account, error)
	Insert(ctx context.Context, w store.Writer, acc Account) error
}

type repository struct{}

// NewRepository constructs the store backed repository.
func NewRepository() Repository {
	return repository{}
}

func (repository) List(ctx context.Context, r store.Reader) ([]Account, error) {
	accounts, _, err := store.ListAs[Account](ctx, r, store.CollectionAccounts)
	if err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

// Insert stores the account keyed by its code, so a code can exist only once.
func (repository) Insert(ctx context.Context, w store.Writer, acc Account) error {
	if err := store.PutJSON(ctx, w, store.CollectionAccounts, acc.Code, acc); err != nil {
		return fmt.Errorf("accounting: insert account %s: %w", acc.Code, err)
	}
	return nil
}
