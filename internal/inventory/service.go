package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, w store.Writer, log shared.AuditLog) error
}

// Observer is notified of advisory inventory conditions.
type Observer interface {
	NegativeStock(w NegativeStockWarning)
	KardexDrift(k Kardex)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// RejectNegativeStock turns NegativeStockWarning into a failed issue.
	RejectNegativeStock bool
}

// IssueResult is the outcome of issuing units from stock.
type IssueResult struct {
	Product  Product               `json:"product"`
	UnitCost decimal.Decimal       `json:"unit_cost"`
	Warning  *NegativeStockWarning `json:"warning,omitempty"`
}

// Service is the inventory cost engine: it keeps quantity on hand and the
// moving average cost of each product and rebuilds the Kardex on demand.
type Service struct {
	store    store.Store
	repo     Repository
	docs     documents.Repository
	locker   Locker
	audit    AuditPort
	observer Observer
	logger   *slog.Logger
	cfg      ServiceConfig
}

// NewService builds Service. audit and observer may be nil.
func NewService(st store.Store, repo Repository, docs documents.Repository, locker Locker, audit AuditPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, repo: repo, docs: docs, locker: locker, audit: audit, logger: logger, cfg: cfg}
}

// WithObserver registers an observer for warnings and drift.
func (s *Service) WithObserver(o Observer) {
	s.observer = o
}

// Locker exposes the product locker for callers that span several products.
func (s *Service) Locker() Locker {
	return s.locker
}

// CreateProduct registers a product with empty stock.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.Code = strings.TrimSpace(p.Code)
	if p.Code == "" || strings.TrimSpace(p.Name) == "" {
		return Product{}, errors.New("inventory: code and name required")
	}
	p.QuantityOnHand = 0
	p.AverageUnitCost = decimal.Zero
	err := s.store.WithTx(ctx, func(ctx context.Context, w store.Writer) error {
		var err error
		p, err = s.repo.Insert(ctx, w, p)
		return err
	})
	return p, err
}

// GetProduct loads one product.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		p, err = s.repo.Get(ctx, r, id)
		return err
	})
	return p, err
}

// ListProducts returns every product ordered by code.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		products, err = s.repo.List(ctx, r)
		return err
	})
	return products, err
}

// ReceivePurchaseLine adds qty units at unitCost under the product lock.
func (s *Service) ReceivePurchaseLine(ctx context.Context, productID string, qty int, unitCost decimal.Decimal) (Product, error) {
	release, err := LockProducts(ctx, s.locker, []string{productID})
	if err != nil {
		return Product{}, err
	}
	defer release()
	var p Product
	err = s.store.WithTx(ctx, func(ctx context.Context, w store.Writer) error {
		var err error
		p, err = s.ReceiveInTx(ctx, w, productID, qty, unitCost, "")
		return err
	})
	return p, err
}

// IssueSaleLine removes qty units under the product lock.
func (s *Service) IssueSaleLine(ctx context.Context, productID string, qty int) (IssueResult, error) {
	release, err := LockProducts(ctx, s.locker, []string{productID})
	if err != nil {
		return IssueResult{}, err
	}
	defer release()
	var res IssueResult
	err = s.store.WithTx(ctx, func(ctx context.Context, w store.Writer) error {
		var err error
		res, err = s.IssueInTx(ctx, w, productID, qty, "")
		return err
	})
	return res, err
}

// ReceiveInTx applies a receipt inside the caller's transaction. The caller
// must hold the product lock.
func (s *Service) ReceiveInTx(ctx context.Context, w store.Writer, productID string, qty int, unitCost decimal.Decimal, ref string) (Product, error) {
	current, err := s.repo.Get(ctx, w, productID)
	if err != nil {
		return Product{}, err
	}
	next, err := ApplyReceipt(current, qty, unitCost)
	if err != nil {
		return Product{}, err
	}
	if qty == 0 {
		return current, nil
	}
	saved, err := s.repo.Save(ctx, w, next)
	if err != nil {
		return Product{}, err
	}
	if err := s.record(ctx, w, "inventory.receive", saved, qty, unitCost, ref); err != nil {
		return Product{}, err
	}
	return saved, nil
}

// IssueInTx applies an issue inside the caller's transaction. The caller must
// hold the product lock.
func (s *Service) IssueInTx(ctx context.Context, w store.Writer, productID string, qty int, ref string) (IssueResult, error) {
	current, err := s.repo.Get(ctx, w, productID)
	if err != nil {
		return IssueResult{}, err
	}
	next, snapshot, warning, err := ApplyIssue(current, qty)
	if err != nil {
		return IssueResult{}, err
	}
	if warning != nil {
		if s.cfg.RejectNegativeStock {
			return IssueResult{}, warning
		}
		s.logger.Warn("negative stock", slog.String("product_id", productID), slog.Int("resulting", warning.Resulting), slog.String("ref", ref))
		if s.observer != nil {
			s.observer.NegativeStock(*warning)
		}
	}
	if qty == 0 {
		return IssueResult{Product: current, UnitCost: snapshot}, nil
	}
	saved, err := s.repo.Save(ctx, w, next)
	if err != nil {
		return IssueResult{}, err
	}
	if err := s.record(ctx, w, "inventory.issue", saved, qty, snapshot, ref); err != nil {
		return IssueResult{}, err
	}
	return IssueResult{Product: saved, UnitCost: snapshot, Warning: warning}, nil
}

func (s *Service) record(ctx context.Context, w store.Writer, action string, p Product, qty int, cost decimal.Decimal, ref string) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, w, shared.AuditLog{
		Action:   action,
		Entity:   "product",
		EntityID: p.ID,
		Meta: map[string]any{
			"qty":               qty,
			"unit_cost":         cost.StringFixed(CostPrecision),
			"quantity_on_hand":  p.QuantityOnHand,
			"average_unit_cost": p.AverageUnitCost.StringFixed(CostPrecision),
			"ref":               ref,
		},
	})
}

// Kardex reconstructs the movement ledger of one product from the stored
// purchases and sales and compares it with the live product.
func (s *Service) Kardex(ctx context.Context, productID string) (Kardex, error) {
	var k Kardex
	err := s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		k, err = s.KardexIn(ctx, r, productID)
		return err
	})
	if err != nil {
		return Kardex{}, err
	}
	if k.Drifted() {
		s.logger.Warn("kardex drift", slog.String("product_id", productID),
			slog.Int("quantity_drift", k.QuantityDrift), slog.String("cost_drift", k.CostDrift.String()))
		if s.observer != nil {
			s.observer.KardexDrift(k)
		}
	}
	return k, nil
}

// KardexIn builds the Kardex over an existing read view.
func (s *Service) KardexIn(ctx context.Context, r store.Reader, productID string) (Kardex, error) {
	product, err := s.repo.Get(ctx, r, productID)
	if err != nil {
		return Kardex{}, err
	}
	purchases, err := s.docs.ListPurchases(ctx, r)
	if err != nil {
		return Kardex{}, fmt.Errorf("inventory: load purchases: %w", err)
	}
	sales, err := s.docs.ListSales(ctx, r)
	if err != nil {
		return Kardex{}, fmt.Errorf("inventory: load sales: %w", err)
	}
	return BuildKardex(product, purchases, sales), nil
}
