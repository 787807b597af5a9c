package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates Kardex movement directions.
type MovementType string

const (
	// MovementIn is a purchase receipt (entrada).
	MovementIn MovementType = "IN"
	// MovementOut is a sale issue (salida).
	MovementOut MovementType = "OUT"
)

// CostPrecision is the number of decimal places kept on average unit costs.
const CostPrecision int32 = 4

// Product carries the two costing fields the ledger owns. Version increases
// on every mutation and guards against lost updates.
type Product struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	QuantityOnHand  int             `json:"quantity_on_hand"`
	AverageUnitCost decimal.Decimal `json:"average_unit_cost"`
	Version         int64           `json:"version"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Valuation is stock times average cost.
func (p Product) Valuation() decimal.Decimal {
	return p.AverageUnitCost.Mul(decimal.NewFromInt(int64(p.QuantityOnHand)))
}

// Movement is one reconstructed Kardex row.
type Movement struct {
	Date        time.Time       `json:"date"`
	Type        MovementType    `json:"type"`
	DocumentID  string          `json:"document_id"`
	DocumentRef string          `json:"document_ref"`
	Detail      string          `json:"detail"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Balance     int             `json:"balance"`
	BalanceCost decimal.Decimal `json:"balance_cost"`
}

// NegativeStockWarning is returned next to an issue that left the product
// below zero. It is advisory unless negative stock is rejected.
type NegativeStockWarning struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Resulting int    `json:"resulting"`
}

func (w *NegativeStockWarning) Error() string {
	return fmt.Sprintf("inventory: product %s issued %d with %d on hand (resulting %d)", w.ProductID, w.Requested, w.Available, w.Resulting)
}

// Unwrap lets errors.Is match ErrNegativeStock.
func (w *NegativeStockWarning) Unwrap() error { return ErrNegativeStock }

// ErrNegativeStock triggered when movement would result negative qty.
var ErrNegativeStock = errors.New("inventory: negative stock not allowed")

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: quantity must be >= 0")

// ErrInvalidUnitCost indicates invalid cost value.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")

// ErrProductNotFound indicates an unknown product id.
var ErrProductNotFound = errors.New("inventory: product not found")
