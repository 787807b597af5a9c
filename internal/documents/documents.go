// Package documents defines the source documents the ledger posts from.
//
// Sales and purchases are persisted by the surrounding application. The
// ledger only reads them, validates them at the posting boundary and flips
// their paid flag on collection or settlement.
package documents

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrMalformed indicates a source document missing required fields or
// carrying totals that do not add up.
var ErrMalformed = errors.New("accounting: malformed source document")

// totalTolerance is the largest accepted gap between total and subtotal+vat.
var totalTolerance = decimal.New(1, -2)

// SaleLine is one product line on a sale invoice. UnitCost is the weighted
// average snapshot taken when the line was issued from stock.
type SaleLine struct {
	ProductID   string           `json:"product_id" validate:"required"`
	Description string           `json:"description,omitempty"`
	Quantity    int              `json:"quantity" validate:"gte=0"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
}

// SaleDocument is an issued sale invoice.
type SaleDocument struct {
	ID            string           `json:"id"`
	Number        string           `json:"number" validate:"required"`
	Date          time.Time        `json:"date" validate:"required"`
	CustomerName  string           `json:"customer_name"`
	PaymentMethod string           `json:"payment_method" validate:"required"`
	Subtotal      *decimal.Decimal `json:"subtotal" validate:"required"`
	VAT           *decimal.Decimal `json:"vat" validate:"required"`
	Total         *decimal.Decimal `json:"total" validate:"required"`
	Paid          bool             `json:"paid"`
	EntryID       string           `json:"entry_id,omitempty"`
	EntryNumber   int64            `json:"entry_number,omitempty"`
	Lines         []SaleLine       `json:"lines" validate:"dive"`

	Seq int64 `json:"-"`
}

// PurchaseLine is one product line on a supplier invoice.
type PurchaseLine struct {
	ProductID   string           `json:"product_id" validate:"required"`
	Description string           `json:"description,omitempty"`
	Quantity    int              `json:"quantity" validate:"gte=0"`
	UnitCost    *decimal.Decimal `json:"unit_cost" validate:"required"`
}

// PurchaseDocument is a received supplier invoice.
type PurchaseDocument struct {
	ID            string           `json:"id"`
	Number        string           `json:"number" validate:"required"`
	Date          time.Time        `json:"date" validate:"required"`
	SupplierName  string           `json:"supplier_name"`
	PaymentMethod string           `json:"payment_method" validate:"required"`
	Subtotal      *decimal.Decimal `json:"subtotal" validate:"required"`
	VAT           *decimal.Decimal `json:"vat" validate:"required"`
	Total         *decimal.Decimal `json:"total" validate:"required"`
	Paid          bool             `json:"paid"`
	EntryID       string           `json:"entry_id,omitempty"`
	EntryNumber   int64            `json:"entry_number,omitempty"`
	Lines         []PurchaseLine   `json:"lines" validate:"dive"`

	Seq int64 `json:"-"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func schema() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks the sale schema and its totals.
func (d SaleDocument) Validate() error {
	if err := schema().Struct(d); err != nil {
		return fmt.Errorf("%w: sale %s: %v", ErrMalformed, d.Number, err)
	}
	for idx, line := range d.Lines {
		if line.UnitPrice.IsNegative() || (line.UnitCost != nil && line.UnitCost.IsNegative()) {
			return fmt.Errorf("%w: sale %s line %d negative amount", ErrMalformed, d.Number, idx)
		}
	}
	return checkTotals("sale", d.Number, *d.Subtotal, *d.VAT, *d.Total)
}

// Validate checks the purchase schema and its totals.
func (d PurchaseDocument) Validate() error {
	if err := schema().Struct(d); err != nil {
		return fmt.Errorf("%w: purchase %s: %v", ErrMalformed, d.Number, err)
	}
	for idx, line := range d.Lines {
		if line.UnitCost.IsNegative() {
			return fmt.Errorf("%w: purchase %s line %d negative cost", ErrMalformed, d.Number, idx)
		}
	}
	return checkTotals("purchase", d.Number, *d.Subtotal, *d.VAT, *d.Total)
}

func checkTotals(kind, number string, subtotal, vat, total decimal.Decimal) error {
	if subtotal.IsNegative() || vat.IsNegative() || total.IsNegative() {
		return fmt.Errorf("%w: %s %s negative total", ErrMalformed, kind, number)
	}
	if subtotal.Add(vat).Sub(total).Abs().GreaterThanOrEqual(totalTolerance) {
		return fmt.Errorf("%w: %s %s total %s != subtotal %s + vat %s", ErrMalformed, kind, number, total, subtotal, vat)
	}
	return nil
}

// Posted reports whether the sale entry has been journalized.
func (d SaleDocument) Posted() bool { return d.EntryID != "" }

// Posted reports whether the purchase entry has been journalized.
func (d PurchaseDocument) Posted() bool { return d.EntryID != "" }

// IsCredit reports whether the sale was issued on credit.
func (d SaleDocument) IsCredit() bool { return IsCreditMethod(d.PaymentMethod) }

// IsCredit reports whether the purchase was received on credit.
func (d PurchaseDocument) IsCredit() bool { return IsCreditMethod(d.PaymentMethod) }

// IsCreditMethod matches payment method labels ignoring case and accents, so
// "Crédito", "credito" and "CREDIT" are all credit terms.
func IsCreditMethod(method string) bool {
	switch NormalizeMethod(method) {
	case "credito", "credit":
		return true
	}
	return false
}

// NormalizeMethod lowercases a payment method label and strips diacritics.
func NormalizeMethod(method string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, method)
	if err != nil {
		out = method
	}
	return strings.ToLower(strings.TrimSpace(out))
}
