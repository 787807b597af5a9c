package documents

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func amount(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestSaleValidate(t *testing.T) {
	sale := SaleDocument{
		Number:        "F-001",
		Date:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		PaymentMethod: "Efectivo",
		Subtotal:      amount("100"),
		VAT:           amount("12"),
		Total:         amount("112"),
	}
	require.NoError(t, sale.Validate())

	missing := sale
	missing.Total = nil
	require.ErrorIs(t, missing.Validate(), ErrMalformed)

	mismatch := sale
	mismatch.Total = amount("115")
	require.ErrorIs(t, mismatch.Validate(), ErrMalformed)

	noDate := sale
	noDate.Date = time.Time{}
	require.ErrorIs(t, noDate.Validate(), ErrMalformed)
}

func TestPurchaseDecodedWithoutTotalIsMalformed(t *testing.T) {
	var purchase PurchaseDocument
	raw := `{"number":"C-7","date":"2024-03-02T00:00:00Z","payment_method":"Crédito","subtotal":50,"vat":6}`
	require.NoError(t, json.Unmarshal([]byte(raw), &purchase))
	require.ErrorIs(t, purchase.Validate(), ErrMalformed)

	purchase.Total = amount("56")
	require.NoError(t, purchase.Validate())
	require.True(t, purchase.IsCredit())
}

func TestPurchaseLineRequiresCost(t *testing.T) {
	purchase := PurchaseDocument{
		Number:        "C-8",
		Date:          time.Now(),
		PaymentMethod: "Transferencia",
		Subtotal:      amount("10"),
		VAT:           amount("0"),
		Total:         amount("10"),
		Lines:         []PurchaseLine{{ProductID: "p1", Quantity: 1}},
	}
	require.ErrorIs(t, purchase.Validate(), ErrMalformed)
}

func TestIsCreditMethod(t *testing.T) {
	require.True(t, IsCreditMethod("Crédito"))
	require.True(t, IsCreditMethod(" CREDITO "))
	require.True(t, IsCreditMethod("credit"))
	require.False(t, IsCreditMethod("Efectivo"))
	require.False(t, IsCreditMethod(""))
}
