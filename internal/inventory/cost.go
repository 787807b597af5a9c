package inventory

import "github.com/shopspring/decimal"

// ApplyReceipt folds qty units at unitCost into the moving weighted average.
// A zero quantity leaves the product untouched. Units owed from negative
// stock carry no cost, so a receipt that brings stock back above zero takes
// unitCost as the new average.
func ApplyReceipt(p Product, qty int, unitCost decimal.Decimal) (Product, error) {
	if qty < 0 {
		return p, ErrInvalidQuantity
	}
	if unitCost.IsNegative() {
		return p, ErrInvalidUnitCost
	}
	if qty == 0 {
		return p, nil
	}
	newQty := p.QuantityOnHand + qty
	switch {
	case newQty <= 0:
	case p.QuantityOnHand < 0:
		p.AverageUnitCost = unitCost.Round(CostPrecision)
	default:
		held := p.AverageUnitCost.Mul(decimal.NewFromInt(int64(p.QuantityOnHand)))
		received := unitCost.Mul(decimal.NewFromInt(int64(qty)))
		p.AverageUnitCost = held.Add(received).DivRound(decimal.NewFromInt(int64(newQty)), CostPrecision)
	}
	p.QuantityOnHand = newQty
	return p, nil
}

// ApplyIssue removes qty units at the current average, which is returned as
// the cost snapshot for the sale line. The warning is non-nil when stock went
// below zero.
func ApplyIssue(p Product, qty int) (Product, decimal.Decimal, *NegativeStockWarning, error) {
	if qty < 0 {
		return p, decimal.Zero, nil, ErrInvalidQuantity
	}
	snapshot := p.AverageUnitCost
	available := p.QuantityOnHand
	p.QuantityOnHand -= qty
	var warning *NegativeStockWarning
	if p.QuantityOnHand < 0 && qty > 0 {
		warning = &NegativeStockWarning{ProductID: p.ID, Requested: qty, Available: available, Resulting: p.QuantityOnHand}
	}
	return p, snapshot, warning, nil
}
