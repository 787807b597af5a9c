package inventory

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
)

// Kardex is the replayed movement ledger of one product next to its live
// costing fields.
type Kardex struct {
	Product           Product         `json:"product"`
	Movements         []Movement      `json:"movements"`
	EndingQuantity    int             `json:"ending_quantity"`
	EndingAverageCost decimal.Decimal `json:"ending_average_cost"`
	QuantityDrift     int             `json:"quantity_drift"`
	CostDrift         decimal.Decimal `json:"cost_drift"`
}

// Drifted reports whether the replay disagrees with the stored product.
func (k Kardex) Drifted() bool {
	return k.QuantityDrift != 0 || !k.CostDrift.IsZero()
}

type kardexLine struct {
	date     time.Time
	entry    int64
	seq      int64
	line     int
	movement Movement
}

// BuildKardex replays every posted purchase and sale line for product.
// Movements are listed in date order with the running quantity balance. The
// weighted average is replayed in posting order, the order the live product
// was costed in, so back-dated documents do not read as cost drift.
// Documents not yet journalized have not moved stock and are skipped.
func BuildKardex(product Product, purchases []documents.PurchaseDocument, sales []documents.SaleDocument) Kardex {
	var lines []kardexLine
	for _, doc := range purchases {
		if !doc.Posted() {
			continue
		}
		for idx, line := range doc.Lines {
			if line.ProductID != product.ID {
				continue
			}
			cost := decimal.Zero
			if line.UnitCost != nil {
				cost = *line.UnitCost
			}
			lines = append(lines, kardexLine{date: doc.Date, entry: doc.EntryNumber, seq: doc.Seq, line: idx, movement: Movement{
				Date:        doc.Date,
				Type:        MovementIn,
				DocumentID:  doc.ID,
				DocumentRef: doc.Number,
				Detail:      fmt.Sprintf("Purchase from %s", doc.SupplierName),
				Quantity:    line.Quantity,
				UnitCost:    cost,
			}})
		}
	}
	for _, doc := range sales {
		if !doc.Posted() {
			continue
		}
		for idx, line := range doc.Lines {
			if line.ProductID != product.ID {
				continue
			}
			mv := Movement{
				Date:        doc.Date,
				Type:        MovementOut,
				DocumentID:  doc.ID,
				DocumentRef: doc.Number,
				Detail:      fmt.Sprintf("Sale to %s", doc.CustomerName),
				Quantity:    line.Quantity,
			}
			if line.UnitCost != nil {
				mv.UnitCost = *line.UnitCost
			}
			lines = append(lines, kardexLine{date: doc.Date, entry: doc.EntryNumber, seq: doc.Seq, line: idx, movement: mv})
		}
	}

	// Cost pass, posting order. Entry numbers are allocated per posting, so
	// they order the documents exactly as the live product saw them.
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].entry != lines[j].entry {
			return lines[i].entry < lines[j].entry
		}
		return byDate(lines[i], lines[j])
	})
	costed := Product{ID: product.ID}
	for i := range lines {
		mv := &lines[i].movement
		switch mv.Type {
		case MovementIn:
			if next, err := ApplyReceipt(costed, mv.Quantity, mv.UnitCost); err == nil {
				costed = next
			}
		case MovementOut:
			next, snapshot, _, err := ApplyIssue(costed, mv.Quantity)
			if err == nil {
				costed = next
			}
			if mv.UnitCost.IsZero() {
				mv.UnitCost = snapshot
			}
		}
		mv.BalanceCost = costed.AverageUnitCost
	}

	// Quantity pass, date order.
	sort.SliceStable(lines, func(i, j int) bool { return byDate(lines[i], lines[j]) })
	saldo := 0
	k := Kardex{Product: product, Movements: make([]Movement, 0, len(lines))}
	for _, l := range lines {
		mv := l.movement
		switch mv.Type {
		case MovementIn:
			saldo += mv.Quantity
		case MovementOut:
			saldo -= mv.Quantity
		}
		mv.Balance = saldo
		k.Movements = append(k.Movements, mv)
	}
	k.EndingQuantity = saldo
	k.EndingAverageCost = costed.AverageUnitCost
	k.QuantityDrift = product.QuantityOnHand - saldo
	k.CostDrift = product.AverageUnitCost.Sub(costed.AverageUnitCost)
	return k
}

func byDate(a, b kardexLine) bool {
	if !a.date.Equal(b.date) {
		return a.date.Before(b.date)
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return a.line < b.line
}
