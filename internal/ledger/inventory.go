package ledger

import (
	"fmt"
	"sort"

	"salesdesk/backend/internal/domain"
)

// StockDelta is a signed change to one product's stock.
type StockDelta struct {
	ProductID string
	Delta     int
}

// Shortage describes the first product whose stock cannot cover a request.
type Shortage struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (s Shortage) Error() string {
	return fmt.Sprintf("Not enough stock for product %q. Available: %d, Requested: %d", s.Name, s.Available, s.Requested)
}

// Quantities folds items into product id -> quantity.
func Quantities(items []domain.SaleItem) map[string]int {
	out := make(map[string]int, len(items))
	for _, item := range items {
		out[item.ProductID] += item.Quantity
	}
	return out
}

// PlanStock computes the stock movements that turn a sale holding oldQty into
// one holding newQty. Creation passes a nil oldQty, deletion a nil newQty.
// Every product in newQty must be present in products; the effective stock of
// each one (current + old - new) must stay non-negative, otherwise the first
// offending product (in id order) is reported and no deltas are returned.
// Deltas are sorted by product id and never contain zeros.
func PlanStock(products map[string]domain.Product, oldQty, newQty map[string]int) ([]StockDelta, *Shortage) {
	ids := make([]string, 0, len(oldQty)+len(newQty))
	seen := make(map[string]struct{}, cap(ids))
	for id := range newQty {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for id := range oldQty {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	deltas := make([]StockDelta, 0, len(ids))
	for _, id := range ids {
		requested, inNew := newQty[id]
		old := oldQty[id]
		if inNew {
			product := products[id]
			available := product.Stock + old
			if available-requested < 0 {
				return nil, &Shortage{ProductID: id, Name: product.Name, Available: available, Requested: requested}
			}
		}
		if delta := old - requested; delta != 0 {
			deltas = append(deltas, StockDelta{ProductID: id, Delta: delta})
		}
	}
	return deltas, nil
}
