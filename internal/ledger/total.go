// Package ledger holds the pure bookkeeping rules of a sale: how its total is
// computed, how stock moves when a sale is created, edited or removed, and how
// a shop's cash and credit buckets follow those changes.
package ledger

import (
	"github.com/shopspring/decimal"

	"salesdesk/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Total applies a percentage discount to the undiscounted sum of items and
// rounds to two decimals. discount must already be within [0, 100].
func Total(items []domain.SaleItem, discount decimal.Decimal) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal.Mul(hundred.Sub(discount)).Div(hundred).Round(2)
}

func ValidDiscount(discount decimal.Decimal) bool {
	return !discount.IsNegative() && discount.LessThanOrEqual(hundred)
}
