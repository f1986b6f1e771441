package ledger

import (
	"github.com/shopspring/decimal"

	"salesdesk/backend/internal/domain"
)

// Entry is the part of a sale a shop ledger cares about.
type Entry struct {
	ShopID   string
	SaleType domain.SaleType
	Total    decimal.Decimal
}

func EntryOf(sale domain.Sale) Entry {
	return Entry{ShopID: sale.ShopID, SaleType: sale.SaleType, Total: sale.Total}
}

// ShopDelta is a signed change to a shop's cash and credit buckets.
type ShopDelta struct {
	ShopID string
	Cash   decimal.Decimal
	Credit decimal.Decimal
}

func (d ShopDelta) IsZero() bool {
	return d.Cash.IsZero() && d.Credit.IsZero()
}

func bucket(shopID string, saleType domain.SaleType, amount decimal.Decimal) ShopDelta {
	delta := ShopDelta{ShopID: shopID, Cash: decimal.Zero, Credit: decimal.Zero}
	if saleType == domain.SaleTypeCredit {
		delta.Credit = amount
	} else {
		delta.Cash = amount
	}
	return delta
}

type EditKind int

const (
	NoOp EditKind = iota
	AmountChanged
	TypeChanged
	ShopChanged
)

func (k EditKind) String() string {
	switch k {
	case AmountChanged:
		return "amount_changed"
	case TypeChanged:
		return "type_changed"
	case ShopChanged:
		return "shop_changed"
	default:
		return "noop"
	}
}

// Classify picks exactly one reconciliation branch for an edit. A shop change
// wins over a type change, which wins over an amount change.
func Classify(before, after Entry) EditKind {
	switch {
	case before.ShopID != after.ShopID:
		return ShopChanged
	case before.SaleType != after.SaleType:
		return TypeChanged
	case !before.Total.Equal(after.Total):
		return AmountChanged
	default:
		return NoOp
	}
}

func ForCreate(e Entry) []ShopDelta {
	return []ShopDelta{bucket(e.ShopID, e.SaleType, e.Total)}
}

func ForDelete(e Entry) []ShopDelta {
	return []ShopDelta{bucket(e.ShopID, e.SaleType, e.Total.Neg())}
}

// Reconcile returns the ledger writes for an edit along with its classification.
func Reconcile(before, after Entry) (EditKind, []ShopDelta) {
	kind := Classify(before, after)
	switch kind {
	case ShopChanged:
		return kind, []ShopDelta{
			bucket(before.ShopID, before.SaleType, before.Total.Neg()),
			bucket(after.ShopID, after.SaleType, after.Total),
		}
	case TypeChanged:
		out := bucket(before.ShopID, before.SaleType, before.Total.Neg())
		in := bucket(after.ShopID, after.SaleType, after.Total)
		return kind, []ShopDelta{{
			ShopID: before.ShopID,
			Cash:   out.Cash.Add(in.Cash),
			Credit: out.Credit.Add(in.Credit),
		}}
	case AmountChanged:
		return kind, []ShopDelta{bucket(after.ShopID, after.SaleType, after.Total.Sub(before.Total))}
	default:
		return kind, nil
	}
}
