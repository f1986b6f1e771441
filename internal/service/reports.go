package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"salesdesk/backend/internal/apperr"
	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/invoice"
	"salesdesk/backend/internal/period"
)

// ResolvePeriod turns a period name or an explicit from/to pair into a range
// in the service location.
func (s *Service) ResolvePeriod(name, from, to string) (period.Range, error) {
	r, err := period.Resolve(name, from, to, s.now().In(s.loc))
	if err != nil {
		return period.Range{}, apperr.Wrap(apperr.CodeValidation, err, err.Error())
	}
	return r, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	if err := s.visible(ctx, filter.StoreID, "store"); err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, translate(err, "sale")
	}
	return sales, nil
}

func (s *Service) CurrentMonthSales(ctx context.Context, storeID string) ([]domain.Sale, error) {
	r, err := period.Named(period.ThisMonth, s.now().In(s.loc))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "resolve current month")
	}
	return s.ListSales(ctx, domain.SaleFilter{StoreID: storeID, From: r.From, To: r.To})
}

func (s *Service) SalesReport(ctx context.Context, storeID string, r period.Range) (domain.SalesReport, error) {
	if err := s.visible(ctx, storeID, "store"); err != nil {
		return domain.SalesReport{}, err
	}
	return cachedReport(ctx, s, storeID, "sales", r.Key(), func() (domain.SalesReport, error) {
		sales, err := s.ListSales(ctx, domain.SaleFilter{StoreID: storeID, From: r.From, To: r.To})
		if err != nil {
			return domain.SalesReport{}, err
		}
		report := domain.SalesReport{
			StoreID:     storeID,
			From:        r.From,
			To:          r.To,
			SaleCount:   len(sales),
			Gross:       decimal.Zero,
			Net:         decimal.Zero,
			CashTotal:   decimal.Zero,
			CreditTotal: decimal.Zero,
			Sales:       sales,
		}
		for _, sale := range sales {
			report.UnitsSold += sale.Units()
			report.Gross = report.Gross.Add(sale.Gross())
			report.Net = report.Net.Add(sale.Total)
			if sale.SaleType == domain.SaleTypeCredit {
				report.CreditTotal = report.CreditTotal.Add(sale.Total)
			} else {
				report.CashTotal = report.CashTotal.Add(sale.Total)
			}
		}
		report.DiscountAmount = report.Gross.Sub(report.Net)
		return report, nil
	})
}

// ShopSalesReport lists every shop of the store with its ledger balances and
// what it bought inside the range, best customers first.
func (s *Service) ShopSalesReport(ctx context.Context, storeID string, r period.Range) ([]domain.ShopSalesRow, error) {
	if err := s.visible(ctx, storeID, "store"); err != nil {
		return nil, err
	}
	return cachedReport(ctx, s, storeID, "shops", r.Key(), func() ([]domain.ShopSalesRow, error) {
		shops, err := s.ListShops(ctx, storeID)
		if err != nil {
			return nil, err
		}
		sales, err := s.ListSales(ctx, domain.SaleFilter{StoreID: storeID, From: r.From, To: r.To})
		if err != nil {
			return nil, err
		}

		type tally struct {
			units  int
			amount decimal.Decimal
			byItem map[string]int
		}
		tallies := make(map[string]*tally, len(shops))
		for _, sale := range sales {
			t, ok := tallies[sale.ShopID]
			if !ok {
				t = &tally{amount: decimal.Zero, byItem: map[string]int{}}
				tallies[sale.ShopID] = t
			}
			for _, item := range sale.Items {
				t.units += item.Quantity
				t.amount = t.amount.Add(item.LineTotal())
				t.byItem[itemLabel(item)] += item.Quantity
			}
		}

		rows := make([]domain.ShopSalesRow, 0, len(shops))
		for _, shop := range shops {
			row := domain.ShopSalesRow{
				ID:            shop.ID,
				Name:          shop.Name,
				FirstSaleDate: shop.FirstSaleDate,
				CashPaid:      shop.CashPaid,
				Credit:        shop.Credit,
				AmountMade:    decimal.Zero,
			}
			if t, ok := tallies[shop.ID]; ok {
				row.UnitsSold = t.units
				row.AmountMade = t.amount
				row.MostSoldItem = mostSold(t.byItem)
			}
			rows = append(rows, row)
		}
		slices.SortFunc(rows, func(a, b domain.ShopSalesRow) int {
			if c := b.AmountMade.Cmp(a.AmountMade); c != 0 {
				return c
			}
			return strings.Compare(a.Name, b.Name)
		})
		return rows, nil
	})
}

// ProductSalesReport aggregates sold units and revenue per product. A non
// empty productID narrows the report to that product.
func (s *Service) ProductSalesReport(ctx context.Context, storeID string, r period.Range, productID string) ([]domain.ProductSalesRow, error) {
	if err := s.visible(ctx, storeID, "store"); err != nil {
		return nil, err
	}
	productID = strings.TrimSpace(productID)
	if productID != "" {
		product, err := s.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if product.StoreID != storeID {
			return nil, apperr.New(apperr.CodeNotFound, "product not found")
		}
	}

	return cachedReport(ctx, s, storeID, "products:"+productID, r.Key(), func() ([]domain.ProductSalesRow, error) {
		products, err := s.ListProducts(ctx, storeID)
		if err != nil {
			return nil, err
		}
		sales, err := s.ListSales(ctx, domain.SaleFilter{StoreID: storeID, From: r.From, To: r.To})
		if err != nil {
			return nil, err
		}

		rows := make(map[string]*domain.ProductSalesRow, len(products))
		for _, p := range products {
			if productID != "" && p.ID != productID {
				continue
			}
			rows[p.ID] = &domain.ProductSalesRow{ProductID: p.ID, Name: p.Name, Revenue: decimal.Zero}
		}
		for _, sale := range sales {
			for _, item := range sale.Items {
				row, ok := rows[item.ProductID]
				if !ok {
					continue
				}
				row.UnitsSold += item.Quantity
				row.Revenue = row.Revenue.Add(item.LineTotal())
				row.SaleCount++
			}
		}

		out := make([]domain.ProductSalesRow, 0, len(rows))
		for _, row := range rows {
			out = append(out, *row)
		}
		slices.SortFunc(out, func(a, b domain.ProductSalesRow) int {
			if a.UnitsSold != b.UnitsSold {
				return b.UnitsSold - a.UnitsSold
			}
			return strings.Compare(a.Name, b.Name)
		})
		return out, nil
	})
}

func (s *Service) SalesmanReport(ctx context.Context, storeID string, r period.Range) ([]domain.SalesmanSalesRow, error) {
	if err := s.visible(ctx, storeID, "store"); err != nil {
		return nil, err
	}
	return cachedReport(ctx, s, storeID, "salesmen", r.Key(), func() ([]domain.SalesmanSalesRow, error) {
		salesmen, err := s.ListSalesmen(ctx, storeID)
		if err != nil {
			return nil, err
		}
		sales, err := s.ListSales(ctx, domain.SaleFilter{StoreID: storeID, From: r.From, To: r.To})
		if err != nil {
			return nil, err
		}

		rows := make(map[string]*domain.SalesmanSalesRow, len(salesmen))
		for _, sm := range salesmen {
			rows[sm.ID] = &domain.SalesmanSalesRow{SalesmanID: sm.ID, Name: sm.Name, TotalAmount: decimal.Zero}
		}
		for _, sale := range sales {
			row, ok := rows[sale.SalesmanID]
			if !ok {
				continue
			}
			row.SaleCount++
			row.UnitsSold += sale.Units()
			row.TotalAmount = row.TotalAmount.Add(sale.Total)
		}

		out := make([]domain.SalesmanSalesRow, 0, len(rows))
		for _, row := range rows {
			out = append(out, *row)
		}
		slices.SortFunc(out, func(a, b domain.SalesmanSalesRow) int {
			if c := b.TotalAmount.Cmp(a.TotalAmount); c != 0 {
				return c
			}
			return strings.Compare(a.Name, b.Name)
		})
		return out, nil
	})
}

// Invoice gathers everything the printable invoice of a sale shows.
func (s *Service) Invoice(ctx context.Context, saleID string) (invoice.Document, error) {
	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return invoice.Document{}, err
	}
	st, err := s.repo.GetStore(ctx, sale.StoreID)
	if err != nil {
		return invoice.Document{}, translate(err, "store")
	}
	shop, err := s.repo.GetShop(ctx, sale.ShopID)
	if err != nil {
		return invoice.Document{}, translate(err, "shop")
	}
	return invoice.Build(sale, *st, *shop, s.loc), nil
}

// cachedReport serves a report from the report cache when the store's
// current version has it. Cache failures degrade to a fresh build.
func cachedReport[T any](ctx context.Context, s *Service, storeID, kind, rangeKey string, build func() (T, error)) (T, error) {
	logCtx := s.log.WithFields(ctx, map[string]any{"store_id": storeID, "report": kind})

	version, err := s.reports.Version(ctx, storeID)
	if err != nil {
		s.log.Warn(logCtx, "report cache version lookup failed", err)
		return build()
	}
	key := fmt.Sprintf("%s:v%d:%s:%s", storeID, version, kind, rangeKey)

	var cached T
	hit, err := s.reports.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn(logCtx, "report cache read failed", err)
	} else if hit {
		return cached, nil
	}

	fresh, err := build()
	if err != nil {
		return fresh, err
	}
	if err := s.reports.Set(ctx, key, fresh, s.cacheTTL); err != nil {
		s.log.Warn(logCtx, "report cache write failed", err)
	}
	return fresh, nil
}

func itemLabel(item domain.SaleItem) string {
	if item.ProductName != "" {
		return item.ProductName
	}
	return item.ProductID
}

// mostSold picks the label with the most units; ties go to the smaller label.
func mostSold(byItem map[string]int) *string {
	var best string
	bestUnits := 0
	for label, units := range byItem {
		if units > bestUnits || (units == bestUnits && label < best) {
			best, bestUnits = label, units
		}
	}
	if bestUnits == 0 {
		return nil
	}
	return &best
}
