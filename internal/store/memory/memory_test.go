package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/store"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.AdjustStock(ctx, "product_demo_tea", -20); err != nil {
			t.Fatalf("adjust stock: %v", err)
		}
		if err := tx.AdjustShopBalance(ctx, "shop_demo_1", decimal.NewFromInt(500), decimal.Zero); err != nil {
			t.Fatalf("adjust balance: %v", err)
		}
		if err := tx.MarkFirstSale(ctx, "shop_demo_1", time.Now()); err != nil {
			t.Fatalf("mark first sale: %v", err)
		}
		if err := tx.InsertSale(ctx, domain.Sale{ID: "sale_x", StoreID: SeedStoreID, ShopID: "shop_demo_1"}); err != nil {
			t.Fatalf("insert sale: %v", err)
		}
		if err := tx.UpdateProductDetails(ctx, domain.Product{ID: "product_demo_tea", Name: "Renamed", Price: decimal.NewFromInt(1)}); err != nil {
			t.Fatalf("update details: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	product, err := s.GetProduct(ctx, "product_demo_tea")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 120 || product.Name != "Tea 950g" {
		t.Fatalf("product not restored: %+v", product)
	}

	shop, err := s.GetShop(ctx, "shop_demo_1")
	if err != nil {
		t.Fatalf("get shop: %v", err)
	}
	if !shop.CashPaid.IsZero() || shop.FirstSaleDate != nil {
		t.Fatalf("shop not restored: %+v", shop)
	}

	if _, err := s.GetSale(ctx, "sale_x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected rolled back sale to be gone, got %v", err)
	}
}

func TestUpdateProductDetailsKeepsStock(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.UpdateProductDetails(ctx, domain.Product{ID: "product_demo_tea", Name: "Green Tea", Price: decimal.RequireFromString("130.50"), Stock: 1})
	})
	if err != nil {
		t.Fatalf("update details: %v", err)
	}
	product, err := s.GetProduct(ctx, "product_demo_tea")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Name != "Green Tea" || product.Price.StringFixed(2) != "130.50" || product.Stock != 120 {
		t.Fatalf("unexpected product %+v", product)
	}

	err = s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.UpdateProductDetails(ctx, domain.Product{ID: "missing", Name: "x"})
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdjustGuardsAgainstNegativeCounters(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.AdjustStock(ctx, "product_demo_oil", -61)
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	err = s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.AdjustShopBalance(ctx, "shop_demo_1", decimal.Zero, decimal.NewFromInt(-1))
	})
	if !errors.Is(err, store.ErrNegativeBalance) {
		t.Fatalf("expected negative balance, got %v", err)
	}
}

func TestMarkFirstSaleOnlyOnce(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	err := s.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.MarkFirstSale(ctx, "shop_demo_2", first); err != nil {
			return err
		}
		return tx.MarkFirstSale(ctx, "shop_demo_2", first.Add(time.Hour))
	})
	if err != nil {
		t.Fatalf("mark first sale: %v", err)
	}

	shop, err := s.GetShop(ctx, "shop_demo_2")
	if err != nil {
		t.Fatalf("get shop: %v", err)
	}
	if shop.FirstSaleDate == nil || !shop.FirstSaleDate.Equal(first) {
		t.Fatalf("expected first sale date %s, got %v", first, shop.FirstSaleDate)
	}
}

func TestLockProductsIsScopedToStore(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	if _, err := s.CreateProduct(ctx, domain.Product{ID: "product_other", StoreID: "store_other", Name: "Foreign", Stock: 5}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	var found map[string]domain.Product
	err := s.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		found, err = tx.LockProducts(ctx, SeedStoreID, []string{"product_demo_tea", "product_other", "missing"})
		return err
	})
	if err != nil {
		t.Fatalf("lock products: %v", err)
	}
	if _, ok := found["product_demo_tea"]; len(found) != 1 || !ok {
		t.Fatalf("expected only the own product, got %v", found)
	}
}

func TestListSalesFiltersAndHydrates(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	day := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	err := s.WithinTx(ctx, func(tx store.Tx) error {
		for i, shopID := range []string{"shop_demo_1", "shop_demo_2", "shop_demo_1"} {
			err := tx.InsertSale(ctx, domain.Sale{
				ID:         []string{"sale_a", "sale_b", "sale_c"}[i],
				StoreID:    SeedStoreID,
				ShopID:     shopID,
				SalesmanID: "salesman_demo_1",
				SaleTime:   day.Add(time.Duration(i) * 24 * time.Hour),
				SaleType:   domain.SaleTypeCash,
				Items:      []domain.SaleItem{{ProductID: "product_demo_soap", Quantity: 1, Price: decimal.NewFromInt(95)}},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert sales: %v", err)
	}

	to := day.Add(48 * time.Hour)
	sales, err := s.ListSales(ctx, domain.SaleFilter{StoreID: SeedStoreID, From: &day, To: &to})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 2 || sales[0].ID != "sale_b" {
		t.Fatalf("unexpected sales %+v", sales)
	}
	if sales[0].ShopName != "City Mart" || sales[0].SalesmanName != "Bilal" || sales[0].Items[0].ProductName != "Soap Bar" {
		t.Fatalf("sale not hydrated: %+v", sales[0])
	}

	sales, err = s.ListSales(ctx, domain.SaleFilter{StoreID: SeedStoreID, ShopID: "shop_demo_1"})
	if err != nil || len(sales) != 2 {
		t.Fatalf("expected 2 sales for shop_demo_1, got %d (%v)", len(sales), err)
	}

	if err := s.DeleteProduct(ctx, "product_demo_soap"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected referenced product delete to conflict, got %v", err)
	}
	if err := s.DeleteSalesman(ctx, "salesman_demo_1"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected referenced salesman delete to conflict, got %v", err)
	}
	if err := s.DeleteSalesman(ctx, "salesman_demo_2"); err != nil {
		t.Fatalf("delete unused salesman: %v", err)
	}
}
