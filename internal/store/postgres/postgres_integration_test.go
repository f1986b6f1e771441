package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/store"
)

func TestSaleTransactionRoundTrip(t *testing.T) {
	databaseURL := os.Getenv("SALESDESK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SALESDESK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := Migrate(ctx, s.DB(), "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	storeID := fmt.Sprintf("store_it_%d", stamp)
	shopID := fmt.Sprintf("shop_it_%d", stamp)
	salesmanID := fmt.Sprintf("salesman_it_%d", stamp)
	productID := fmt.Sprintf("product_it_%d", stamp)
	saleID := fmt.Sprintf("sale_it_%d", stamp)
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM salesmen WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shops WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stores WHERE id = $1`, storeID)
	})

	if _, err := s.CreateStore(ctx, domain.Store{ID: storeID, Name: "IT Store", PasswordHash: "x", CreatedAt: now}); err != nil {
		t.Fatalf("create store: %v", err)
	}
	if _, err := s.CreateShop(ctx, domain.Shop{ID: shopID, StoreID: storeID, Name: "IT Shop", CashPaid: decimal.Zero, Credit: decimal.Zero, CreatedAt: now}); err != nil {
		t.Fatalf("create shop: %v", err)
	}
	if _, err := s.CreateSalesman(ctx, domain.Salesman{ID: salesmanID, StoreID: storeID, Name: "IT Salesman", CreatedAt: now}); err != nil {
		t.Fatalf("create salesman: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{ID: productID, StoreID: storeID, Name: "IT Product", Price: decimal.RequireFromString("12.50"), Stock: 10, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	sale := domain.Sale{
		ID: saleID, StoreID: storeID, ShopID: shopID, SalesmanID: salesmanID,
		SaleTime: now, Discount: decimal.Zero, Total: decimal.RequireFromString("37.50"),
		SaleType: domain.SaleTypeCredit, CreatedAt: now, UpdatedAt: now,
		Items: []domain.SaleItem{{ProductID: productID, Quantity: 3, Price: decimal.RequireFromString("12.50")}},
	}
	err = s.WithinTx(ctx, func(tx store.Tx) error {
		products, err := tx.LockProducts(ctx, storeID, []string{productID, "missing"})
		if err != nil {
			return err
		}
		if len(products) != 1 {
			return fmt.Errorf("expected one locked product, got %d", len(products))
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		if err := tx.AdjustStock(ctx, productID, -3); err != nil {
			return err
		}
		if err := tx.MarkFirstSale(ctx, shopID, now); err != nil {
			return err
		}
		return tx.AdjustShopBalance(ctx, shopID, decimal.Zero, sale.Total)
	})
	if err != nil {
		t.Fatalf("create sale tx: %v", err)
	}

	got, err := s.GetSale(ctx, saleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if got.ShopName != "IT Shop" || len(got.Items) != 1 || got.Items[0].ProductName != "IT Product" {
		t.Fatalf("unexpected sale %+v", got)
	}
	if !got.Total.Equal(sale.Total) {
		t.Fatalf("expected total %s, got %s", sale.Total, got.Total)
	}

	err = s.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.AdjustStock(ctx, productID, 3); err != nil {
			return err
		}
		return tx.AdjustStock(ctx, productID, -100)
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 7 {
		t.Fatalf("expected rolled back stock 7, got %d", product.Stock)
	}

	err = s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.AdjustShopBalance(ctx, shopID, decimal.Zero, decimal.RequireFromString("-40"))
	})
	if !errors.Is(err, store.ErrNegativeBalance) {
		t.Fatalf("expected negative balance, got %v", err)
	}

	if err := s.DeleteProduct(ctx, productID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict deleting referenced product, got %v", err)
	}

	from := now.Add(-time.Minute)
	sales, err := s.ListSales(ctx, domain.SaleFilter{StoreID: storeID, ShopID: shopID, From: &from})
	if err != nil || len(sales) != 1 {
		t.Fatalf("expected one listed sale, got %d (%v)", len(sales), err)
	}
}
