package service

import (
	"context"
	"testing"

	"salesdesk/backend/internal/apperr"
	"salesdesk/backend/internal/domain"
)

func adminOf(storeID string) context.Context {
	return WithActor(context.Background(), domain.Actor{Subject: "admin", StoreID: storeID, Role: domain.RoleAdmin})
}

func userOf(storeID string) context.Context {
	return WithActor(context.Background(), domain.Actor{Subject: storeID, StoreID: storeID, Role: domain.RoleStore})
}

func TestCreditDecreaseNeedsAdmin(t *testing.T) {
	f := newFixture(t)
	f.createSale(t, 3, func(r *domain.SaleCreateRequest) { r.SaleType = domain.SaleTypeCredit })

	_, err := f.svc.UpdateShop(userOf("store_a"), "shop_a1", domain.ShopUpdateRequest{CreditDecrease: decPtr("100")})
	expectCode(t, err, apperr.CodeForbidden)

	shop, err := f.svc.UpdateShop(adminOf("store_a"), "shop_a1", domain.ShopUpdateRequest{CreditDecrease: decPtr("100")})
	if err != nil {
		t.Fatalf("admin credit decrease: %v", err)
	}
	if !shop.Credit.Equal(dec("200")) {
		t.Fatalf("expected credit 200, got %s", shop.Credit)
	}
}

func TestCreditDecreaseCannotGoBelowZero(t *testing.T) {
	f := newFixture(t)
	f.createSale(t, 1, func(r *domain.SaleCreateRequest) { r.SaleType = domain.SaleTypeCredit })

	_, err := f.svc.UpdateShop(adminOf("store_a"), "shop_a1", domain.ShopUpdateRequest{
		Name:           strPtr("Renamed"),
		CreditDecrease: decPtr("100.01"),
	})
	expectCode(t, err, apperr.CodeValidation)
	if apperr.As(err).Message() != "cannot decrease credit below zero" {
		t.Fatalf("unexpected message %q", apperr.As(err).Message())
	}
	shop := f.shop(t, "shop_a1")
	if shop.Name != "Corner Shop" || !shop.Credit.Equal(dec("100")) {
		t.Fatalf("rejected update must not apply, got %+v", shop)
	}
}

// Once an admin has written credit off, deleting the sale that created it
// would push the ledger negative and is refused.
func TestDeleteAfterCreditWriteOffIsRefused(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, 1, func(r *domain.SaleCreateRequest) { r.SaleType = domain.SaleTypeCredit })
	if _, err := f.svc.UpdateShop(adminOf("store_a"), "shop_a1", domain.ShopUpdateRequest{CreditDecrease: decPtr("60")}); err != nil {
		t.Fatalf("write off: %v", err)
	}

	err := f.svc.DeleteSale(adminOf("store_a"), sale.ID)
	expectCode(t, err, apperr.CodeValidation)
	if got := f.stock(t, "product_a"); got != 9 {
		t.Fatalf("refused delete restored stock to %d", got)
	}
}

func TestUpdateShopNeedsAField(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateShop(userOf("store_a"), "shop_a1", domain.ShopUpdateRequest{})
	expectCode(t, err, apperr.CodeValidation)

	shop, err := f.svc.UpdateShop(userOf("store_a"), "shop_a1", domain.ShopUpdateRequest{Phone: strPtr(" 0300-999 ")})
	if err != nil {
		t.Fatalf("update phone: %v", err)
	}
	if shop.Phone != "0300-999" {
		t.Fatalf("expected trimmed phone, got %q", shop.Phone)
	}
}

func TestCatalogIsScopedToTheCallerStore(t *testing.T) {
	f := newFixture(t)
	ctx := userOf("store_b")

	if _, err := f.svc.GetShop(ctx, "shop_a1"); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected foreign shop to be not found, got %v", err)
	}
	if _, err := f.svc.GetProduct(ctx, "product_a"); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected foreign product to be not found, got %v", err)
	}
	if _, err := f.svc.ListShops(ctx, "store_a"); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected foreign shop list to be not found, got %v", err)
	}
	shops, err := f.svc.ListShops(ctx, "store_b")
	if err != nil || len(shops) != 1 {
		t.Fatalf("expected own shop, got %v (%v)", shops, err)
	}
}

func TestProductRestockAndRename(t *testing.T) {
	f := newFixture(t)
	ctx := userOf("store_a")
	change := 15

	product, err := f.svc.UpdateProduct(ctx, "product_a", domain.ProductUpdateRequest{
		Name:        strPtr("Green Tea"),
		Price:       decPtr("120.456"),
		StockChange: &change,
	})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if product.Name != "Green Tea" || !product.Price.Equal(dec("120.46")) || product.Stock != 25 {
		t.Fatalf("unexpected product %+v", product)
	}

	negative := -3
	_, err = f.svc.UpdateProduct(ctx, "product_a", domain.ProductUpdateRequest{StockChange: &negative})
	expectCode(t, err, apperr.CodeValidation)
}

func TestRejectedProductUpdateLeavesProductUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := userOf("store_a")

	zero := 0
	_, err := f.svc.UpdateProduct(ctx, "product_a", domain.ProductUpdateRequest{
		Name:        strPtr("Renamed"),
		Price:       decPtr("250"),
		StockChange: &zero,
	})
	expectCode(t, err, apperr.CodeValidation)

	_, err = f.svc.UpdateProduct(ctx, "product_a", domain.ProductUpdateRequest{
		Name:  strPtr("Renamed"),
		Price: decPtr("-1"),
	})
	expectCode(t, err, apperr.CodeValidation)

	product, err := f.svc.GetProduct(ctx, "product_a")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Name != "Tea" || !product.Price.Equal(dec("100")) || product.Stock != 10 {
		t.Fatalf("rejected update must not apply, got %+v", product)
	}
}

func TestReferencedRecordsCannotBeDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := adminOf("store_a")
	f.createSale(t, 1)

	expectCode(t, f.svc.DeleteProduct(ctx, "product_a"), apperr.CodeConflict)
	expectCode(t, f.svc.DeleteSalesman(ctx, "salesman_a"), apperr.CodeConflict)

	if err := f.svc.DeleteProduct(ctx, "product_b"); err != nil {
		t.Fatalf("delete unused product: %v", err)
	}
	if err := f.svc.DeleteSalesman(ctx, "salesman_a2"); err != nil {
		t.Fatalf("delete unused salesman: %v", err)
	}
}

func TestCreateCatalogEntries(t *testing.T) {
	f := newFixture(t)
	ctx := userOf("store_a")

	shop, err := f.svc.CreateShop(ctx, "store_a", domain.ShopCreateRequest{Name: "  New Shop ", Phone: "1"})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}
	if shop.Name != "New Shop" || shop.FirstSaleDate != nil || !shop.Credit.IsZero() {
		t.Fatalf("unexpected shop %+v", shop)
	}

	if _, err := f.svc.CreateProduct(ctx, "store_a", domain.ProductCreateRequest{Name: "Oil", Price: dec("-1")}); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected negative price to be rejected, got %v", err)
	}

	sm, err := f.svc.CreateSalesman(ctx, "store_a", domain.SalesmanRequest{Name: "Usman"})
	if err != nil {
		t.Fatalf("create salesman: %v", err)
	}
	renamed, err := f.svc.UpdateSalesman(ctx, sm.ID, domain.SalesmanRequest{Name: "Usman K"})
	if err != nil || renamed.Name != "Usman K" {
		t.Fatalf("rename salesman: %+v (%v)", renamed, err)
	}

	st, err := f.svc.CreateStore(context.Background(), "Third", "Road 1", "hash")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if _, err := f.svc.GetStore(userOf(st.ID), st.ID); err != nil {
		t.Fatalf("get own store: %v", err)
	}
	if _, err := f.svc.GetStore(userOf("store_a"), st.ID); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected other store hidden, got %v", err)
	}
}
