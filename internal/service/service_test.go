package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salesdesk/backend/internal/apperr"
	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/store"
	"salesdesk/backend/internal/store/memory"
)

type fixture struct {
	svc  *Service
	repo *memory.Store
	now  time.Time
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}

// newFixture seeds two tenants. store_a owns two shops, one salesman and two
// products; store_b owns one of each.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.New()
	return newFixtureWith(t, repo, repo)
}

func newFixtureWith(t *testing.T, repo store.Repository, seed *memory.Store) *fixture {
	t.Helper()
	f := &fixture{repo: seed, now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)}
	f.svc = New(repo, WithClock(func() time.Time { return f.now }), WithLocation(time.UTC))

	ctx := context.Background()
	must := func(err error) {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	for _, id := range []string{"store_a", "store_b"} {
		_, err := seed.CreateStore(ctx, domain.Store{ID: id, Name: strings.ToUpper(id), PasswordHash: "x"})
		must(err)
	}
	for _, shop := range []domain.Shop{
		{ID: "shop_a1", StoreID: "store_a", Name: "Corner Shop"},
		{ID: "shop_a2", StoreID: "store_a", Name: "Bazaar Mart"},
		{ID: "shop_b1", StoreID: "store_b", Name: "Other Tenant Shop"},
	} {
		shop.CashPaid = decimal.Zero
		shop.Credit = decimal.Zero
		_, err := seed.CreateShop(ctx, shop)
		must(err)
	}
	for _, sm := range []domain.Salesman{
		{ID: "salesman_a", StoreID: "store_a", Name: "Bilal"},
		{ID: "salesman_a2", StoreID: "store_a", Name: "Hamza"},
		{ID: "salesman_b", StoreID: "store_b", Name: "Zain"},
	} {
		_, err := seed.CreateSalesman(ctx, sm)
		must(err)
	}
	for _, p := range []domain.Product{
		{ID: "product_a", StoreID: "store_a", Name: "Tea", Price: dec("100"), Stock: 10},
		{ID: "product_b", StoreID: "store_a", Name: "Sugar", Price: dec("50"), Stock: 20},
		{ID: "product_x", StoreID: "store_b", Name: "Foreign", Price: dec("10"), Stock: 5},
	} {
		_, err := seed.CreateProduct(ctx, p)
		must(err)
	}
	return f
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.repo.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product %s: %v", productID, err)
	}
	return p.Stock
}

func (f *fixture) shop(t *testing.T, shopID string) domain.Shop {
	t.Helper()
	shop, err := f.repo.GetShop(context.Background(), shopID)
	if err != nil {
		t.Fatalf("get shop %s: %v", shopID, err)
	}
	return *shop
}

func (f *fixture) createSale(t *testing.T, qty int, opts ...func(*domain.SaleCreateRequest)) domain.Sale {
	t.Helper()
	req := domain.SaleCreateRequest{
		StoreID:    "store_a",
		ShopID:     "shop_a1",
		SalesmanID: "salesman_a",
		Items:      []domain.SaleItemInput{{ProductID: "product_a", Quantity: qty, Price: dec("100")}},
	}
	for _, opt := range opts {
		opt(&req)
	}
	sale, err := f.svc.CreateSale(context.Background(), req)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	return sale
}

func expectCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !apperr.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestSaleLifecycleKeepsStockAndCashInStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sale := f.createSale(t, 3)
	if got := f.stock(t, "product_a"); got != 7 {
		t.Fatalf("expected stock 7 after create, got %d", got)
	}
	if !sale.Total.Equal(dec("300")) || sale.SaleType != domain.SaleTypeCash {
		t.Fatalf("unexpected sale %+v", sale)
	}
	if sale.ShopName != "Corner Shop" || sale.SalesmanName != "Bilal" || sale.Items[0].ProductName != "Tea" {
		t.Fatalf("expected hydrated names, got %+v", sale)
	}
	shop := f.shop(t, "shop_a1")
	if !shop.CashPaid.Equal(dec("300")) || shop.FirstSaleDate == nil {
		t.Fatalf("expected cash 300 and a first sale date, got %+v", shop)
	}

	edited, err := f.svc.EditSale(ctx, sale.ID, domain.SaleEditRequest{
		Items: []domain.SaleItemInput{{ProductID: "product_a", Quantity: 5, Price: dec("100")}},
	})
	if err != nil {
		t.Fatalf("edit sale: %v", err)
	}
	if got := f.stock(t, "product_a"); got != 5 {
		t.Fatalf("expected stock 5 after edit, got %d", got)
	}
	if !edited.Total.Equal(dec("500")) || !f.shop(t, "shop_a1").CashPaid.Equal(dec("500")) {
		t.Fatalf("expected total and cash 500, got total %s", edited.Total)
	}

	if err := f.svc.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	if got := f.stock(t, "product_a"); got != 10 {
		t.Fatalf("expected stock restored to 10, got %d", got)
	}
	if !f.shop(t, "shop_a1").CashPaid.IsZero() {
		t.Fatalf("expected cash back to zero")
	}
	_, err = f.svc.GetSale(ctx, sale.ID)
	expectCode(t, err, apperr.CodeNotFound)
}

func TestEditSwitchingCashToCreditMovesTheAmount(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, 2)

	credit := domain.SaleTypeCredit
	_, err := f.svc.EditSale(context.Background(), sale.ID, domain.SaleEditRequest{
		Items:    []domain.SaleItemInput{{ProductID: "product_a", Quantity: 2, Price: dec("100")}},
		SaleType: &credit,
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	shop := f.shop(t, "shop_a1")
	if !shop.CashPaid.IsZero() || !shop.Credit.Equal(dec("200")) {
		t.Fatalf("expected cash 0 / credit 200, got %s / %s", shop.CashPaid, shop.Credit)
	}
	if got := f.stock(t, "product_a"); got != 8 {
		t.Fatalf("stock must not move on a type switch, got %d", got)
	}
}

func TestCreateRefusesToOversell(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSale(context.Background(), domain.SaleCreateRequest{
		StoreID:    "store_a",
		ShopID:     "shop_a1",
		SalesmanID: "salesman_a",
		Items: []domain.SaleItemInput{
			{ProductID: "product_b", Quantity: 1, Price: dec("50")},
			{ProductID: "product_a", Quantity: 11, Price: dec("100")},
		},
	})
	expectCode(t, err, apperr.CodeValidation)
	if !strings.Contains(err.Error(), `Not enough stock for product "Tea". Available: 10, Requested: 11`) {
		t.Fatalf("unexpected message: %v", err)
	}
	if f.stock(t, "product_a") != 10 || f.stock(t, "product_b") != 20 {
		t.Fatalf("stock changed on a rejected sale")
	}
	sales, _ := f.repo.ListSales(context.Background(), domain.SaleFilter{StoreID: "store_a"})
	if len(sales) != 0 {
		t.Fatalf("expected no sales, got %d", len(sales))
	}
}

func TestEditMeasuresStockAgainstWhatTheSaleHolds(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, 8)

	_, err := f.svc.EditSale(context.Background(), sale.ID, domain.SaleEditRequest{
		Items: []domain.SaleItemInput{{ProductID: "product_a", Quantity: 10, Price: dec("100")}},
	})
	if err != nil {
		t.Fatalf("raising to the full effective stock must succeed: %v", err)
	}
	if got := f.stock(t, "product_a"); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}

	_, err = f.svc.EditSale(context.Background(), sale.ID, domain.SaleEditRequest{
		Items: []domain.SaleItemInput{{ProductID: "product_a", Quantity: 11, Price: dec("100")}},
	})
	expectCode(t, err, apperr.CodeValidation)
	if got := f.stock(t, "product_a"); got != 0 {
		t.Fatalf("rejected edit moved stock to %d", got)
	}
}

func TestEditSwappingProductsRestoresTheDroppedOne(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, 4)

	_, err := f.svc.EditSale(context.Background(), sale.ID, domain.SaleEditRequest{
		Items: []domain.SaleItemInput{{ProductID: "product_b", Quantity: 6, Price: dec("50")}},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if f.stock(t, "product_a") != 10 || f.stock(t, "product_b") != 14 {
		t.Fatalf("unexpected stock a=%d b=%d", f.stock(t, "product_a"), f.stock(t, "product_b"))
	}
	if !f.shop(t, "shop_a1").CashPaid.Equal(dec("300")) {
		t.Fatalf("expected cash 300, got %s", f.shop(t, "shop_a1").CashPaid)
	}
}

func TestEditMovingSaleToAnotherShop(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, 1, func(r *domain.SaleCreateRequest) { r.SaleType = domain.SaleTypeCredit })

	edited, err := f.svc.EditSale(context.Background(), sale.ID, domain.SaleEditRequest{
		ShopID: strPtr("shop_a2"),
		Items:  []domain.SaleItemInput{{ProductID: "product_a", Quantity: 2, Price: dec("100")}},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.ShopID != "shop_a2" || edited.ShopName != "Bazaar Mart" {
		t.Fatalf("expected sale moved to shop_a2, got %+v", edited)
	}
	oldShop, newShop := f.shop(t, "shop_a1"), f.shop(t, "shop_a2")
	if !oldShop.Credit.IsZero() || !newShop.Credit.Equal(dec("200")) {
		t.Fatalf("expected credit 0 -> 200, got %s / %s", oldShop.Credit, newShop.Credit)
	}
	if newShop.FirstSaleDate == nil || !newShop.FirstSaleDate.Equal(sale.SaleTime) {
		t.Fatalf("expected first sale date on the new shop, got %v", newShop.FirstSaleDate)
	}
	if oldShop.FirstSaleDate == nil {
		t.Fatalf("old shop keeps its first sale date")
	}
}

func TestDiscountOnlyEditAdjustsTheLedger(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, 3)

	edited, err := f.svc.EditSale(context.Background(), sale.ID, domain.SaleEditRequest{
		Items:    []domain.SaleItemInput{{ProductID: "product_a", Quantity: 3, Price: dec("100")}},
		Discount: decPtr("10"),
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.Total.Equal(dec("270")) || !f.shop(t, "shop_a1").CashPaid.Equal(dec("270")) {
		t.Fatalf("expected 270 everywhere, got total %s cash %s", edited.Total, f.shop(t, "shop_a1").CashPaid)
	}
}

func TestEditAndDeleteAreLimitedToTheSaleDay(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, 2)
	f.now = f.now.Add(24 * time.Hour)

	_, err := f.svc.EditSale(context.Background(), sale.ID, domain.SaleEditRequest{
		Items: []domain.SaleItemInput{{ProductID: "product_a", Quantity: 1, Price: dec("100")}},
	})
	expectCode(t, err, apperr.CodeForbidden)
	if !strings.Contains(err.Error(), "edited on the same day") {
		t.Fatalf("unexpected message: %v", err)
	}

	err = f.svc.DeleteSale(context.Background(), sale.ID)
	expectCode(t, err, apperr.CodeForbidden)

	if got := f.stock(t, "product_a"); got != 8 {
		t.Fatalf("stock moved after refused mutations: %d", got)
	}
}

func TestSameDayGateRunsBeforeInputChecks(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, 1)
	f.now = f.now.AddDate(0, 0, 2)

	_, err := f.svc.EditSale(context.Background(), sale.ID, domain.SaleEditRequest{})
	expectCode(t, err, apperr.CodeForbidden)
}

func TestBackdatedSaleCannotBeEdited(t *testing.T) {
	f := newFixture(t)
	yesterday := f.now.Add(-24 * time.Hour)
	sale := f.createSale(t, 1, func(r *domain.SaleCreateRequest) { r.SaleTime = &yesterday })

	err := f.svc.DeleteSale(context.Background(), sale.ID)
	expectCode(t, err, apperr.CodeForbidden)
}

func TestCreateRejectsReferencesOutsideTheStore(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(*domain.SaleCreateRequest){
		"foreign shop":     func(r *domain.SaleCreateRequest) { r.ShopID = "shop_b1" },
		"missing shop":     func(r *domain.SaleCreateRequest) { r.ShopID = "shop_missing" },
		"foreign salesman": func(r *domain.SaleCreateRequest) { r.SalesmanID = "salesman_b" },
		"foreign product": func(r *domain.SaleCreateRequest) {
			r.Items = []domain.SaleItemInput{{ProductID: "product_x", Quantity: 1, Price: dec("10")}}
		},
		"duplicate product": func(r *domain.SaleCreateRequest) {
			r.Items = append(r.Items, domain.SaleItemInput{ProductID: "product_a", Quantity: 1, Price: dec("100")})
		},
		"discount above 100": func(r *domain.SaleCreateRequest) { r.Discount = decPtr("100.5") },
		"unknown sale type":  func(r *domain.SaleCreateRequest) { r.SaleType = "BARTER" },
		"zero quantity": func(r *domain.SaleCreateRequest) {
			r.Items = []domain.SaleItemInput{{ProductID: "product_a", Quantity: 0, Price: dec("100")}}
		},
		"no items": func(r *domain.SaleCreateRequest) { r.Items = nil },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := domain.SaleCreateRequest{
				StoreID:    "store_a",
				ShopID:     "shop_a1",
				SalesmanID: "salesman_a",
				Items:      []domain.SaleItemInput{{ProductID: "product_a", Quantity: 1, Price: dec("100")}},
			}
			mutate(&req)
			_, err := f.svc.CreateSale(context.Background(), req)
			expectCode(t, err, apperr.CodeValidation)
		})
	}
	if got := f.stock(t, "product_a"); got != 10 {
		t.Fatalf("rejected creates moved stock to %d", got)
	}
}

func TestCallerOfAnotherStoreSeesNotFound(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, 1)
	other := WithActor(context.Background(), domain.Actor{Subject: "store_b", StoreID: "store_b", Role: domain.RoleAdmin})

	_, err := f.svc.GetSale(other, sale.ID)
	expectCode(t, err, apperr.CodeNotFound)

	_, err = f.svc.EditSale(other, sale.ID, domain.SaleEditRequest{
		Items: []domain.SaleItemInput{{ProductID: "product_a", Quantity: 1, Price: dec("100")}},
	})
	expectCode(t, err, apperr.CodeNotFound)

	expectCode(t, f.svc.DeleteSale(other, sale.ID), apperr.CodeNotFound)

	_, err = f.svc.CreateSale(other, domain.SaleCreateRequest{StoreID: "store_a"})
	expectCode(t, err, apperr.CodeNotFound)
}

func TestCallerSuppliedPriceIsKept(t *testing.T) {
	f := newFixture(t)
	sale := f.createSale(t, 2, func(r *domain.SaleCreateRequest) {
		r.Items[0].Price = dec("87.5")
	})
	if !sale.Items[0].Price.Equal(dec("87.5")) || !sale.Total.Equal(dec("175")) {
		t.Fatalf("expected caller price to be charged, got %+v", sale)
	}
}

func TestSubCentPriceIsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSale(context.Background(), domain.SaleCreateRequest{
		StoreID:    "store_a",
		ShopID:     "shop_a1",
		SalesmanID: "salesman_a",
		Items:      []domain.SaleItemInput{{ProductID: "product_a", Quantity: 1, Price: dec("99.999")}},
	})
	expectCode(t, err, apperr.CodeValidation)
	if got := f.stock(t, "product_a"); got != 10 {
		t.Fatalf("rejected sale moved stock to %d", got)
	}

	sale := f.createSale(t, 1, func(r *domain.SaleCreateRequest) {
		r.Items[0].Price = dec("99.900")
	})
	if !sale.Items[0].Price.Equal(dec("99.9")) {
		t.Fatalf("expected trailing zeros to be accepted, got %s", sale.Items[0].Price)
	}
}

type failingTx struct {
	store.Tx
}

func (failingTx) AdjustShopBalance(context.Context, string, decimal.Decimal, decimal.Decimal) error {
	return errors.New("disk full")
}

type failingRepo struct {
	*memory.Store
}

func (r failingRepo) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return r.Store.WithinTx(ctx, func(tx store.Tx) error {
		return fn(failingTx{Tx: tx})
	})
}

func TestStorageFailureLeavesNoPartialEffects(t *testing.T) {
	seed := memory.New()
	f := newFixtureWith(t, failingRepo{Store: seed}, seed)

	_, err := f.svc.CreateSale(context.Background(), domain.SaleCreateRequest{
		StoreID:    "store_a",
		ShopID:     "shop_a1",
		SalesmanID: "salesman_a",
		Items:      []domain.SaleItemInput{{ProductID: "product_a", Quantity: 4, Price: dec("100")}},
	})
	expectCode(t, err, apperr.CodePersistence)

	if got := f.stock(t, "product_a"); got != 10 {
		t.Fatalf("expected stock rolled back to 10, got %d", got)
	}
	if shop := f.shop(t, "shop_a1"); shop.FirstSaleDate != nil {
		t.Fatalf("expected first sale date rolled back")
	}
	sales, _ := seed.ListSales(context.Background(), domain.SaleFilter{StoreID: "store_a"})
	if len(sales) != 0 {
		t.Fatalf("expected no sales after rollback, got %d", len(sales))
	}
}

type conflictingRepo struct {
	*memory.Store
}

func (r conflictingRepo) WithinTx(context.Context, func(tx store.Tx) error) error {
	return fmt.Errorf("commit: %w", store.ErrSerialization)
}

func TestSerializationConflictIsRetryable(t *testing.T) {
	seed := memory.New()
	f := newFixtureWith(t, conflictingRepo{Store: seed}, seed)

	_, err := f.svc.CreateSale(context.Background(), domain.SaleCreateRequest{
		StoreID:    "store_a",
		ShopID:     "shop_a1",
		SalesmanID: "salesman_a",
		Items:      []domain.SaleItemInput{{ProductID: "product_a", Quantity: 1, Price: dec("100")}},
	})
	expectCode(t, err, apperr.CodeTxConflict)
	if !apperr.MetadataFor(apperr.CodeOf(err)).Retryable {
		t.Fatalf("expected transaction conflict to be retryable")
	}

	faulty := New(failingRepo{Store: seed}, WithClock(func() time.Time { return f.now }), WithLocation(time.UTC))
	_, err = faulty.CreateSale(context.Background(), domain.SaleCreateRequest{
		StoreID:    "store_a",
		ShopID:     "shop_a1",
		SalesmanID: "salesman_a",
		Items:      []domain.SaleItemInput{{ProductID: "product_a", Quantity: 1, Price: dec("100")}},
	})
	expectCode(t, err, apperr.CodePersistence)
	if apperr.MetadataFor(apperr.CodeOf(err)).Retryable {
		t.Fatalf("expected plain storage fault not to be retryable")
	}
}

func TestConcurrentCreatesNeverOversell(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateSale(context.Background(), domain.SaleCreateRequest{
				StoreID:    "store_a",
				ShopID:     "shop_a1",
				SalesmanID: "salesman_a",
				Items:      []domain.SaleItemInput{{ProductID: "product_a", Quantity: 1, Price: dec("100")}},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 sales to fit the stock, got %d", succeeded)
	}
	if got := f.stock(t, "product_a"); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
	if !f.shop(t, "shop_a1").CashPaid.Equal(dec("1000")) {
		t.Fatalf("expected cash 1000, got %s", f.shop(t, "shop_a1").CashPaid)
	}
}

// Random create/edit/delete sequences must leave stock and both shop buckets
// equal to what the surviving sales imply.
func TestRandomOperationsKeepLedgersReconstructible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	shops := []string{"shop_a1", "shop_a2"}
	types := []domain.SaleType{domain.SaleTypeCash, domain.SaleTypeCredit}
	var live []string

	randomItems := func() []domain.SaleItemInput {
		items := []domain.SaleItemInput{{ProductID: "product_a", Quantity: 1 + rng.Intn(2), Price: dec("100")}}
		if rng.Intn(2) == 0 {
			items = append(items, domain.SaleItemInput{ProductID: "product_b", Quantity: 1 + rng.Intn(3), Price: dec("49.99")})
		}
		return items
	}

	for step := 0; step < 300; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			sale, err := f.svc.CreateSale(ctx, domain.SaleCreateRequest{
				StoreID:    "store_a",
				ShopID:     shops[rng.Intn(2)],
				SalesmanID: "salesman_a",
				Items:      randomItems(),
				Discount:   decPtr(fmt.Sprintf("%d", rng.Intn(30))),
				SaleType:   types[rng.Intn(2)],
			})
			if err == nil {
				live = append(live, sale.ID)
			} else if !apperr.IsCode(err, apperr.CodeValidation) {
				t.Fatalf("step %d create: %v", step, err)
			}
		case op == 1:
			saleType := types[rng.Intn(2)]
			shopID := shops[rng.Intn(2)]
			_, err := f.svc.EditSale(ctx, live[rng.Intn(len(live))], domain.SaleEditRequest{
				ShopID:   &shopID,
				Items:    randomItems(),
				Discount: decPtr(fmt.Sprintf("%d.5", rng.Intn(40))),
				SaleType: &saleType,
			})
			if err != nil && !apperr.IsCode(err, apperr.CodeValidation) {
				t.Fatalf("step %d edit: %v", step, err)
			}
		default:
			i := rng.Intn(len(live))
			if err := f.svc.DeleteSale(ctx, live[i]); err != nil {
				t.Fatalf("step %d delete: %v", step, err)
			}
			live = append(live[:i], live[i+1:]...)
		}
	}

	sales, err := f.repo.ListSales(ctx, domain.SaleFilter{StoreID: "store_a"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sold := map[string]int{}
	cash := map[string]decimal.Decimal{}
	credit := map[string]decimal.Decimal{}
	for _, sale := range sales {
		for _, item := range sale.Items {
			sold[item.ProductID] += item.Quantity
		}
		if sale.SaleType == domain.SaleTypeCash {
			cash[sale.ShopID] = cash[sale.ShopID].Add(sale.Total)
		} else {
			credit[sale.ShopID] = credit[sale.ShopID].Add(sale.Total)
		}
	}
	if f.stock(t, "product_a")+sold["product_a"] != 10 || f.stock(t, "product_b")+sold["product_b"] != 20 {
		t.Fatalf("stock not conserved: a=%d+%d b=%d+%d",
			f.stock(t, "product_a"), sold["product_a"], f.stock(t, "product_b"), sold["product_b"])
	}
	for _, id := range shops {
		shop := f.shop(t, id)
		if !shop.CashPaid.Equal(cash[id]) || !shop.Credit.Equal(credit[id]) {
			t.Fatalf("shop %s ledger %s/%s, sales imply %s/%s", id, shop.CashPaid, shop.Credit, cash[id], credit[id])
		}
	}
}
