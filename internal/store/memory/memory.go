package memory

import (
	"context"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	stores   map[string]domain.Store
	shops    map[string]domain.Shop
	salesmen map[string]domain.Salesman
	products map[string]domain.Product
	sales    map[string]domain.Sale
}

func New() *Store {
	return &Store{
		stores:   make(map[string]domain.Store),
		shops:    make(map[string]domain.Shop),
		salesmen: make(map[string]domain.Salesman),
		products: make(map[string]domain.Product),
		sales:    make(map[string]domain.Sale),
	}
}

const SeedStoreID = "store_demo"

// NewSeeded returns a store holding one demo tenant. The store password comes
// from SEED_STORE_PASSWORD and falls back to a dev default.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	password := os.Getenv("SEED_STORE_PASSWORD")
	if password == "" {
		password = "demo-store-1"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic("memory: hash seed password: " + err.Error())
	}

	s.stores[SeedStoreID] = domain.Store{ID: SeedStoreID, Name: "Demo Distribution", Address: "12 Mall Road", PasswordHash: string(hash), CreatedAt: now}
	for _, shop := range []domain.Shop{
		{ID: "shop_demo_1", Name: "Al-Madina General Store", Address: "Block A, Main Bazaar", Phone: "0300-1111111"},
		{ID: "shop_demo_2", Name: "City Mart", Address: "Canal View", Phone: "0300-2222222"},
	} {
		shop.StoreID = SeedStoreID
		shop.CashPaid = decimal.Zero
		shop.Credit = decimal.Zero
		shop.CreatedAt = now
		s.shops[shop.ID] = shop
	}
	for _, sm := range []domain.Salesman{
		{ID: "salesman_demo_1", Name: "Bilal"},
		{ID: "salesman_demo_2", Name: "Hamza"},
	} {
		sm.StoreID = SeedStoreID
		sm.CreatedAt = now
		s.salesmen[sm.ID] = sm
	}
	for _, p := range []domain.Product{
		{ID: "product_demo_tea", Name: "Tea 950g", Price: decimal.RequireFromString("1150"), Stock: 120},
		{ID: "product_demo_sugar", Name: "Sugar 1kg", Price: decimal.RequireFromString("155"), Stock: 300},
		{ID: "product_demo_oil", Name: "Cooking Oil 5L", Price: decimal.RequireFromString("2890.50"), Stock: 60},
		{ID: "product_demo_soap", Name: "Soap Bar", Price: decimal.RequireFromString("95"), Stock: 500},
	} {
		p.StoreID = SeedStoreID
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return s
}

// WithinTx runs fn under the write lock. If fn fails every map is restored
// from the snapshot taken before it ran.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	shops    map[string]domain.Shop
	products map[string]domain.Product
	sales    map[string]domain.Sale
	salesmen map[string]domain.Salesman
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		shops:    maps.Clone(s.shops),
		products: maps.Clone(s.products),
		sales:    maps.Clone(s.sales),
		salesmen: maps.Clone(s.salesmen),
	}
}

func (s *Store) restore(snap snapshot) {
	s.shops = snap.shops
	s.products = snap.products
	s.sales = snap.sales
	s.salesmen = snap.salesmen
}

func (s *Store) CreateStore(_ context.Context, st domain.Store) (*domain.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stores[st.ID]; exists {
		return nil, store.ErrConflict
	}
	s.stores[st.ID] = st
	created := st
	return &created, nil
}

func (s *Store) GetStore(_ context.Context, id string) (*domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stores[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (s *Store) ListStores(_ context.Context) ([]domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Collect(maps.Values(s.stores))
	slices.SortFunc(out, func(a, b domain.Store) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) CreateShop(_ context.Context, shop domain.Shop) (*domain.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.shops[shop.ID]; exists {
		return nil, store.ErrConflict
	}
	s.shops[shop.ID] = shop
	created := shop
	return &created, nil
}

func (s *Store) GetShop(_ context.Context, id string) (*domain.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shop, ok := s.shops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &shop, nil
}

func (s *Store) ListShops(_ context.Context, storeID string) ([]domain.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Shop, 0, len(s.shops))
	for _, shop := range s.shops {
		if shop.StoreID == storeID {
			out = append(out, shop)
		}
	}
	slices.SortFunc(out, func(a, b domain.Shop) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) CreateSalesman(_ context.Context, sm domain.Salesman) (*domain.Salesman, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesmen[sm.ID]; exists {
		return nil, store.ErrConflict
	}
	s.salesmen[sm.ID] = sm
	created := sm
	return &created, nil
}

func (s *Store) GetSalesman(_ context.Context, id string) (*domain.Salesman, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sm, ok := s.salesmen[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sm, nil
}

func (s *Store) ListSalesmen(_ context.Context, storeID string) ([]domain.Salesman, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Salesman, 0, len(s.salesmen))
	for _, sm := range s.salesmen {
		if sm.StoreID == storeID {
			out = append(out, sm)
		}
	}
	slices.SortFunc(out, func(a, b domain.Salesman) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) UpdateSalesman(_ context.Context, sm domain.Salesman) (*domain.Salesman, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.salesmen[sm.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.Name = sm.Name
	s.salesmen[sm.ID] = existing
	return &existing, nil
}

func (s *Store) DeleteSalesman(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.salesmen[id]; !ok {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		if sale.SalesmanID == id {
			return store.ErrConflict
		}
	}
	delete(s.salesmen, id)
	return nil
}

func (s *Store) CreateProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Stock < 0 {
		return nil, store.ErrInsufficientStock
	}
	if _, exists := s.products[p.ID]; exists {
		return nil, store.ErrConflict
	}
	s.products[p.ID] = p
	created := p
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, storeID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.StoreID == storeID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		for _, item := range sale.Items {
			if item.ProductID == id {
				return store.ErrConflict
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := s.hydrate(sale)
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, 64)
	for _, sale := range s.sales {
		if sale.StoreID != filter.StoreID {
			continue
		}
		if filter.ShopID != "" && sale.ShopID != filter.ShopID {
			continue
		}
		if filter.SalesmanID != "" && sale.SalesmanID != filter.SalesmanID {
			continue
		}
		if filter.From != nil && sale.SaleTime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.SaleTime.Before(*filter.To) {
			continue
		}
		out = append(out, s.hydrate(sale))
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		if c := b.SaleTime.Compare(a.SaleTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// hydrate copies a sale and fills in display names. Caller holds the lock.
func (s *Store) hydrate(sale domain.Sale) domain.Sale {
	out := cloneSale(sale)
	out.ShopName = s.shops[sale.ShopID].Name
	out.SalesmanName = s.salesmen[sale.SalesmanID].Name
	for i := range out.Items {
		out.Items[i].ProductName = s.products[out.Items[i].ProductID].Name
	}
	return out
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	dup.Items = slices.Clone(src.Items)
	return dup
}

type memTx struct {
	s *Store
}

func (t *memTx) GetSaleForUpdate(_ context.Context, id string) (*domain.Sale, error) {
	sale, ok := t.s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := t.s.hydrate(sale)
	return &out, nil
}

func (t *memTx) GetShopForUpdate(_ context.Context, id string) (*domain.Shop, error) {
	shop, ok := t.s.shops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &shop, nil
}

func (t *memTx) GetSalesman(_ context.Context, id string) (*domain.Salesman, error) {
	sm, ok := t.s.salesmen[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sm, nil
}

func (t *memTx) LockProducts(_ context.Context, storeID string, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		p, ok := t.s.products[id]
		if !ok || p.StoreID != storeID {
			continue
		}
		out[id] = p
	}
	return out, nil
}

func (t *memTx) InsertSale(_ context.Context, sale domain.Sale) error {
	if _, exists := t.s.sales[sale.ID]; exists {
		return store.ErrConflict
	}
	t.s.sales[sale.ID] = stripNames(sale)
	return nil
}

func (t *memTx) UpdateSaleHeader(_ context.Context, sale domain.Sale) error {
	existing, ok := t.s.sales[sale.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.ShopID = sale.ShopID
	existing.SalesmanID = sale.SalesmanID
	existing.Discount = sale.Discount
	existing.Total = sale.Total
	existing.SaleType = sale.SaleType
	existing.UpdatedAt = sale.UpdatedAt
	t.s.sales[sale.ID] = existing
	return nil
}

func (t *memTx) ReplaceSaleItems(_ context.Context, saleID string, items []domain.SaleItem) error {
	existing, ok := t.s.sales[saleID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Items = stripNames(domain.Sale{Items: items}).Items
	t.s.sales[saleID] = existing
	return nil
}

func (t *memTx) DeleteSale(_ context.Context, id string) error {
	if _, ok := t.s.sales[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.sales, id)
	return nil
}

func (t *memTx) AdjustStock(_ context.Context, productID string, delta int) error {
	p, ok := t.s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return store.ErrInsufficientStock
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	t.s.products[productID] = p
	return nil
}

func (t *memTx) AdjustShopBalance(_ context.Context, shopID string, cash decimal.Decimal, credit decimal.Decimal) error {
	shop, ok := t.s.shops[shopID]
	if !ok {
		return store.ErrNotFound
	}
	nextCash := shop.CashPaid.Add(cash)
	nextCredit := shop.Credit.Add(credit)
	if nextCash.IsNegative() || nextCredit.IsNegative() {
		return store.ErrNegativeBalance
	}
	shop.CashPaid = nextCash
	shop.Credit = nextCredit
	t.s.shops[shopID] = shop
	return nil
}

func (t *memTx) MarkFirstSale(_ context.Context, shopID string, at time.Time) error {
	shop, ok := t.s.shops[shopID]
	if !ok {
		return store.ErrNotFound
	}
	if shop.FirstSaleDate != nil {
		return nil
	}
	first := at
	shop.FirstSaleDate = &first
	t.s.shops[shopID] = shop
	return nil
}

func (t *memTx) UpdateShopDetails(_ context.Context, shop domain.Shop) error {
	existing, ok := t.s.shops[shop.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Name = shop.Name
	existing.Address = shop.Address
	existing.Phone = shop.Phone
	t.s.shops[shop.ID] = existing
	return nil
}

func (t *memTx) UpdateProductDetails(_ context.Context, p domain.Product) error {
	existing, ok := t.s.products[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Name = p.Name
	existing.Price = p.Price
	existing.UpdatedAt = p.UpdatedAt
	t.s.products[p.ID] = existing
	return nil
}

// stripNames drops read-side joins so the stored copy only holds owned data.
func stripNames(sale domain.Sale) domain.Sale {
	out := cloneSale(sale)
	out.ShopName = ""
	out.SalesmanName = ""
	for i := range out.Items {
		out.Items[i].ProductName = ""
	}
	return out
}
