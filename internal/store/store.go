package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"salesdesk/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNegativeBalance   = errors.New("shop balance would go negative")
	ErrConflict          = errors.New("conflict")
	// ErrSerialization marks a transaction aborted by a concurrent writer.
	// The whole unit of work can be retried.
	ErrSerialization = errors.New("serialization failure")
)

// Repository is the storage boundary. Plain methods are single-statement
// reads and writes; everything that must be atomic runs through WithinTx.
type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	CreateStore(ctx context.Context, s domain.Store) (*domain.Store, error)
	GetStore(ctx context.Context, id string) (*domain.Store, error)
	ListStores(ctx context.Context) ([]domain.Store, error)

	CreateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error)
	GetShop(ctx context.Context, id string) (*domain.Shop, error)
	ListShops(ctx context.Context, storeID string) ([]domain.Shop, error)

	CreateSalesman(ctx context.Context, s domain.Salesman) (*domain.Salesman, error)
	GetSalesman(ctx context.Context, id string) (*domain.Salesman, error)
	ListSalesmen(ctx context.Context, storeID string) ([]domain.Salesman, error)
	UpdateSalesman(ctx context.Context, s domain.Salesman) (*domain.Salesman, error)
	DeleteSalesman(ctx context.Context, id string) error

	CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, storeID string) ([]domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
}

// Tx is a unit of work. Lock* and *ForUpdate reads hold row locks until the
// transaction ends. Adjust* writes are atomic increments that refuse to take a
// counter below zero.
type Tx interface {
	GetSaleForUpdate(ctx context.Context, id string) (*domain.Sale, error)
	GetShopForUpdate(ctx context.Context, id string) (*domain.Shop, error)
	GetSalesman(ctx context.Context, id string) (*domain.Salesman, error)
	LockProducts(ctx context.Context, storeID string, ids []string) (map[string]domain.Product, error)

	InsertSale(ctx context.Context, sale domain.Sale) error
	UpdateSaleHeader(ctx context.Context, sale domain.Sale) error
	ReplaceSaleItems(ctx context.Context, saleID string, items []domain.SaleItem) error
	DeleteSale(ctx context.Context, id string) error

	AdjustStock(ctx context.Context, productID string, delta int) error
	AdjustShopBalance(ctx context.Context, shopID string, cash decimal.Decimal, credit decimal.Decimal) error
	MarkFirstSale(ctx context.Context, shopID string, at time.Time) error
	UpdateShopDetails(ctx context.Context, shop domain.Shop) error
	UpdateProductDetails(ctx context.Context, p domain.Product) error
}
