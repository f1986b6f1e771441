package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// WithinTx runs fn in one serializable transaction. Any error from fn rolls
// everything back.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&pgTx{q: sqlTx}); err != nil {
		return serializationOr(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", serializationOr(err))
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Stores

func (s *Store) CreateStore(ctx context.Context, st domain.Store) (*domain.Store, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stores (id, name, address, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, st.ID, st.Name, st.Address, st.PasswordHash, st.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	created := st
	return &created, nil
}

func (s *Store) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	var st domain.Store
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, password_hash, created_at
		FROM stores
		WHERE id = $1
	`, id).Scan(&st.ID, &st.Name, &st.Address, &st.PasswordHash, &st.CreatedAt)
	if err != nil {
		return nil, mapReadError(err)
	}
	st.CreatedAt = st.CreatedAt.UTC()
	return &st, nil
}

func (s *Store) ListStores(ctx context.Context) ([]domain.Store, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, created_at
		FROM stores
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := make([]domain.Store, 0, 16)
	for rows.Next() {
		var st domain.Store
		if err := rows.Scan(&st.ID, &st.Name, &st.Address, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.CreatedAt = st.CreatedAt.UTC()
		stores = append(stores, st)
	}
	return stores, rows.Err()
}

// Shops

const shopColumns = `id, store_id, name, address, phone, first_sale_date, cash_paid, credit, created_at`

func scanShop(row interface{ Scan(...any) error }) (*domain.Shop, error) {
	var shop domain.Shop
	var firstSale sql.NullTime
	if err := row.Scan(&shop.ID, &shop.StoreID, &shop.Name, &shop.Address, &shop.Phone,
		&firstSale, &shop.CashPaid, &shop.Credit, &shop.CreatedAt); err != nil {
		return nil, err
	}
	if firstSale.Valid {
		at := firstSale.Time.UTC()
		shop.FirstSaleDate = &at
	}
	shop.CreatedAt = shop.CreatedAt.UTC()
	return &shop, nil
}

func (s *Store) CreateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shops (id, store_id, name, address, phone, cash_paid, credit, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, shop.ID, shop.StoreID, shop.Name, shop.Address, shop.Phone, shop.CashPaid, shop.Credit, shop.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	created := shop
	return &created, nil
}

func (s *Store) GetShop(ctx context.Context, id string) (*domain.Shop, error) {
	shop, err := scanShop(s.db.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return shop, nil
}

func (s *Store) ListShops(ctx context.Context, storeID string) ([]domain.Shop, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE store_id = $1 ORDER BY name`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shops := make([]domain.Shop, 0, 32)
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		shops = append(shops, *shop)
	}
	return shops, rows.Err()
}

// Salesmen

func (s *Store) CreateSalesman(ctx context.Context, sm domain.Salesman) (*domain.Salesman, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salesmen (id, store_id, name, created_at)
		VALUES ($1,$2,$3,$4)
	`, sm.ID, sm.StoreID, sm.Name, sm.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	created := sm
	return &created, nil
}

func (s *Store) GetSalesman(ctx context.Context, id string) (*domain.Salesman, error) {
	return getSalesman(ctx, s.db, id)
}

func getSalesman(ctx context.Context, q querier, id string) (*domain.Salesman, error) {
	var sm domain.Salesman
	err := q.QueryRowContext(ctx, `
		SELECT id, store_id, name, created_at
		FROM salesmen
		WHERE id = $1
	`, id).Scan(&sm.ID, &sm.StoreID, &sm.Name, &sm.CreatedAt)
	if err != nil {
		return nil, mapReadError(err)
	}
	sm.CreatedAt = sm.CreatedAt.UTC()
	return &sm, nil
}

func (s *Store) ListSalesmen(ctx context.Context, storeID string) ([]domain.Salesman, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, name, created_at
		FROM salesmen
		WHERE store_id = $1
		ORDER BY name
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	salesmen := make([]domain.Salesman, 0, 16)
	for rows.Next() {
		var sm domain.Salesman
		if err := rows.Scan(&sm.ID, &sm.StoreID, &sm.Name, &sm.CreatedAt); err != nil {
			return nil, err
		}
		sm.CreatedAt = sm.CreatedAt.UTC()
		salesmen = append(salesmen, sm)
	}
	return salesmen, rows.Err()
}

func (s *Store) UpdateSalesman(ctx context.Context, sm domain.Salesman) (*domain.Salesman, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE salesmen SET name = $2 WHERE id = $1`, sm.ID, sm.Name)
	if err != nil {
		return nil, mapWriteError(err)
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}
	return s.GetSalesman(ctx, sm.ID)
}

func (s *Store) DeleteSalesman(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM salesmen WHERE id = $1`, id)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOneRow(res)
}

// Products

const productColumns = `id, store_id, name, price, stock, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.Stock < 0 {
		return nil, store.ErrInsufficientStock
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, store_id, name, price, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, p.ID, p.StoreID, p.Name, p.Price, p.Stock, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	created := p
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE store_id = $1 ORDER BY name`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOneRow(res)
}

// Sales

const saleSelect = `
	SELECT s.id, s.store_id, s.shop_id, sh.name, s.salesman_id, sm.name,
	       s.sale_time, s.discount, s.total, s.sale_type, s.created_at, s.updated_at
	FROM sales s
	JOIN shops sh ON sh.id = s.shop_id
	JOIN salesmen sm ON sm.id = s.salesman_id`

func scanSale(row interface{ Scan(...any) error }) (*domain.Sale, error) {
	var sale domain.Sale
	var saleType string
	if err := row.Scan(&sale.ID, &sale.StoreID, &sale.ShopID, &sale.ShopName, &sale.SalesmanID, &sale.SalesmanName,
		&sale.SaleTime, &sale.Discount, &sale.Total, &saleType, &sale.CreatedAt, &sale.UpdatedAt); err != nil {
		return nil, err
	}
	sale.SaleType = domain.SaleType(saleType)
	sale.SaleTime = sale.SaleTime.UTC()
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.UpdatedAt = sale.UpdatedAt.UTC()
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return getSale(ctx, s.db, id, false)
}

func getSale(ctx context.Context, q querier, id string, lock bool) (*domain.Sale, error) {
	query := saleSelect + ` WHERE s.id = $1`
	if lock {
		query += ` FOR UPDATE OF s`
	}
	sale, err := scanSale(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	items, err := loadItems(ctx, q, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	where := []string{"s.store_id = $1"}
	args := []any{filter.StoreID}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.ShopID != "" {
		add("s.shop_id = $%d", filter.ShopID)
	}
	if filter.SalesmanID != "" {
		add("s.salesman_id = $%d", filter.SalesmanID)
	}
	if filter.From != nil {
		add("s.sale_time >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("s.sale_time < $%d", *filter.To)
	}

	rows, err := s.db.QueryContext(ctx, saleSelect+`
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY s.sale_time DESC, s.id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return sales, nil
	}

	items, err := loadItems(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

func loadItems(ctx context.Context, q querier, saleIDs []string) (map[string][]domain.SaleItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT si.sale_id, si.product_id, p.name, si.quantity, si.price
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = ANY($1)
		ORDER BY si.sale_id, si.position
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string][]domain.SaleItem, len(saleIDs))
	for rows.Next() {
		var saleID string
		var item domain.SaleItem
		if err := rows.Scan(&saleID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		items[saleID] = append(items[saleID], item)
	}
	return items, rows.Err()
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapReadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return serializationOr(err)
}

// serializationOr tags serialization failures (40001) and deadlocks (40P01)
// with store.ErrSerialization and returns any other error unchanged.
func serializationOr(err error) error {
	if errors.Is(err, store.ErrSerialization) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %s", store.ErrSerialization, pgErr.Message)
	}
	return err
}

// mapWriteError folds unique and foreign key violations into ErrConflict,
// the balance check constraints into their sentinels and aborted
// serializable transactions into ErrSerialization.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return serializationOr(err)
	case "23505", "23503":
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
	case "23514":
		switch pgErr.ConstraintName {
		case "products_stock_check":
			return store.ErrInsufficientStock
		case "shops_cash_paid_check", "shops_credit_check":
			return store.ErrNegativeBalance
		}
	}
	return err
}
