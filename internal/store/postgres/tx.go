package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/store"
)

type pgTx struct {
	q *sql.Tx
}

var _ store.Tx = (*pgTx)(nil)

func (t *pgTx) GetSaleForUpdate(ctx context.Context, id string) (*domain.Sale, error) {
	return getSale(ctx, t.q, id, true)
}

func (t *pgTx) GetShopForUpdate(ctx context.Context, id string) (*domain.Shop, error) {
	shop, err := scanShop(t.q.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return shop, nil
}

func (t *pgTx) GetSalesman(ctx context.Context, id string) (*domain.Salesman, error) {
	return getSalesman(ctx, t.q, id)
}

// LockProducts locks the store's rows among ids in id order. Ids that do not
// exist or belong to another store are left out of the result.
func (t *pgTx) LockProducts(ctx context.Context, storeID string, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := t.q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE store_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE
	`, storeID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = *p
	}
	return result, rows.Err()
}

func (t *pgTx) InsertSale(ctx context.Context, sale domain.Sale) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO sales (id, store_id, shop_id, salesman_id, sale_time, discount, total, sale_type, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sale.ID, sale.StoreID, sale.ShopID, sale.SalesmanID, sale.SaleTime, sale.Discount, sale.Total,
		string(sale.SaleType), sale.CreatedAt, sale.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return t.insertItems(ctx, sale.ID, sale.Items)
}

func (t *pgTx) UpdateSaleHeader(ctx context.Context, sale domain.Sale) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE sales
		SET shop_id = $2, salesman_id = $3, discount = $4, total = $5, sale_type = $6, updated_at = $7
		WHERE id = $1
	`, sale.ID, sale.ShopID, sale.SalesmanID, sale.Discount, sale.Total, string(sale.SaleType), sale.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOneRow(res)
}

func (t *pgTx) ReplaceSaleItems(ctx context.Context, saleID string, items []domain.SaleItem) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID); err != nil {
		return err
	}
	return t.insertItems(ctx, saleID, items)
}

func (t *pgTx) insertItems(ctx context.Context, saleID string, items []domain.SaleItem) error {
	for i, item := range items {
		_, err := t.q.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, position, quantity, price)
			VALUES ($1,$2,$3,$4,$5)
		`, saleID, item.ProductID, i, item.Quantity, item.Price)
		if err != nil {
			return mapWriteError(err)
		}
	}
	return nil
}

func (t *pgTx) DeleteSale(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// AdjustStock applies delta atomically. Zero affected rows means the row is
// missing or the guard refused to go below zero.
func (t *pgTx) AdjustStock(ctx context.Context, productID string, delta int) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
	`, productID, delta)
	if err != nil {
		return mapWriteError(err)
	}
	if err := expectOneRow(res); !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return t.missingOr(ctx, "products", productID, store.ErrInsufficientStock)
}

func (t *pgTx) AdjustShopBalance(ctx context.Context, shopID string, cash decimal.Decimal, credit decimal.Decimal) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE shops
		SET cash_paid = cash_paid + $2, credit = credit + $3
		WHERE id = $1 AND cash_paid + $2 >= 0 AND credit + $3 >= 0
	`, shopID, cash, credit)
	if err != nil {
		return mapWriteError(err)
	}
	if err := expectOneRow(res); !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return t.missingOr(ctx, "shops", shopID, store.ErrNegativeBalance)
}

func (t *pgTx) MarkFirstSale(ctx context.Context, shopID string, at time.Time) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE shops SET first_sale_date = $2
		WHERE id = $1 AND first_sale_date IS NULL
	`, shopID, at)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return t.missingOr(ctx, "shops", shopID, nil)
}

func (t *pgTx) UpdateShopDetails(ctx context.Context, shop domain.Shop) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE shops SET name = $2, address = $3, phone = $4
		WHERE id = $1
	`, shop.ID, shop.Name, shop.Address, shop.Phone)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOneRow(res)
}

func (t *pgTx) UpdateProductDetails(ctx context.Context, p domain.Product) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price = $3, updated_at = $4
		WHERE id = $1
	`, p.ID, p.Name, p.Price, p.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOneRow(res)
}

// missingOr reports ErrNotFound when the row is gone and guardErr otherwise.
func (t *pgTx) missingOr(ctx context.Context, table string, id string, guardErr error) error {
	var exists bool
	if err := t.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return guardErr
}
