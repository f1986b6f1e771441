package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"salesdesk/backend/internal/apperr"
	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/store"
	"salesdesk/backend/internal/xid"
)

// Stores

// CreateStore persists a store whose password has already been hashed by the
// auth layer.
func (s *Service) CreateStore(ctx context.Context, name, address, passwordHash string) (domain.Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Store{}, apperr.New(apperr.CodeValidation, "store name is required")
	}
	if passwordHash == "" {
		return domain.Store{}, apperr.New(apperr.CodeValidation, "store password is required")
	}
	created, err := s.repo.CreateStore(ctx, domain.Store{
		ID:           xid.New("store"),
		Name:         name,
		Address:      strings.TrimSpace(address),
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return domain.Store{}, translate(err, "store")
	}
	return *created, nil
}

func (s *Service) ListStores(ctx context.Context) ([]domain.Store, error) {
	stores, err := s.repo.ListStores(ctx)
	if err != nil {
		return nil, translate(err, "store")
	}
	return stores, nil
}

func (s *Service) GetStore(ctx context.Context, storeID string) (domain.Store, error) {
	if err := s.visible(ctx, storeID, "store"); err != nil {
		return domain.Store{}, err
	}
	st, err := s.repo.GetStore(ctx, storeID)
	if err != nil {
		return domain.Store{}, translate(err, "store")
	}
	return *st, nil
}

// StoreCredentials returns the store including its password hash. Only the
// login path calls it.
func (s *Service) StoreCredentials(ctx context.Context, storeID string) (domain.Store, error) {
	st, err := s.repo.GetStore(ctx, strings.TrimSpace(storeID))
	if err != nil {
		return domain.Store{}, translate(err, "store")
	}
	return *st, nil
}

// Shops

func (s *Service) ListShops(ctx context.Context, storeID string) ([]domain.Shop, error) {
	if err := s.visible(ctx, storeID, "store"); err != nil {
		return nil, err
	}
	shops, err := s.repo.ListShops(ctx, storeID)
	if err != nil {
		return nil, translate(err, "shop")
	}
	return shops, nil
}

func (s *Service) GetShop(ctx context.Context, shopID string) (domain.Shop, error) {
	shop, err := s.repo.GetShop(ctx, shopID)
	if err != nil {
		return domain.Shop{}, translate(err, "shop")
	}
	if err := s.visible(ctx, shop.StoreID, "shop"); err != nil {
		return domain.Shop{}, err
	}
	return *shop, nil
}

func (s *Service) CreateShop(ctx context.Context, storeID string, req domain.ShopCreateRequest) (domain.Shop, error) {
	if err := s.visible(ctx, storeID, "store"); err != nil {
		return domain.Shop{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Shop{}, apperr.New(apperr.CodeValidation, "shop name is required")
	}
	created, err := s.repo.CreateShop(ctx, domain.Shop{
		ID:        xid.New("shop"),
		StoreID:   storeID,
		Name:      name,
		Address:   strings.TrimSpace(req.Address),
		Phone:     strings.TrimSpace(req.Phone),
		CashPaid:  decimal.Zero,
		Credit:    decimal.Zero,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Shop{}, translate(err, "shop")
	}
	s.invalidateReports(ctx, storeID)
	return *created, nil
}

// UpdateShop edits contact details and, for admins, writes off part of the
// shop's outstanding credit.
func (s *Service) UpdateShop(ctx context.Context, shopID string, req domain.ShopUpdateRequest) (domain.Shop, error) {
	if req.Name == nil && req.Address == nil && req.Phone == nil && req.CreditDecrease == nil {
		return domain.Shop{}, apperr.New(apperr.CodeValidation, "no valid fields to update")
	}
	if req.CreditDecrease != nil {
		if err := requireAdmin(ctx); err != nil {
			return domain.Shop{}, err
		}
		if !req.CreditDecrease.IsPositive() {
			return domain.Shop{}, apperr.New(apperr.CodeValidation, "credit decrease must be greater than zero")
		}
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return domain.Shop{}, apperr.New(apperr.CodeValidation, "shop name cannot be empty")
	}

	var storeID string
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		shop, err := tx.GetShopForUpdate(ctx, shopID)
		if err != nil {
			return err
		}
		if err := s.visible(ctx, shop.StoreID, "shop"); err != nil {
			return err
		}
		storeID = shop.StoreID

		if req.Name != nil {
			shop.Name = strings.TrimSpace(*req.Name)
		}
		if req.Address != nil {
			shop.Address = strings.TrimSpace(*req.Address)
		}
		if req.Phone != nil {
			shop.Phone = strings.TrimSpace(*req.Phone)
		}
		if err := tx.UpdateShopDetails(ctx, *shop); err != nil {
			return err
		}

		if req.CreditDecrease == nil {
			return nil
		}
		amount := req.CreditDecrease.Round(2)
		if shop.Credit.LessThan(amount) {
			return apperr.New(apperr.CodeValidation, "cannot decrease credit below zero").
				WithDetails(map[string]string{"credit": shop.Credit.StringFixed(2)})
		}
		return tx.AdjustShopBalance(ctx, shop.ID, decimal.Zero, amount.Neg())
	})
	if errors.Is(err, store.ErrNegativeBalance) {
		return domain.Shop{}, apperr.Wrap(apperr.CodeValidation, err, "cannot decrease credit below zero")
	}
	if err != nil {
		return domain.Shop{}, translate(err, "shop")
	}
	s.invalidateReports(ctx, storeID)
	return s.GetShop(ctx, shopID)
}

// Salesmen

func (s *Service) ListSalesmen(ctx context.Context, storeID string) ([]domain.Salesman, error) {
	if err := s.visible(ctx, storeID, "store"); err != nil {
		return nil, err
	}
	salesmen, err := s.repo.ListSalesmen(ctx, storeID)
	if err != nil {
		return nil, translate(err, "salesman")
	}
	return salesmen, nil
}

func (s *Service) GetSalesman(ctx context.Context, salesmanID string) (domain.Salesman, error) {
	salesman, err := s.repo.GetSalesman(ctx, salesmanID)
	if err != nil {
		return domain.Salesman{}, translate(err, "salesman")
	}
	if err := s.visible(ctx, salesman.StoreID, "salesman"); err != nil {
		return domain.Salesman{}, err
	}
	return *salesman, nil
}

func (s *Service) CreateSalesman(ctx context.Context, storeID string, req domain.SalesmanRequest) (domain.Salesman, error) {
	if err := s.visible(ctx, storeID, "store"); err != nil {
		return domain.Salesman{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Salesman{}, apperr.New(apperr.CodeValidation, "salesman name is required")
	}
	created, err := s.repo.CreateSalesman(ctx, domain.Salesman{
		ID:        xid.New("salesman"),
		StoreID:   storeID,
		Name:      name,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Salesman{}, translate(err, "salesman")
	}
	s.invalidateReports(ctx, storeID)
	return *created, nil
}

func (s *Service) UpdateSalesman(ctx context.Context, salesmanID string, req domain.SalesmanRequest) (domain.Salesman, error) {
	current, err := s.GetSalesman(ctx, salesmanID)
	if err != nil {
		return domain.Salesman{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Salesman{}, apperr.New(apperr.CodeValidation, "salesman name is required")
	}
	current.Name = name
	updated, err := s.repo.UpdateSalesman(ctx, current)
	if err != nil {
		return domain.Salesman{}, translate(err, "salesman")
	}
	s.invalidateReports(ctx, current.StoreID)
	return *updated, nil
}

func (s *Service) DeleteSalesman(ctx context.Context, salesmanID string) error {
	current, err := s.GetSalesman(ctx, salesmanID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSalesman(ctx, current.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return apperr.Wrap(apperr.CodeConflict, err, "salesman has recorded sales")
		}
		return translate(err, "salesman")
	}
	s.invalidateReports(ctx, current.StoreID)
	return nil
}

// Products

func (s *Service) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	if err := s.visible(ctx, storeID, "store"); err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, storeID)
	if err != nil {
		return nil, translate(err, "product")
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, translate(err, "product")
	}
	if err := s.visible(ctx, product.StoreID, "product"); err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, storeID string, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := s.visible(ctx, storeID, "store"); err != nil {
		return domain.Product{}, err
	}
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return domain.Product{}, apperr.New(apperr.CodeValidation, "product name is required")
	case req.Price.IsNegative():
		return domain.Product{}, apperr.New(apperr.CodeValidation, "price cannot be negative")
	case req.Stock < 0:
		return domain.Product{}, apperr.New(apperr.CodeValidation, "stock cannot be negative")
	}
	now := s.now().UTC()
	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:        xid.New("product"),
		StoreID:   storeID,
		Name:      name,
		Price:     req.Price.Round(2),
		Stock:     req.Stock,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.Product{}, translate(err, "product")
	}
	s.invalidateReports(ctx, storeID)
	return *created, nil
}

// UpdateProduct renames or reprices a product; stockChange restocks it with
// an atomic increment. Every field is checked before anything is written.
func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if req.Name == nil && req.Price == nil && req.StockChange == nil {
		return domain.Product{}, apperr.New(apperr.CodeValidation, "no valid fields to update")
	}
	var name string
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, apperr.New(apperr.CodeValidation, "product name cannot be empty")
		}
	}
	if req.Price != nil && req.Price.IsNegative() {
		return domain.Product{}, apperr.New(apperr.CodeValidation, "price cannot be negative")
	}
	if req.StockChange != nil && *req.StockChange <= 0 {
		return domain.Product{}, apperr.New(apperr.CodeValidation, "stock change must be greater than zero")
	}

	current, err := s.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}

	err = s.repo.WithinTx(ctx, func(tx store.Tx) error {
		if req.Name != nil || req.Price != nil {
			if req.Name != nil {
				current.Name = name
			}
			if req.Price != nil {
				current.Price = req.Price.Round(2)
			}
			current.UpdatedAt = s.now().UTC()
			if err := tx.UpdateProductDetails(ctx, current); err != nil {
				return err
			}
		}
		if req.StockChange != nil {
			return tx.AdjustStock(ctx, current.ID, *req.StockChange)
		}
		return nil
	})
	if err != nil {
		return domain.Product{}, translate(err, "product")
	}
	if req.Name != nil || req.Price != nil {
		s.invalidateReports(ctx, current.StoreID)
	}

	return s.GetProduct(ctx, current.ID)
}

func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	current, err := s.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, current.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return apperr.Wrap(apperr.CodeConflict, err, "product is referenced by sales")
		}
		return translate(err, "product")
	}
	s.invalidateReports(ctx, current.StoreID)
	return nil
}
