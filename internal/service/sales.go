package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salesdesk/backend/internal/apperr"
	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/ledger"
	"salesdesk/backend/internal/period"
	"salesdesk/backend/internal/store"
	"salesdesk/backend/internal/xid"
)

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.Sale{}, translate(err, "sale")
	}
	if err := s.visible(ctx, sale.StoreID, "sale"); err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (sale domain.Sale, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("create", outcome(err), time.Since(started)) }()

	req.StoreID = strings.TrimSpace(req.StoreID)
	if req.StoreID == "" {
		return domain.Sale{}, apperr.New(apperr.CodeValidation, "store id is required")
	}
	if err := s.visible(ctx, req.StoreID, "store"); err != nil {
		return domain.Sale{}, err
	}

	items, err := normalizeItems(req.Items)
	if err != nil {
		return domain.Sale{}, err
	}
	discount, err := resolveDiscount(req.Discount, decimal.Zero)
	if err != nil {
		return domain.Sale{}, err
	}
	saleType := req.SaleType
	if saleType == "" {
		saleType = domain.SaleTypeCash
	}
	if !saleType.Valid() {
		return domain.Sale{}, apperr.Newf(apperr.CodeValidation, "unknown sale type %q", saleType)
	}

	now := s.now().UTC()
	saleTime := now
	if req.SaleTime != nil && !req.SaleTime.IsZero() {
		saleTime = req.SaleTime.UTC()
	}

	draft := domain.Sale{
		ID:         xid.New("sale"),
		StoreID:    req.StoreID,
		ShopID:     strings.TrimSpace(req.ShopID),
		SalesmanID: strings.TrimSpace(req.SalesmanID),
		SaleTime:   saleTime,
		Discount:   discount,
		Total:      ledger.Total(items, discount),
		SaleType:   saleType,
		Items:      items,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.repo.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := lockShopInStore(ctx, tx, draft.ShopID, draft.StoreID); err != nil {
			return err
		}
		if err := checkSalesman(ctx, tx, draft.SalesmanID, draft.StoreID); err != nil {
			return err
		}
		products, err := tx.LockProducts(ctx, draft.StoreID, productIDs(items, nil))
		if err != nil {
			return err
		}
		if err := requireProducts(products, items); err != nil {
			return err
		}
		deltas, shortage := ledger.PlanStock(products, nil, ledger.Quantities(items))
		if shortage != nil {
			return shortageError(shortage)
		}

		if err := tx.InsertSale(ctx, draft); err != nil {
			return err
		}
		if err := applyStock(ctx, tx, deltas); err != nil {
			return err
		}
		if err := tx.MarkFirstSale(ctx, draft.ShopID, draft.SaleTime); err != nil {
			return err
		}
		return applyShop(ctx, tx, ledger.ForCreate(ledger.EntryOf(draft)))
	})
	if err != nil {
		return domain.Sale{}, translate(err, "sale")
	}

	s.invalidateReports(ctx, draft.StoreID)
	s.metrics.AddUnits(draft.Units())
	return s.reload(ctx, draft), nil
}

func (s *Service) EditSale(ctx context.Context, saleID string, req domain.SaleEditRequest) (sale domain.Sale, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("edit", outcome(err), time.Since(started)) }()

	var updated domain.Sale
	var kind ledger.EditKind
	err = s.repo.WithinTx(ctx, func(tx store.Tx) error {
		existing, err := s.lockEditableSale(ctx, tx, saleID, "edited")
		if err != nil {
			return err
		}

		items, err := normalizeItems(req.Items)
		if err != nil {
			return err
		}
		discount, err := resolveDiscount(req.Discount, existing.Discount)
		if err != nil {
			return err
		}
		saleType := existing.SaleType
		if req.SaleType != nil {
			saleType = *req.SaleType
		}
		if !saleType.Valid() {
			return apperr.Newf(apperr.CodeValidation, "unknown sale type %q", saleType)
		}
		shopID := pick(req.ShopID, existing.ShopID)
		salesmanID := pick(req.SalesmanID, existing.SalesmanID)

		// Shops are locked in id order so concurrent cross-shop edits cannot deadlock.
		shopIDs := []string{existing.ShopID}
		if shopID != existing.ShopID {
			shopIDs = append(shopIDs, shopID)
			slices.Sort(shopIDs)
		}
		for _, id := range shopIDs {
			if _, err := lockShopInStore(ctx, tx, id, existing.StoreID); err != nil {
				return err
			}
		}
		if salesmanID != existing.SalesmanID {
			if err := checkSalesman(ctx, tx, salesmanID, existing.StoreID); err != nil {
				return err
			}
		}

		products, err := tx.LockProducts(ctx, existing.StoreID, productIDs(items, existing.Items))
		if err != nil {
			return err
		}
		if err := requireProducts(products, items); err != nil {
			return err
		}
		deltas, shortage := ledger.PlanStock(products, ledger.Quantities(existing.Items), ledger.Quantities(items))
		if shortage != nil {
			return shortageError(shortage)
		}

		updated = existing
		updated.ShopID = shopID
		updated.SalesmanID = salesmanID
		updated.SaleType = saleType
		updated.Discount = discount
		updated.Items = items
		updated.Total = ledger.Total(items, discount)
		updated.UpdatedAt = s.now().UTC()

		var shopDeltas []ledger.ShopDelta
		kind, shopDeltas = ledger.Reconcile(ledger.EntryOf(existing), ledger.EntryOf(updated))

		if err := tx.ReplaceSaleItems(ctx, updated.ID, items); err != nil {
			return err
		}
		if err := tx.UpdateSaleHeader(ctx, updated); err != nil {
			return err
		}
		if err := applyStock(ctx, tx, deltas); err != nil {
			return err
		}
		if kind == ledger.ShopChanged {
			if err := tx.MarkFirstSale(ctx, updated.ShopID, updated.SaleTime); err != nil {
				return err
			}
		}
		return applyShop(ctx, tx, shopDeltas)
	})
	if err != nil {
		return domain.Sale{}, translate(err, "sale")
	}

	s.metrics.IncEdit(kind.String())
	s.invalidateReports(ctx, updated.StoreID)
	return s.reload(ctx, updated), nil
}

func (s *Service) DeleteSale(ctx context.Context, saleID string) (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("delete", outcome(err), time.Since(started)) }()

	var storeID string
	err = s.repo.WithinTx(ctx, func(tx store.Tx) error {
		existing, err := s.lockEditableSale(ctx, tx, saleID, "deleted")
		if err != nil {
			return err
		}
		storeID = existing.StoreID

		if _, err := tx.GetShopForUpdate(ctx, existing.ShopID); err != nil {
			return err
		}
		products, err := tx.LockProducts(ctx, existing.StoreID, productIDs(existing.Items, nil))
		if err != nil {
			return err
		}
		deltas, _ := ledger.PlanStock(products, ledger.Quantities(existing.Items), nil)

		if err := applyStock(ctx, tx, deltas); err != nil {
			return err
		}
		if err := applyShop(ctx, tx, ledger.ForDelete(ledger.EntryOf(existing))); err != nil {
			return err
		}
		return tx.DeleteSale(ctx, existing.ID)
	})
	if err != nil {
		return translate(err, "sale")
	}

	s.invalidateReports(ctx, storeID)
	return nil
}

// lockEditableSale loads the sale under lock and enforces tenancy and the
// same-day policy before anything else about the request is looked at.
func (s *Service) lockEditableSale(ctx context.Context, tx store.Tx, saleID string, verb string) (domain.Sale, error) {
	existing, err := tx.GetSaleForUpdate(ctx, strings.TrimSpace(saleID))
	if err != nil {
		return domain.Sale{}, err
	}
	if err := s.visible(ctx, existing.StoreID, "sale"); err != nil {
		return domain.Sale{}, err
	}
	if !period.SameDay(existing.SaleTime, s.now(), s.loc) {
		return domain.Sale{}, apperr.New(apperr.CodeForbidden, "sale can only be "+verb+" on the same day")
	}
	return *existing, nil
}

// reload returns the stored, name-hydrated copy of a sale just written.
func (s *Service) reload(ctx context.Context, fallback domain.Sale) domain.Sale {
	sale, err := s.repo.GetSale(ctx, fallback.ID)
	if err != nil {
		s.log.Warn(s.log.WithField(ctx, "sale_id", fallback.ID), "reload after write failed", err)
		return fallback
	}
	return *sale
}

func lockShopInStore(ctx context.Context, tx store.Tx, shopID string, storeID string) (*domain.Shop, error) {
	if shopID == "" {
		return nil, apperr.New(apperr.CodeValidation, "shop id is required")
	}
	shop, err := tx.GetShopForUpdate(ctx, shopID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && shop.StoreID != storeID) {
		return nil, apperr.New(apperr.CodeValidation, "shop does not belong to this store")
	}
	if err != nil {
		return nil, err
	}
	return shop, nil
}

func checkSalesman(ctx context.Context, tx store.Tx, salesmanID string, storeID string) error {
	if salesmanID == "" {
		return apperr.New(apperr.CodeValidation, "salesman id is required")
	}
	salesman, err := tx.GetSalesman(ctx, salesmanID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && salesman.StoreID != storeID) {
		return apperr.New(apperr.CodeValidation, "salesman does not belong to this store")
	}
	return err
}

func requireProducts(products map[string]domain.Product, items []domain.SaleItem) error {
	for _, item := range items {
		if _, ok := products[item.ProductID]; !ok {
			return apperr.Newf(apperr.CodeValidation, "product %s not found in this store", item.ProductID).
				WithDetails(map[string]string{"productId": item.ProductID})
		}
	}
	return nil
}

func shortageError(shortage *ledger.Shortage) error {
	return apperr.New(apperr.CodeValidation, shortage.Error()).WithDetails(map[string]any{
		"productId": shortage.ProductID,
		"available": shortage.Available,
		"requested": shortage.Requested,
	})
}

func applyStock(ctx context.Context, tx store.Tx, deltas []ledger.StockDelta) error {
	for _, d := range deltas {
		if err := tx.AdjustStock(ctx, d.ProductID, d.Delta); err != nil {
			return err
		}
	}
	return nil
}

func applyShop(ctx context.Context, tx store.Tx, deltas []ledger.ShopDelta) error {
	for _, d := range deltas {
		if d.IsZero() {
			continue
		}
		if err := tx.AdjustShopBalance(ctx, d.ShopID, d.Cash, d.Credit); err != nil {
			return err
		}
	}
	return nil
}

func normalizeItems(inputs []domain.SaleItemInput) ([]domain.SaleItem, error) {
	if len(inputs) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "a sale needs at least one item")
	}
	items := make([]domain.SaleItem, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		id := strings.TrimSpace(in.ProductID)
		switch {
		case id == "":
			return nil, apperr.New(apperr.CodeValidation, "product id is required")
		case in.Quantity <= 0:
			return nil, apperr.Newf(apperr.CodeValidation, "quantity for product %s must be positive", id)
		case in.Price.IsNegative():
			return nil, apperr.Newf(apperr.CodeValidation, "price for product %s cannot be negative", id)
		case !in.Price.Equal(in.Price.Truncate(2)):
			return nil, apperr.Newf(apperr.CodeValidation, "price for product %s has more than 2 decimal places", id)
		}
		if _, dup := seen[id]; dup {
			return nil, apperr.Newf(apperr.CodeValidation, "product %s appears more than once", id)
		}
		seen[id] = struct{}{}
		items = append(items, domain.SaleItem{ProductID: id, Quantity: in.Quantity, Price: in.Price})
	}
	return items, nil
}

func resolveDiscount(requested *decimal.Decimal, fallback decimal.Decimal) (decimal.Decimal, error) {
	if requested == nil {
		return fallback, nil
	}
	if !ledger.ValidDiscount(*requested) {
		return decimal.Zero, apperr.New(apperr.CodeValidation, "discount must be between 0 and 100")
	}
	return *requested, nil
}

// productIDs lists the distinct product ids of both item sets in lock order.
func productIDs(items []domain.SaleItem, more []domain.SaleItem) []string {
	ids := make([]string, 0, len(items)+len(more))
	for _, set := range [][]domain.SaleItem{items, more} {
		for _, item := range set {
			ids = append(ids, item.ProductID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func pick(override *string, current string) string {
	if override == nil {
		return current
	}
	if v := strings.TrimSpace(*override); v != "" {
		return v
	}
	return current
}
