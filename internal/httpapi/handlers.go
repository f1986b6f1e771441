package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/export"
	"salesdesk/backend/internal/invoice"
	"salesdesk/backend/internal/period"
)

// Stores

func (a *API) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := a.service.ListStores(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stores": stores})
}

func (a *API) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req domain.StoreCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	hash, err := a.auth.HashPassword(req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	st, err := a.service.CreateStore(r.Context(), req.Name, req.Address, hash)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"store": st})
}

func (a *API) handleGetStore(w http.ResponseWriter, r *http.Request) {
	st, err := a.service.GetStore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"store": st})
}

// Shops

func (a *API) handleListShops(w http.ResponseWriter, r *http.Request) {
	shops, err := a.service.ListShops(r.Context(), actorFrom(r).StoreID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shops": shops})
}

func (a *API) handleCreateShop(w http.ResponseWriter, r *http.Request) {
	var req domain.ShopCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	shop, err := a.service.CreateShop(r.Context(), actorFrom(r).StoreID, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"shop": shop})
}

func (a *API) handleGetShop(w http.ResponseWriter, r *http.Request) {
	shop, err := a.service.GetShop(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shop": shop})
}

func (a *API) handleUpdateShop(w http.ResponseWriter, r *http.Request) {
	var req domain.ShopUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	shop, err := a.service.UpdateShop(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shop": shop})
}

func (a *API) handleShopSales(w http.ResponseWriter, r *http.Request) {
	rng, err := a.rangeFromQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rows, err := a.service.ShopSalesReport(r.Context(), actorFrom(r).StoreID, rng)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shops": rows})
}

// Salesmen

func (a *API) handleListSalesmen(w http.ResponseWriter, r *http.Request) {
	salesmen, err := a.service.ListSalesmen(r.Context(), actorFrom(r).StoreID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"salesmen": salesmen})
}

func (a *API) handleCreateSalesman(w http.ResponseWriter, r *http.Request) {
	var req domain.SalesmanRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	sm, err := a.service.CreateSalesman(r.Context(), actorFrom(r).StoreID, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"salesman": sm})
}

func (a *API) handleGetSalesman(w http.ResponseWriter, r *http.Request) {
	sm, err := a.service.GetSalesman(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"salesman": sm})
}

func (a *API) handleUpdateSalesman(w http.ResponseWriter, r *http.Request) {
	var req domain.SalesmanRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	sm, err := a.service.UpdateSalesman(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"salesman": sm})
}

func (a *API) handleDeleteSalesman(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteSalesman(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Products

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context(), actorFrom(r).StoreID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), actorFrom(r).StoreID, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleProductSales(w http.ResponseWriter, r *http.Request) {
	rng, err := a.rangeFromQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	productID := strings.TrimSpace(r.URL.Query().Get("productId"))
	rows, err := a.service.ProductSalesReport(r.Context(), actorFrom(r).StoreID, rng, productID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": rows})
}

// Sales

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	rng, err := a.rangeFromQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	query := r.URL.Query()
	sales, err := a.service.ListSales(r.Context(), domain.SaleFilter{
		StoreID:    actorFrom(r).StoreID,
		ShopID:     strings.TrimSpace(query.Get("shopId")),
		SalesmanID: strings.TrimSpace(query.Get("salesmanId")),
		From:       rng.From,
		To:         rng.To,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleCurrentMonthSales(w http.ResponseWriter, r *http.Request) {
	sales, err := a.service.CurrentMonthSales(r.Context(), actorFrom(r).StoreID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	req.StoreID = actorFrom(r).StoreID

	sale, err := a.service.CreateSale(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.log.Info(a.log.WithField(r.Context(), "sale_id", sale.ID), "sale.created")
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleEditSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleEditRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	sale, err := a.service.EditSale(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.log.Info(a.log.WithField(r.Context(), "sale_id", sale.ID), "sale.edited")
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	saleID := chi.URLParam(r, "id")
	if err := a.service.DeleteSale(r.Context(), saleID); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.log.Info(a.log.WithField(r.Context(), "sale_id", saleID), "sale.deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleInvoice(w http.ResponseWriter, r *http.Request) {
	doc, err := a.service.Invoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := invoice.Render(&buf, doc); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.pdf"`, doc.Number))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Reports

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	rng, err := a.rangeFromQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	report, err := a.service.SalesReport(r.Context(), actorFrom(r).StoreID, rng)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleSalesReportXLSX(w http.ResponseWriter, r *http.Request) {
	rng, err := a.rangeFromQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	report, err := a.service.SalesReport(r.Context(), actorFrom(r).StoreID, rng)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteSalesReport(&buf, report, a.service.Location()); err != nil {
		a.writeError(w, r, err)
		return
	}
	filename := "sales-" + time.Now().In(a.service.Location()).Format("2006-01-02") + ".xlsx"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleSalesmanReport(w http.ResponseWriter, r *http.Request) {
	rng, err := a.rangeFromQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rows, err := a.service.SalesmanReport(r.Context(), actorFrom(r).StoreID, rng)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"salesmen": rows})
}

func (a *API) rangeFromQuery(r *http.Request) (period.Range, error) {
	query := r.URL.Query()
	return a.service.ResolvePeriod(query.Get("period"), query.Get("from"), query.Get("to"))
}
