package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"storepos/backend/internal/domain"
)

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	lowStock, _ := strconv.ParseBool(strings.TrimSpace(query.Get("low_stock")))
	products, err := a.service.ListProducts(r.Context(), domain.ProductFilter{
		Search:   query.Get("search"),
		Category: query.Get("category"),
		LowStock: lowStock,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, products)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r, "productID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	product, err := a.service.GetProduct(r.Context(), productID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, product)
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccessMessage(w, http.StatusCreated, product, "Product created")
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r, "productID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), productID, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccessMessage(w, http.StatusOK, product, "Product updated")
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r, "productID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.service.DeleteProduct(r.Context(), productID); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccessMessage(w, http.StatusOK, nil, "Product deactivated")
}

func (a *API) handleRestock(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r, "productID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req domain.RestockRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	batch, err := a.service.RestockProduct(r.Context(), productID, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccessMessage(w, http.StatusCreated, batch, "Product restocked")
}

func (a *API) handleRestockHistory(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r, "productID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	batches, err := a.service.RestockHistory(r.Context(), productID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, batches)
}

func (a *API) handleNextSKU(w http.ResponseWriter, r *http.Request) {
	next, err := a.service.NextSKU(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, next)
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ListCategories(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, categories)
}
