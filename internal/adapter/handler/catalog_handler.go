package handler

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rl1809/cropchain/internal/core/domain"
)

type ProductRequest struct {
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	QuantityAvailable int             `json:"quantity_available"`
	CategoryID        int64           `json:"category_id"`
}

type CategoryRequest struct {
	Name string `json:"name"`
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.catalog.Create(r.Context(), currentUserID(r), domain.Product{
		Title:             req.Title,
		Description:       req.Description,
		Price:             req.Price,
		QuantityAvailable: req.QuantityAvailable,
		CategoryID:        req.CategoryID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "product created", product)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	product, err := h.catalog.Get(r.Context(), currentUserID(r), productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "product found", product)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var update domain.ProductUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	product, err := h.catalog.Update(r.Context(), currentUserID(r), productID, update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "product updated", product)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	if err := h.catalog.Delete(r.Context(), currentUserID(r), productID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "product deleted", nil)
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeBadRequest(w, "invalid limit")
		return
	}
	products, err := h.catalog.List(r.Context(), int(limit))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "products found", nonNil(products))
}

func (h *HTTPHandler) ListOwnProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListOwned(r.Context(), currentUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "products found", nonNil(products))
}

func (h *HTTPHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	categoryID, err := queryInt(r, "category_id")
	if err != nil {
		writeBadRequest(w, "invalid category_id")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeBadRequest(w, "invalid limit")
		return
	}

	products, err := h.catalog.Search(r.Context(), domain.ProductFilter{
		Keyword:    q.Get("keyword"),
		CategoryID: categoryID,
		SortBy:     domain.ProductSort(q.Get("sort_by")),
		Limit:      int(limit),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "products found", nonNil(products))
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "categories found", nonNil(categories))
}

func (h *HTTPHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	category, err := h.categories.Get(r.Context(), categoryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "category found", category)
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	category, err := h.categories.Create(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "category created", category)
}

func (h *HTTPHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	var req CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	category, err := h.categories.Rename(r.Context(), categoryID, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "category updated", category)
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	if err := h.categories.Delete(r.Context(), categoryID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "category deleted", nil)
}

// queryInt returns 0 when the parameter is absent.
func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
