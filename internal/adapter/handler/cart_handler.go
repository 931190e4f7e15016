package handler

import "net/http"

type CartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *HTTPHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cart, err := h.carts.AddItem(r.Context(), currentUserID(r), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "cart updated", cart)
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.Get(r.Context(), currentUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "cart found", cart)
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	if err := h.carts.RemoveItem(r.Context(), currentUserID(r), productID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "item removed", nil)
}
