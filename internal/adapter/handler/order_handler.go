package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/cropchain/internal/core/domain"
)

type PlaceOrderRequest struct {
	Products []domain.LineRequest `json:"products"`
}

type OrderItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type OrderResponse struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"user_id"`
	OrderDate     time.Time           `json:"order_date"`
	OrderQuantity int                 `json:"order_quantity"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	Status        domain.OrderStatus  `json:"status"`
	Items         []OrderItemResponse `json:"items"`
}

func newOrderResponse(o domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		OrderDate:     o.OrderDate,
		OrderQuantity: o.OrderQuantity,
		TotalPrice:    o.TotalPrice,
		Status:        o.Status,
		Items:         make([]OrderItemResponse, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}
	return resp
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	order, err := h.orders.PlaceOrder(r.Context(), currentUserID(r), req.Products, idempotencyKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "order placed successfully", newOrderResponse(order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), currentUserID(r), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "order found", newOrderResponse(order))
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), currentUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	writeOK(w, http.StatusOK, "orders found", resp)
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	if err := h.orders.CancelOrder(r.Context(), currentUserID(r), orderID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "order cancelled", nil)
}
