package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/rl1809/cropchain/internal/core/domain"
	"github.com/rl1809/cropchain/internal/core/service"
)

const (
	defaultChatReadTimeout  = 5 * time.Minute
	defaultChatWriteTimeout = 10 * time.Second
	maxBodyBytes            = 1 << 20
)

type Services struct {
	Orders        *service.OrderService
	Conversations *service.ConversationService
	Chat          *service.ChatHub
	Users         *service.UserService
	Catalog       *service.CatalogService
	Categories    *service.CategoryService
	Carts         *service.CartService
}

type TokenVerifier interface {
	Verify(token string) (int64, error)
}

type RequestObserver interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
}

type HTTPHandler struct {
	orders        *service.OrderService
	conversations *service.ConversationService
	chat          *service.ChatHub
	users         *service.UserService
	catalog       *service.CatalogService
	categories    *service.CategoryService
	carts         *service.CartService

	tokens         TokenVerifier
	observer       RequestObserver
	metricsHandler http.Handler
	logger         zerolog.Logger

	chatReadTimeout  time.Duration
	chatWriteTimeout time.Duration
}

type Option func(*HTTPHandler)

// WithMetrics records request metrics and serves them on /metrics.
func WithMetrics(observer RequestObserver, handler http.Handler) Option {
	return func(h *HTTPHandler) {
		h.observer = observer
		h.metricsHandler = handler
	}
}

func WithChatTimeouts(read, write time.Duration) Option {
	return func(h *HTTPHandler) {
		if read > 0 {
			h.chatReadTimeout = read
		}
		if write > 0 {
			h.chatWriteTimeout = write
		}
	}
}

func NewHTTPHandler(services Services, tokens TokenVerifier, logger zerolog.Logger, opts ...Option) *HTTPHandler {
	h := &HTTPHandler{
		orders:           services.Orders,
		conversations:    services.Conversations,
		chat:             services.Chat,
		users:            services.Users,
		catalog:          services.Catalog,
		categories:       services.Categories,
		carts:            services.Carts,
		tokens:           tokens,
		logger:           logger.With().Str("component", "http").Logger(),
		chatReadTimeout:  defaultChatReadTimeout,
		chatWriteTimeout: defaultChatWriteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	if h.metricsHandler != nil {
		r.Handle("/metrics", h.metricsHandler)
	}

	r.Post("/users/register", h.Register)
	r.Post("/token", h.Login)

	r.Get("/", h.LookupConversation)
	r.Get("/conversations", h.LookupConversation)
	r.Get("/ws/{conversationID}", h.Chat)

	r.Get("/products", h.ListProducts)
	r.Get("/products/search", h.SearchProducts)
	r.Get("/categories", h.ListCategories)
	r.Get("/categories/{categoryID}", h.GetCategory)

	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)

		r.Get("/user", h.CurrentUser)

		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders/{orderID}", h.GetOrder)
		r.Delete("/orders/{orderID}", h.CancelOrder)
		r.Get("/order-self", h.ListOrders)

		r.Post("/products", h.CreateProduct)
		r.Get("/products-self", h.ListOwnProducts)
		r.Get("/products/{productID}", h.GetProduct)
		r.Put("/products/{productID}", h.UpdateProduct)
		r.Delete("/products/{productID}", h.DeleteProduct)

		r.Post("/categories", h.CreateCategory)
		r.Put("/categories/{categoryID}", h.RenameCategory)
		r.Delete("/categories/{categoryID}", h.DeleteCategory)

		r.Post("/cart", h.AddCartItem)
		r.Get("/cart", h.GetCart)
		r.Delete("/cart/{productID}", h.RemoveCartItem)
	})

	return r
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

// writeError maps a service error onto the HTTP status of its kind. Errors
// outside the domain taxonomy are logged and reported as internal.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	if status == http.StatusInternalServerError {
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		message = "internal error"
	}
	writeJSON(w, status, Response{Success: false, Message: message})
}

func statusFor(err error) int {
	// both are answered as informational rejections
	if errors.Is(err, domain.ErrEmptyOrder) || errors.Is(err, domain.ErrSellerCannotOrder) {
		return http.StatusOK
	}

	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInventory:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, "invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid "+param)
		return 0, false
	}
	return id, true
}
