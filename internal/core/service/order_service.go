package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/cropchain/internal/core/domain"
	"github.com/rl1809/cropchain/internal/port"
)

const (
	tracerName          = "github.com/rl1809/cropchain/internal/core/service"
	idempotencyKeyTTL   = 24 * time.Hour
	compensationTimeout = 10 * time.Second
	recoveryBatchSize   = 100
)

type OrderDependencies struct {
	Orders   port.OrderRepository
	Products port.ProductRepository
	Users    port.UserRepository
	Carts    port.CartRepository
	Cache    port.CacheRepository
	Events   port.EventPublisher
	Metrics  port.OrderMetrics
}

type OrderService struct {
	orders   port.OrderRepository
	products port.ProductRepository
	users    port.UserRepository
	carts    port.CartRepository
	cache    port.CacheRepository
	events   port.EventPublisher
	metrics  port.OrderMetrics
	ledger   *InventoryLedger
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time

	compensationTimeout time.Duration
}

func NewOrderService(deps OrderDependencies, ledger *InventoryLedger, logger zerolog.Logger) *OrderService {
	s := &OrderService{
		orders:              deps.Orders,
		products:            deps.Products,
		users:               deps.Users,
		carts:               deps.Carts,
		cache:               deps.Cache,
		events:              deps.Events,
		metrics:             deps.Metrics,
		ledger:              ledger,
		logger:              logger.With().Str("component", "order_service").Logger(),
		tracer:              otel.Tracer(tracerName),
		now:                 time.Now,
		compensationTimeout: compensationTimeout,
	}
	if s.metrics == nil {
		s.metrics = noopOrderMetrics{}
	}
	return s
}

// PlaceOrder validates the request, reserves stock line by line and finalizes
// the order. Any failure after the order row exists releases every
// reservation taken so far and deletes the order with its line items.
// An order whose rollback could not release everything is kept as aborted.
// A non-empty idempotencyKey rejects repeats of the same request.
func (s *OrderService) PlaceOrder(ctx context.Context, userID int64, lines []domain.LineRequest, idempotencyKey string) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.place", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int("lines", len(lines)),
	))
	defer span.End()

	order, err := s.placeOrder(ctx, userID, lines, idempotencyKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveOrder(string(domain.KindOf(err)))
		return domain.Order{}, err
	}

	span.SetAttributes(attribute.Int64("order_id", order.ID))
	s.metrics.ObserveOrder("placed")
	return order, nil
}

func (s *OrderService) placeOrder(ctx context.Context, userID int64, lines []domain.LineRequest, idempotencyKey string) (domain.Order, error) {
	if len(lines) == 0 {
		return domain.Order{}, domain.ErrEmptyOrder
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return domain.Order{}, domain.ErrUserNotFound
	}
	if user.IsSeller {
		return domain.Order{}, domain.ErrSellerCannotOrder
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return domain.Order{}, domain.ErrInvalidQuantity
		}
	}

	if idempotencyKey != "" {
		key := fmt.Sprintf("order:%d:%s", userID, idempotencyKey)
		ok, err := s.cache.SetIdempotency(ctx, key, idempotencyKeyTTL)
		if err != nil {
			return domain.Order{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return domain.Order{}, domain.ErrDuplicateRequest
		}

		order, err := s.reserveAndCommit(ctx, user, lines)
		if err != nil {
			clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
			defer cancel()
			if clearErr := s.cache.ClearIdempotency(clearCtx, key); clearErr != nil {
				s.logger.Error().Err(clearErr).Str("key", key).Msg("failed to clear idempotency key")
			}
		}
		return order, err
	}

	return s.reserveAndCommit(ctx, user, lines)
}

func (s *OrderService) reserveAndCommit(ctx context.Context, user *domain.User, lines []domain.LineRequest) (domain.Order, error) {
	order := domain.Order{
		UserID:     user.ID,
		OrderDate:  s.now(),
		TotalPrice: decimal.Zero,
		Status:     domain.OrderStatusPending,
	}

	orderID, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	order.ID = orderID

	var reserved []domain.Reservation
	abort := func(cause error) (domain.Order, error) {
		s.compensate(ctx, order, reserved)
		return domain.Order{}, cause
	}

	for _, line := range lines {
		item, res, err := s.reserveLine(ctx, order.ID, line)
		if res != nil {
			reserved = append(reserved, *res)
		}
		if err != nil {
			s.logger.Info().
				Err(err).
				Int64("order_id", order.ID).
				Int64("product_id", line.ProductID).
				Msg("order line rejected")
			return abort(err)
		}

		order.Items = append(order.Items, item)
		order.OrderQuantity += item.Quantity
		order.TotalPrice = order.TotalPrice.Add(item.LineTotal)
	}

	order.Status = domain.OrderStatusPlaced
	if err := s.orders.FinalizeOrder(ctx, order); err != nil {
		return abort(fmt.Errorf("finalize order: %w", err))
	}

	if domain.DistinctProducts(lines) > 1 && user.CartID != 0 {
		if err := s.carts.ClearCart(ctx, user.CartID); err != nil {
			s.logger.Warn().Err(err).Int64("order_id", order.ID).Int64("cart_id", user.CartID).Msg("failed to clear cart")
		}
	}

	s.publish(ctx, domain.EventOrderPlaced, order)

	s.logger.Info().
		Int64("order_id", order.ID).
		Int64("user_id", order.UserID).
		Int("order_quantity", order.OrderQuantity).
		Str("total_price", order.TotalPrice.StringFixed(2)).
		Msg("order placed")

	return order, nil
}

// reserveLine returns the reservation whenever stock was taken, even if the
// line item could not be stored, so the caller can release it.
func (s *OrderService) reserveLine(ctx context.Context, orderID int64, line domain.LineRequest) (domain.OrderLineItem, *domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "order.reserve_line", trace.WithAttributes(
		attribute.Int64("product_id", line.ProductID),
		attribute.Int("quantity", line.Quantity),
	))
	defer span.End()

	product, err := s.products.GetProduct(ctx, line.ProductID)
	if err != nil {
		return domain.OrderLineItem{}, nil, fmt.Errorf("get product %d: %w", line.ProductID, err)
	}
	if product == nil {
		return domain.OrderLineItem{}, nil, domain.ErrInvalidProduct
	}

	res, err := s.ledger.Reserve(ctx, line.ProductID, line.Quantity)
	if err != nil {
		span.RecordError(err)
		return domain.OrderLineItem{}, nil, err
	}

	item := domain.OrderLineItem{
		OrderID:          orderID,
		ProductID:        line.ProductID,
		Quantity:         line.Quantity,
		UnitPrice:        res.UnitPrice,
		LineTotal:        res.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
		ReservationToken: res.Token,
	}
	item.ID, err = s.orders.AddLineItem(ctx, item)
	if err != nil {
		return domain.OrderLineItem{}, &res, fmt.Errorf("add line item: %w", err)
	}

	return item, &res, nil
}

// compensate releases reservations newest first and deletes the order once
// every one of them is back. If any release fails the order is kept as
// aborted, with a line item for each reservation still held, so
// RecoverAborted can finish the job. It runs detached from the request so a
// cancelled client cannot interrupt it.
func (s *OrderService) compensate(ctx context.Context, order domain.Order, reserved []domain.Reservation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "order.compensate", trace.WithAttributes(
		attribute.Int64("order_id", order.ID),
		attribute.Int("reservations", len(reserved)),
	))
	defer span.End()

	var held []domain.Reservation
	for i := len(reserved) - 1; i >= 0; i-- {
		if err := s.ledger.Release(ctx, reserved[i]); err != nil {
			span.RecordError(err)
			s.logger.Error().
				Err(err).
				Int64("order_id", order.ID).
				Int64("product_id", reserved[i].ProductID).
				Str("token", reserved[i].Token).
				Msg("failed to release reservation")
			held = append(held, reserved[i])
		}
	}

	if len(held) > 0 {
		s.keepAborted(ctx, order, held)
		return
	}

	if err := s.orders.DeleteOrder(ctx, order.ID); err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Int64("order_id", order.ID).Msg("failed to delete rolled back order")
		return
	}

	s.logger.Info().Int64("order_id", order.ID).Int("released", len(reserved)).Msg("order rolled back")
}

// keepAborted marks the order aborted. Reservations whose line item was never
// stored get one now so their tokens survive for a later release.
func (s *OrderService) keepAborted(ctx context.Context, order domain.Order, held []domain.Reservation) {
	stored := make(map[string]bool, len(order.Items))
	for _, item := range order.Items {
		stored[item.ReservationToken] = true
	}
	for _, res := range held {
		if stored[res.Token] {
			continue
		}
		item := domain.OrderLineItem{
			OrderID:          order.ID,
			ProductID:        res.ProductID,
			Quantity:         res.Quantity,
			UnitPrice:        res.UnitPrice,
			LineTotal:        res.UnitPrice.Mul(decimal.NewFromInt(int64(res.Quantity))),
			ReservationToken: res.Token,
		}
		if _, err := s.orders.AddLineItem(ctx, item); err != nil {
			s.logger.Error().
				Err(err).
				Int64("order_id", order.ID).
				Int64("product_id", res.ProductID).
				Str("token", res.Token).
				Int("quantity", res.Quantity).
				Msg("CRITICAL: reservation token not persisted")
		}
	}

	order.Status = domain.OrderStatusAborted
	if err := s.orders.FinalizeOrder(ctx, order); err != nil {
		// still pending; the stale pending sweep picks it up
		s.logger.Error().Err(err).Int64("order_id", order.ID).Msg("failed to mark order aborted")
	}

	s.metrics.ObserveOrder("aborted")
	s.logger.Error().
		Int64("order_id", order.ID).
		Int("held", len(held)).
		Msg("CRITICAL: order aborted with reservations still held")
}

// RecoverAborted retries the rollback of aborted orders and of pending orders
// older than pendingAge, deleting each one whose stock is fully returned. It
// returns the number of orders deleted.
func (s *OrderService) RecoverAborted(ctx context.Context, pendingAge time.Duration) (int, error) {
	ctx, span := s.tracer.Start(ctx, "order.recover")
	defer span.End()

	now := s.now()
	aborted, err := s.orders.ListOrdersByStatus(ctx, domain.OrderStatusAborted, now, recoveryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list aborted orders: %w", err)
	}
	stale, err := s.orders.ListOrdersByStatus(ctx, domain.OrderStatusPending, now.Add(-pendingAge), recoveryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending orders: %w", err)
	}

	recovered := 0
	for _, order := range append(aborted, stale...) {
		if err := s.releaseItems(ctx, order); err != nil {
			span.RecordError(err)
			s.logger.Warn().Err(err).Int64("order_id", order.ID).Str("status", string(order.Status)).Msg("order recovery incomplete")
			continue
		}
		if err := s.orders.DeleteOrder(ctx, order.ID); err != nil {
			span.RecordError(err)
			s.logger.Error().Err(err).Int64("order_id", order.ID).Msg("failed to delete recovered order")
			continue
		}
		recovered++
		s.logger.Info().Int64("order_id", order.ID).Str("status", string(order.Status)).Msg("order recovered")
	}

	span.SetAttributes(attribute.Int("recovered", recovered))
	return recovered, nil
}

func (s *OrderService) releaseItems(ctx context.Context, order domain.Order) error {
	for _, item := range order.Items {
		res := domain.Reservation{
			Token:     item.ReservationToken,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
		if err := s.ledger.Release(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.Status != domain.OrderStatusPlaced {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if order.UserID != userID {
		return domain.Order{}, domain.ErrNotOrderOwner
	}
	return *order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// CancelOrder returns every line's stock to the ledger and deletes the order.
// The order is kept if any release fails so the cancellation can be retried.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID int64) error {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}

	if err := s.releaseItems(ctx, order); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}

	if err := s.orders.DeleteOrder(ctx, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	s.publish(ctx, domain.EventOrderCancelled, order)
	s.metrics.ObserveOrder("cancelled")
	s.logger.Info().Int64("order_id", orderID).Int64("user_id", userID).Msg("order cancelled")
	return nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order domain.Order) {
	if s.events == nil {
		return
	}
	event := domain.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		OrderQuantity: order.OrderQuantity,
		TotalPrice:    order.TotalPrice,
		OccurredAt:    s.now(),
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Warn().Err(err).Int64("order_id", order.ID).Str("event", eventType).Msg("failed to publish order event")
	}
}

type noopOrderMetrics struct{}

func (noopOrderMetrics) ObserveOrder(string) {}
