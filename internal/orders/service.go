package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threshingfloor/roastery-backend/internal/access"
	"github.com/threshingfloor/roastery-backend/internal/cart"
	"github.com/threshingfloor/roastery-backend/pkg/config"
	"github.com/threshingfloor/roastery-backend/pkg/db"
	"github.com/threshingfloor/roastery-backend/pkg/db/models"
	"github.com/threshingfloor/roastery-backend/pkg/enums"
	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
	"github.com/threshingfloor/roastery-backend/pkg/metrics"
	"github.com/threshingfloor/roastery-backend/pkg/outbox"
	"github.com/threshingfloor/roastery-backend/pkg/outbox/payloads"
	"github.com/threshingfloor/roastery-backend/pkg/pagination"
)

const cashPaymentInfo = "Cash on pickup"

// Service runs the order workflow: placement by customers, then payment
// confirmation, cancellation and fulfilment by the admin.
type Service interface {
	PlaceOrder(ctx context.Context, id *access.Identity, input PlaceOrderInput) (*OrderDTO, error)
	ConfirmPayment(ctx context.Context, id *access.Identity, orderID uuid.UUID) (*OrderDTO, error)
	CancelOrder(ctx context.Context, id *access.Identity, orderID uuid.UUID) (*OrderDTO, error)
	MarkFulfilled(ctx context.Context, id *access.Identity, orderID uuid.UUID) (*OrderDTO, error)
	ListOrdersFor(ctx context.Context, id *access.Identity, params pagination.Params) (*OrderList, error)
	GetOrder(ctx context.Context, id *access.Identity, orderID uuid.UUID) (*OrderDTO, error)
}

// ServiceParams bundles the order workflow dependencies.
type ServiceParams struct {
	Repo     Repository
	DB       db.TxRunner
	Policy   *access.Policy
	Carts    cartStore
	Catalog  stockKeeper
	Calendar slotClaimer
	Outbox   outbox.Emitter
	Store    config.StoreConfig
	Metrics  *metrics.StoreMetrics
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo     Repository
	db       db.TxRunner
	policy   *access.Policy
	carts    cartStore
	catalog  stockKeeper
	calendar slotClaimer
	outbox   outbox.Emitter
	store    config.StoreConfig
	metrics  *metrics.StoreMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order workflow service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Policy == nil:
		return nil, fmt.Errorf("access policy required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart service required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog service required")
	case params.Calendar == nil:
		return nil, fmt.Errorf("availability service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		db:       params.DB,
		policy:   params.Policy,
		carts:    params.Carts,
		catalog:  params.Catalog,
		calendar: params.Calendar,
		outbox:   params.Outbox,
		store:    params.Store,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// PlaceOrder turns the caller's cart into a pending order. Nothing is written
// unless every precondition holds.
func (s *service) PlaceOrder(ctx context.Context, id *access.Identity, input PlaceOrderInput) (*OrderDTO, error) {
	if id == nil || id.UserID == uuid.Nil {
		return nil, pkgerrors.Validation("login required")
	}
	c, err := s.carts.Get(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, pkgerrors.Validation("cart is empty")
	}

	order := &models.Order{
		ID:             uuid.New(),
		UserID:         id.UserID,
		UserEmail:      id.Email,
		CustomerName:   customerName(id),
		Status:         enums.OrderStatusPending,
		DeliveryMethod: input.DeliveryMethod,
		PaymentMethod:  input.PaymentMethod,
	}

	switch input.DeliveryMethod {
	case "":
		return nil, pkgerrors.Validation("choose a delivery method")
	case enums.DeliveryMethodPickup:
		if input.PickupSlotID == nil || *input.PickupSlotID == uuid.Nil {
			return nil, pkgerrors.Validation("choose a pickup time")
		}
		slotID := *input.PickupSlotID
		address := s.store.PickupAddress
		order.PickupSlotID = &slotID
		order.PickupAddress = &address
	case enums.DeliveryMethodDelivery:
		if input.ShippingAddress == nil {
			return nil, pkgerrors.Validation("shipping address is required").
				WithDetails(map[string]any{"missing": []string{"street", "city", "state", "zip"}})
		}
		if missing := input.ShippingAddress.MissingFields(); len(missing) > 0 {
			return nil, pkgerrors.Validation("shipping address is incomplete").
				WithDetails(map[string]any{"missing": missing})
		}
		address := input.ShippingAddress.Trimmed()
		order.ShippingAddress = &address
	default:
		return nil, pkgerrors.Validation(fmt.Sprintf("unknown delivery method %q", input.DeliveryMethod))
	}

	info, err := s.paymentInfo(input.PaymentMethod)
	if err != nil {
		return nil, err
	}
	order.PaymentInfo = info

	if err := s.checkStock(ctx, c); err != nil {
		return nil, err
	}

	total := c.Total()
	order.Total = total.Round(2)
	lines := make([]payloads.OrderLine, 0, len(c.Lines))
	for i, l := range c.Lines {
		order.Items = append(order.Items, models.OrderLineItem{
			OrderID:   order.ID,
			ProductID: l.ProductID,
			Name:      l.Name,
			Size:      l.Size,
			Roast:     l.Roast,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			LineTotal: l.Subtotal().Round(2),
			Position:  i,
		})
		lines = append(lines, payloads.OrderLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Size:      l.Size,
			Roast:     l.Roast,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	now := s.now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if order.PickupSlotID != nil {
			slot, err := s.calendar.ClaimTx(ctx, tx, *order.PickupSlotID, order.ID, now)
			if err != nil {
				return err
			}
			pickupAt := slot.StartsAt
			order.PickupAt = &pickupAt
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.BackingStore(err, "create order")
		}
		return s.emit(ctx, tx, id, enums.EventOrderPlaced, order.ID, payloads.OrderPlacedEvent{
			OrderID:        order.ID,
			UserID:         order.UserID,
			CustomerEmail:  order.UserEmail,
			CustomerName:   order.CustomerName,
			DeliveryMethod: order.DeliveryMethod,
			PaymentMethod:  order.PaymentMethod,
			PickupAt:       order.PickupAt,
			Total:          order.Total,
			Lines:          lines,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderPlaced(string(order.PaymentMethod), string(order.DeliveryMethod))
	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithOrderID(s.logg.WithUserID(ctx, id.UserID.String()), order.ID.String())
		s.logg.Info(logCtx, "order placed")
	}
	if err := s.carts.Clear(ctx, id.UserID); err != nil && s.logg != nil {
		s.logg.Error(logCtx, "clear cart after order", err)
	}
	return s.load(ctx, order.ID)
}

// ConfirmPayment takes each line's quantity out of stock, then marks the order
// confirmed. Lines are stamped as they are applied, so a retry after a partial
// failure only touches the lines that were not applied yet.
func (s *service) ConfirmPayment(ctx context.Context, id *access.Identity, orderID uuid.UUID) (*OrderDTO, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}
	order, err := s.find(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.InvalidTransition(string(order.Status), string(enums.OrderStatusConfirmed))
	}

	lines, err := s.repo.UnappliedLines(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "load order lines")
	}
	for _, line := range lines {
		if err := s.applyLine(ctx, orderID, line); err != nil {
			return nil, err
		}
	}

	return s.transition(ctx, id, orderID, enums.OrderStatusConfirmed, nil)
}

func (s *service) applyLine(ctx context.Context, orderID uuid.UUID, line models.OrderLineItem) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.InvalidTransition(string(order.Status), string(enums.OrderStatusConfirmed))
		}
		stamped, err := repo.MarkLineApplied(ctx, line.ID, s.now().UTC())
		if err != nil {
			return pkgerrors.BackingStore(err, "stamp order line")
		}
		if !stamped {
			return nil
		}
		_, err = s.catalog.DecrementStockTx(ctx, tx, line.ProductID, line.Size, line.Quantity)
		return err
	})
}

// CancelOrder abandons a pending order. Stock is untouched; a held pickup slot
// goes back on offer. An order whose confirmation already took stock for
// some lines cannot be cancelled; finish the confirmation instead.
func (s *service) CancelOrder(ctx context.Context, id *access.Identity, orderID uuid.UUID) (*OrderDTO, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, orderID, enums.OrderStatusCancelled, func(tx *gorm.DB, _ *models.Order) (bool, error) {
		applied, err := s.repo.WithTx(tx).CountAppliedLines(ctx, orderID)
		if err != nil {
			return false, pkgerrors.BackingStore(err, "count applied lines")
		}
		if applied > 0 {
			return false, pkgerrors.New(pkgerrors.CodeStateConflict, "confirmation already took stock for this order; retry confirm").
				WithDetails(map[string]any{"applied_lines": applied})
		}
		return s.calendar.ReleaseTx(ctx, tx, orderID)
	})
}

// MarkFulfilled closes out a confirmed order.
func (s *service) MarkFulfilled(ctx context.Context, id *access.Identity, orderID uuid.UUID) (*OrderDTO, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, orderID, enums.OrderStatusFulfilled, nil)
}

// ListOrdersFor pages through orders newest first. The admin sees every
// order; anyone else sees only their own.
func (s *service) ListOrdersFor(ctx context.Context, id *access.Identity, params pagination.Params) (*OrderList, error) {
	if err := access.RequireUser(id); err != nil {
		return nil, err
	}
	var owner *uuid.UUID
	if !s.policy.IsAdmin(id.Email) {
		userID := id.UserID
		owner = &userID
	}
	list, err := s.repo.List(ctx, owner, params)
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			return nil, pkgerrors.Validation("invalid cursor")
		}
		return nil, pkgerrors.BackingStore(err, "list orders")
	}
	return list, nil
}

// GetOrder returns one order to its owner or the admin. Everyone else gets
// NotFound so order ids cannot be probed.
func (s *service) GetOrder(ctx context.Context, id *access.Identity, orderID uuid.UUID) (*OrderDTO, error) {
	if err := access.RequireUser(id); err != nil {
		return nil, err
	}
	order, err := s.find(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != id.UserID && !s.policy.IsAdmin(id.Email) {
		return nil, pkgerrors.NotFound("order")
	}
	dto := FromModel(*order)
	return &dto, nil
}

type transitionHook func(tx *gorm.DB, order *models.Order) (bool, error)

func (s *service) transition(ctx context.Context, id *access.Identity, orderID uuid.UUID, to enums.OrderStatus, hook transitionHook) (*OrderDTO, error) {
	var from enums.OrderStatus
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		if !from.CanTransitionTo(to) {
			return pkgerrors.InvalidTransition(string(from), string(to))
		}
		now := s.now().UTC()
		moved, err := repo.UpdateStatus(ctx, orderID, from, to, now)
		if err != nil {
			return pkgerrors.BackingStore(err, "update order status")
		}
		if !moved {
			return pkgerrors.InvalidTransition(string(from), string(to))
		}

		released := false
		if hook != nil {
			if released, err = hook(tx, order); err != nil {
				return err
			}
		}

		event, _ := enums.EventForStatus(to)
		return s.emit(ctx, tx, id, event, orderID, payloads.OrderStatusChangedEvent{
			OrderID:       orderID,
			UserID:        order.UserID,
			CustomerEmail: order.UserEmail,
			From:          from,
			To:            to,
			ChangedAt:     now,
			SlotReleased:  released,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderTransition(string(from), string(to))
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{
			"from": string(from),
			"to":   string(to),
		})
		s.logg.Info(logCtx, "order status changed")
	}
	return s.load(ctx, orderID)
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, id *access.Identity, event enums.OutboxEventType, orderID uuid.UUID, data any) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor: &outbox.ActorRef{
			UserID: id.UserID,
			Email:  id.Email,
			Admin:  s.policy.IsAdmin(id.Email),
		},
		Data:       data,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		return pkgerrors.BackingStore(err, "emit "+string(event))
	}
	return nil
}

func (s *service) checkStock(ctx context.Context, c *cart.Cart) error {
	for _, l := range c.Lines {
		level, err := s.catalog.Stock(ctx, l.ProductID, l.Size)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return pkgerrors.Validation(fmt.Sprintf("%s is no longer available", lineLabel(l))).
					WithDetails(map[string]any{"line": l.Key})
			}
			return err
		}
		if l.Quantity > level.Quantity {
			return pkgerrors.Validation(fmt.Sprintf("only %d left of %s", level.Quantity, lineLabel(l))).
				WithDetails(map[string]any{"line": l.Key, "available": level.Quantity})
		}
	}
	return nil
}

func (s *service) paymentInfo(method enums.PaymentMethod) (string, error) {
	var handle string
	switch method {
	case "":
		return "", pkgerrors.Validation("choose a payment method")
	case enums.PaymentMethodCash:
		return cashPaymentInfo, nil
	case enums.PaymentMethodVenmo:
		handle = s.store.VenmoHandle
	case enums.PaymentMethodCashApp:
		handle = s.store.CashAppHandle
	default:
		return "", pkgerrors.Validation(fmt.Sprintf("unknown payment method %q", method))
	}
	if strings.TrimSpace(handle) == "" {
		return "", pkgerrors.Validation(fmt.Sprintf("%s payments are not accepted right now", method))
	}
	return handle, nil
}

func (s *service) find(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("order")
		}
		return nil, pkgerrors.BackingStore(err, "load order")
	}
	return order, nil
}

func (s *service) lock(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.LockByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("order")
		}
		return nil, pkgerrors.BackingStore(err, "lock order")
	}
	return order, nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.find(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*order)
	return &dto, nil
}

func customerName(id *access.Identity) string {
	if name := strings.TrimSpace(id.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(id.Email, "@")
	return local
}

func lineLabel(l cart.Line) string {
	parts := []string{l.Name}
	if l.Size != "" {
		parts = append(parts, l.Size)
	}
	if l.Roast != "" {
		parts = append(parts, l.Roast)
	}
	return strings.Join(parts, " / ")
}
