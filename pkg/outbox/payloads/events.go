package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/threshingfloor/roastery-backend/pkg/enums"
)

// OrderLine is the line snapshot carried on order events.
type OrderLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Roast     string          `json:"roast,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderPlacedEvent is emitted when a customer places an order.
type OrderPlacedEvent struct {
	OrderID        uuid.UUID            `json:"order_id"`
	UserID         uuid.UUID            `json:"user_id"`
	CustomerEmail  string               `json:"customer_email"`
	CustomerName   string               `json:"customer_name"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	PaymentMethod  enums.PaymentMethod  `json:"payment_method"`
	PickupAt       *time.Time           `json:"pickup_at,omitempty"`
	Total          decimal.Decimal      `json:"total"`
	Lines          []OrderLine          `json:"lines"`
}

// OrderStatusChangedEvent covers confirm, cancel and fulfil transitions.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	UserID        uuid.UUID         `json:"user_id"`
	CustomerEmail string            `json:"customer_email"`
	From          enums.OrderStatus `json:"from"`
	To            enums.OrderStatus `json:"to"`
	ChangedAt     time.Time         `json:"changed_at"`
	// SlotReleased is set on cancellation when a pickup slot went back on offer.
	SlotReleased bool `json:"slot_released,omitempty"`
}

func (e OrderPlacedEvent) OrderRef() uuid.UUID { return e.OrderID }

func (e OrderStatusChangedEvent) OrderRef() uuid.UUID { return e.OrderID }
