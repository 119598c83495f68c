package orders

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/threshingfloor/roastery-backend/pkg/db/models"
	"github.com/threshingfloor/roastery-backend/pkg/enums"
	"github.com/threshingfloor/roastery-backend/pkg/types"
)

// ErrInvalidCursor is returned by List when the cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// PlaceOrderInput is what a customer submits at checkout.
type PlaceOrderInput struct {
	DeliveryMethod  enums.DeliveryMethod
	PickupSlotID    *uuid.UUID
	ShippingAddress *types.Address
	PaymentMethod   enums.PaymentMethod
}

// OrderDTO is the API view of an order.
type OrderDTO struct {
	ID              uuid.UUID            `json:"id"`
	UserID          uuid.UUID            `json:"user_id"`
	UserEmail       string               `json:"user_email"`
	CustomerName    string               `json:"customer_name"`
	Status          enums.OrderStatus    `json:"status"`
	DeliveryMethod  enums.DeliveryMethod `json:"delivery_method"`
	PickupSlotID    *uuid.UUID           `json:"pickup_slot_id,omitempty"`
	PickupAt        *time.Time           `json:"pickup_at,omitempty"`
	PickupAddress   *string              `json:"pickup_address,omitempty"`
	ShippingAddress *types.Address       `json:"shipping_address,omitempty"`
	PaymentMethod   enums.PaymentMethod  `json:"payment_method"`
	PaymentInfo     string               `json:"payment_info"`
	Total           decimal.Decimal      `json:"total"`
	Items           []LineItemDTO        `json:"items"`
	ConfirmedAt     *time.Time           `json:"confirmed_at,omitempty"`
	FulfilledAt     *time.Time           `json:"fulfilled_at,omitempty"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// LineItemDTO is one frozen order line.
type LineItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	Name         string          `json:"name"`
	Size         string          `json:"size,omitempty"`
	Roast        string          `json:"roast,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
	StockApplied bool            `json:"stock_applied"`
}

// OrderList is one page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// FromModel maps an order row and its items to the API view.
func FromModel(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		UserEmail:       o.UserEmail,
		CustomerName:    o.CustomerName,
		Status:          o.Status,
		DeliveryMethod:  o.DeliveryMethod,
		PickupSlotID:    o.PickupSlotID,
		PickupAt:        utcPtr(o.PickupAt),
		PickupAddress:   o.PickupAddress,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		PaymentInfo:     o.PaymentInfo,
		Total:           o.Total,
		Items:           make([]LineItemDTO, 0, len(o.Items)),
		ConfirmedAt:     utcPtr(o.ConfirmedAt),
		FulfilledAt:     utcPtr(o.FulfilledAt),
		CancelledAt:     utcPtr(o.CancelledAt),
		CreatedAt:       o.CreatedAt.UTC(),
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, LineItemDTO{
			ID:           item.ID,
			ProductID:    item.ProductID,
			Name:         item.Name,
			Size:         item.Size,
			Roast:        item.Roast,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
			LineTotal:    item.LineTotal,
			StockApplied: item.StockAppliedAt != nil,
		})
	}
	return dto
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
