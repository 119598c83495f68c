package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/threshingfloor/roastery-backend/pkg/enums"
	"github.com/threshingfloor/roastery-backend/pkg/types"
)

// Order is a customer's placed order. Items and Total are frozen at placement.
type Order struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	UserEmail       string               `gorm:"column:user_email;not null"`
	CustomerName    string               `gorm:"column:customer_name;not null"`
	Status          enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	DeliveryMethod  enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null"`
	PickupSlotID    *uuid.UUID           `gorm:"column:pickup_slot_id;type:uuid"`
	PickupAt        *time.Time           `gorm:"column:pickup_at"`
	PickupAddress   *string              `gorm:"column:pickup_address"`
	ShippingAddress *types.Address       `gorm:"column:shipping_address;type:jsonb"`
	PaymentMethod   enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null"`
	PaymentInfo     string               `gorm:"column:payment_info;not null"`
	Total           decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null"`
	Items           []OrderLineItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedAt     *time.Time           `gorm:"column:confirmed_at"`
	FulfilledAt     *time.Time           `gorm:"column:fulfilled_at"`
	CancelledAt     *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderLineItem snapshots one cart line. StockAppliedAt marks that the
// line's quantity has already been taken out of the catalog.
type OrderLineItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name           string          `gorm:"column:name;not null"`
	Size           string          `gorm:"column:size;not null;default:''"`
	Roast          string          `gorm:"column:roast;not null;default:''"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	LineTotal      decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	Position       int             `gorm:"column:position;not null;default:0"`
	StockAppliedAt *time.Time      `gorm:"column:stock_applied_at"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (li *OrderLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&li.ID)
	return nil
}
