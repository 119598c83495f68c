package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threshingfloor/roastery-backend/internal/availability"
	"github.com/threshingfloor/roastery-backend/internal/cart"
	"github.com/threshingfloor/roastery-backend/internal/catalog"
	"github.com/threshingfloor/roastery-backend/pkg/db/models"
	"github.com/threshingfloor/roastery-backend/pkg/enums"
	"github.com/threshingfloor/roastery-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UnappliedLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error)
	MarkLineApplied(ctx context.Context, lineID uuid.UUID, at time.Time) (bool, error)
	CountAppliedLines(ctx context.Context, orderID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time) (bool, error)
	List(ctx context.Context, userID *uuid.UUID, params pagination.Params) (*OrderList, error)
}

type cartStore interface {
	Get(ctx context.Context, owner uuid.UUID) (*cart.Cart, error)
	Clear(ctx context.Context, owner uuid.UUID) error
}

type stockKeeper interface {
	Stock(ctx context.Context, productID uuid.UUID, size string) (*catalog.StockLevel, error)
	DecrementStockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) (bool, error)
}

type slotClaimer interface {
	ClaimTx(ctx context.Context, tx *gorm.DB, slotID, orderID uuid.UUID, now time.Time) (*availability.SlotDTO, error)
	ReleaseTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
}
