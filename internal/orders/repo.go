package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/threshingfloor/roastery-backend/pkg/db/models"
	"github.com/threshingfloor/roastery-backend/pkg/enums"
	"github.com/threshingfloor/roastery-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC")
	})
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := withItems(r.db.WithContext(ctx)).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByID reads the order row FOR UPDATE. Use it inside a transaction.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UnappliedLines returns line items whose stock has not been taken yet.
func (r *repository) UnappliedLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND stock_applied_at IS NULL", orderID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// CountAppliedLines counts line items whose stock was already taken.
func (r *repository) CountAppliedLines(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Where("order_id = ? AND stock_applied_at IS NOT NULL", orderID).
		Count(&n).Error
	return n, err
}

// MarkLineApplied stamps a line once. It reports false if it was already stamped.
func (r *repository) MarkLineApplied(ctx context.Context, lineID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Where("id = ? AND stock_applied_at IS NULL", lineID).
		UpdateColumn("stock_applied_at", at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateStatus moves the order from one status to another, stamping the
// matching timestamp column. It reports false if the order was not in from.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at.UTC(),
	}
	switch to {
	case enums.OrderStatusConfirmed:
		updates["confirmed_at"] = at.UTC()
	case enums.OrderStatusFulfilled:
		updates["fulfilled_at"] = at.UTC()
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = at.UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// List returns orders newest first, optionally restricted to one user.
func (r *repository) List(ctx context.Context, userID *uuid.UUID, params pagination.Params) (*OrderList, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	q := withItems(r.db.WithContext(ctx)).Model(&models.Order{})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt.UTC(), cursor.CreatedAt.UTC(), cursor.ID)
	}

	var rows []models.Order
	err = q.Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows))}
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	for _, row := range rows {
		list.Orders = append(list.Orders, FromModel(row))
	}
	return list, nil
}
