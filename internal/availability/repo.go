package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threshingfloor/roastery-backend/pkg/db/models"
)

// Repository persists pickup slots. All instants are stored in UTC.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// List returns every slot, earliest first.
func (r *Repository) List(ctx context.Context) ([]models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	if err := r.db.WithContext(ctx).Order("starts_at ASC").Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

// ListBetween returns slots starting in [from, to).
func (r *Repository) ListBetween(ctx context.Context, from, to time.Time) ([]models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	err := r.db.WithContext(ctx).
		Where("starts_at >= ? AND starts_at < ?", from.UTC(), to.UTC()).
		Order("starts_at ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// ListUnclaimedAfter returns unclaimed slots starting strictly after cutoff.
func (r *Repository) ListUnclaimedAfter(ctx context.Context, cutoff time.Time) ([]models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	err := r.db.WithContext(ctx).
		Where("claimed_by_order_id IS NULL AND starts_at > ?", cutoff.UTC()).
		Order("starts_at ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// FindByID loads one slot.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AvailabilitySlot, error) {
	var slot models.AvailabilitySlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

// ExistsAt reports whether a slot starts at exactly ts.
func (r *Repository) ExistsAt(ctx context.Context, ts time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AvailabilitySlot{}).
		Where("starts_at = ?", ts.UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a slot.
func (r *Repository) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	slot.StartsAt = slot.StartsAt.UTC()
	return r.db.WithContext(ctx).Create(slot).Error
}

// DeleteUnclaimed removes a slot unless an order holds it. It reports whether a row was removed.
func (r *Repository) DeleteUnclaimed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND claimed_by_order_id IS NULL", id).
		Delete(&models.AvailabilitySlot{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteUnclaimedBetween removes unclaimed slots starting in [from, to).
func (r *Repository) DeleteUnclaimedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("claimed_by_order_id IS NULL AND starts_at >= ? AND starts_at < ?", from.UTC(), to.UTC()).
		Delete(&models.AvailabilitySlot{})
	return res.RowsAffected, res.Error
}

// DeleteUnclaimedBefore removes unclaimed slots starting before cutoff.
func (r *Repository) DeleteUnclaimedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("claimed_by_order_id IS NULL AND starts_at < ?", cutoff.UTC()).
		Delete(&models.AvailabilitySlot{})
	return res.RowsAffected, res.Error
}

// ClaimTx assigns the slot to orderID if it is unclaimed and starts after
// cutoff. It reports false when another order won or the slot is too soon.
func (r *Repository) ClaimTx(tx *gorm.DB, slotID, orderID uuid.UUID, cutoff time.Time) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	res := tx.Model(&models.AvailabilitySlot{}).
		Where("id = ? AND claimed_by_order_id IS NULL AND starts_at > ?", slotID, cutoff.UTC()).
		UpdateColumn("claimed_by_order_id", orderID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseTx clears any claim held by orderID.
func (r *Repository) ReleaseTx(tx *gorm.DB, orderID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	res := tx.Model(&models.AvailabilitySlot{}).
		Where("claimed_by_order_id = ?", orderID).
		UpdateColumn("claimed_by_order_id", nil)
	return res.RowsAffected, res.Error
}
