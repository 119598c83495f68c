package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threshingfloor/roastery-backend/pkg/db/models"
)

// DLQRepository stores order events the publisher gave up on, so they can be
// inspected and replayed by hand.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx writes entry in the publisher's batch transaction.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncate(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// ListForOrder returns the dead-lettered events of one order, oldest first.
func (r *DLQRepository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.OutboxDLQ, error) {
	var rows []models.OutboxDLQ
	err := r.db.WithContext(ctx).
		Where("aggregate_id = ?", orderID).
		Order("failed_at ASC").
		Find(&rows).Error
	return rows, err
}

// DeleteFailedBefore drops entries older than cutoff and returns the count.
func (r *DLQRepository) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("failed_at < ?", cutoff.UTC()).
		Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}
