package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AvailabilitySlot is a bookable pickup time. ClaimedByOrderID is set while a
// pickup order holds the slot.
type AvailabilitySlot struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	StartsAt         time.Time  `gorm:"column:starts_at;not null;uniqueIndex:ux_availability_slots_starts_at"`
	ClaimedByOrderID *uuid.UUID `gorm:"column:claimed_by_order_id;type:uuid"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (s *AvailabilitySlot) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
