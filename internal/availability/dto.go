package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/threshingfloor/roastery-backend/pkg/db/models"
)

// SlotDTO is the API view of a pickup slot.
type SlotDTO struct {
	ID               uuid.UUID  `json:"id"`
	StartsAt         time.Time  `json:"starts_at"`
	Claimed          bool       `json:"claimed"`
	ClaimedByOrderID *uuid.UUID `json:"claimed_by_order_id,omitempty"`
}

// FromModel maps a slot row to its API view.
func FromModel(s models.AvailabilitySlot) SlotDTO {
	return SlotDTO{
		ID:               s.ID,
		StartsAt:         s.StartsAt.UTC(),
		Claimed:          s.ClaimedByOrderID != nil,
		ClaimedByOrderID: s.ClaimedByOrderID,
	}
}

func fromModels(rows []models.AvailabilitySlot) []SlotDTO {
	out := make([]SlotDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromModel(r))
	}
	return out
}
