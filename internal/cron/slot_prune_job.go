package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/threshingfloor/roastery-backend/pkg/logger"
)

const defaultSlotRetention = 7 * 24 * time.Hour

type SlotPruneJobParams struct {
	Logger    *logger.Logger
	Calendar  slotPruner
	Retention time.Duration
	Clock     func() time.Time
}

type slotPruner interface {
	PrunePast(ctx context.Context, before time.Time) (int64, error)
}

// NewSlotPruneJob removes pickup slots that ended unclaimed more than
// Retention ago. Claimed slots stay because orders reference them.
func NewSlotPruneJob(params SlotPruneJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Calendar == nil {
		return nil, fmt.Errorf("availability service required")
	}
	retention := params.Retention
	if retention < 0 {
		return nil, fmt.Errorf("slot retention must not be negative")
	}
	if retention == 0 {
		retention = defaultSlotRetention
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &slotPruneJob{logg: params.Logger, calendar: params.Calendar, retention: retention, now: now}, nil
}

type slotPruneJob struct {
	logg      *logger.Logger
	calendar  slotPruner
	retention time.Duration
	now       func() time.Time
}

func (j *slotPruneJob) Name() string { return "slot_prune" }

func (j *slotPruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	removed, err := j.calendar.PrunePast(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune slots: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"slots_removed": removed,
	}), "past pickup slots pruned")
	return nil
}
