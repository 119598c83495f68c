package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threshingfloor/roastery-backend/internal/access"
	"github.com/threshingfloor/roastery-backend/pkg/db"
	"github.com/threshingfloor/roastery-backend/pkg/db/models"
	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
	"github.com/threshingfloor/roastery-backend/pkg/metrics"
)

// DefaultLeadTime is how far ahead of now a slot must start to be offered.
const DefaultLeadTime = time.Hour

const slotUnavailableMessage = "pickup slot is no longer available"

// Service manages the pickup calendar.
type Service interface {
	ListSlots(ctx context.Context) ([]SlotDTO, error)
	AddSlot(ctx context.Context, id *access.Identity, startsAt time.Time) (*SlotDTO, error)
	RemoveSlot(ctx context.Context, id *access.Identity, slotID uuid.UUID) error
	OfferableSlots(ctx context.Context, now time.Time) ([]SlotDTO, error)
	OfferableSlotsOn(ctx context.Context, now time.Time, day Day) ([]SlotDTO, error)
	SlotsOnDay(ctx context.Context, day Day) ([]SlotDTO, error)
	SetDay(ctx context.Context, id *access.Identity, day Day, times []ClockTime) ([]SlotDTO, error)
	CopyDay(ctx context.Context, id *access.Identity, from, to Day) ([]SlotDTO, error)
	ClearDay(ctx context.Context, id *access.Identity, day Day) (int64, error)
	ClaimTx(ctx context.Context, tx *gorm.DB, slotID, orderID uuid.UUID, now time.Time) (*SlotDTO, error)
	ReleaseTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
	PrunePast(ctx context.Context, before time.Time) (int64, error)
}

// ServiceParams bundles the calendar dependencies.
type ServiceParams struct {
	Repo     *Repository
	DB       db.TxRunner
	Policy   *access.Policy
	Location *time.Location
	LeadTime time.Duration
	Metrics  *metrics.StoreMetrics
	Logger   *logger.Logger
}

type service struct {
	repo    *Repository
	db      db.TxRunner
	policy  *access.Policy
	loc     *time.Location
	lead    time.Duration
	metrics *metrics.StoreMetrics
	logg    *logger.Logger
}

// NewService constructs the calendar service. Location defaults to UTC and
// LeadTime to DefaultLeadTime.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("availability repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Policy == nil {
		return nil, fmt.Errorf("access policy required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	lead := params.LeadTime
	if lead <= 0 {
		lead = DefaultLeadTime
	}
	return &service{
		repo:    params.Repo,
		db:      params.DB,
		policy:  params.Policy,
		loc:     loc,
		lead:    lead,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *service) ListSlots(ctx context.Context) ([]SlotDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "list slots")
	}
	return sorted(fromModels(rows)), nil
}

func (s *service) AddSlot(ctx context.Context, id *access.Identity, startsAt time.Time) (*SlotDTO, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}
	if startsAt.IsZero() {
		return nil, pkgerrors.Validation("slot time is required")
	}
	ts := startsAt.UTC().Truncate(time.Minute)

	exists, err := s.repo.ExistsAt(ctx, ts)
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "check slot")
	}
	if exists {
		return nil, duplicateSlot(ts)
	}
	slot := models.AvailabilitySlot{StartsAt: ts}
	if err := s.repo.Create(ctx, &slot); err != nil {
		if db.IsUniqueViolation(err, "ux_availability_slots_starts_at") {
			return nil, duplicateSlot(ts)
		}
		return nil, pkgerrors.BackingStore(err, "create slot")
	}
	dto := FromModel(slot)
	return &dto, nil
}

func (s *service) RemoveSlot(ctx context.Context, id *access.Identity, slotID uuid.UUID) error {
	if err := s.policy.RequireAdmin(id); err != nil {
		return err
	}
	slot, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.NotFound("slot")
		}
		return pkgerrors.BackingStore(err, "load slot")
	}
	if slot.ClaimedByOrderID != nil {
		return claimedSlot(*slot.ClaimedByOrderID)
	}
	removed, err := s.repo.DeleteUnclaimed(ctx, slotID)
	if err != nil {
		return pkgerrors.BackingStore(err, "delete slot")
	}
	if !removed {
		// claimed between the read and the delete
		return pkgerrors.New(pkgerrors.CodeStateConflict, "slot is held by an order")
	}
	return nil
}

// OfferableSlots lists unclaimed slots that start strictly after now plus the lead time.
func (s *service) OfferableSlots(ctx context.Context, now time.Time) ([]SlotDTO, error) {
	cutoff := now.UTC().Add(s.lead)
	rows, err := s.repo.ListUnclaimedAfter(ctx, cutoff)
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "list offerable slots")
	}
	out := make([]SlotDTO, 0, len(rows))
	for _, r := range rows {
		if r.StartsAt.After(cutoff) {
			out = append(out, FromModel(r))
		}
	}
	return sorted(out), nil
}

// OfferableSlotsOn narrows OfferableSlots to one calendar day in the shop's
// time zone.
func (s *service) OfferableSlotsOn(ctx context.Context, now time.Time, day Day) ([]SlotDTO, error) {
	from, to := day.Bounds(s.loc)
	cutoff := now.UTC().Add(s.lead)
	if !to.After(cutoff) {
		return []SlotDTO{}, nil
	}
	rows, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "list offerable slots for day")
	}
	out := make([]SlotDTO, 0, len(rows))
	for _, r := range rows {
		if r.ClaimedByOrderID == nil && r.StartsAt.After(cutoff) {
			out = append(out, FromModel(r))
		}
	}
	return sorted(out), nil
}

func (s *service) SlotsOnDay(ctx context.Context, day Day) ([]SlotDTO, error) {
	from, to := day.Bounds(s.loc)
	rows, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "list slots for day")
	}
	return sorted(fromModels(rows)), nil
}

// SetDay replaces the unclaimed slots on day with one slot per distinct time.
// Slots held by orders stay where they are.
func (s *service) SetDay(ctx context.Context, id *access.Identity, day Day, times []ClockTime) ([]SlotDTO, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}
	for _, c := range times {
		if !c.valid() {
			return nil, pkgerrors.Validation(fmt.Sprintf("invalid time %s", c))
		}
	}
	from, to := day.Bounds(s.loc)

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.DeleteUnclaimedBetween(ctx, from, to); err != nil {
			return err
		}
		seen := map[time.Time]bool{}
		for _, c := range times {
			ts := day.At(c, s.loc)
			if seen[ts] {
				continue
			}
			seen[ts] = true
			exists, err := repo.ExistsAt(ctx, ts)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := repo.Create(ctx, &models.AvailabilitySlot{StartsAt: ts}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "replace day slots")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"day": day.String(), "times": len(times)})
		s.logg.Info(logCtx, "calendar day updated")
	}
	return s.SlotsOnDay(ctx, day)
}

// CopyDay applies the wall-clock times of every slot on from to the day to.
func (s *service) CopyDay(ctx context.Context, id *access.Identity, from, to Day) ([]SlotDTO, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}
	if from == to {
		return nil, pkgerrors.Validation("source and target day are the same")
	}
	source, err := s.SlotsOnDay(ctx, from)
	if err != nil {
		return nil, err
	}
	times := make([]ClockTime, 0, len(source))
	for _, slot := range source {
		times = append(times, ClockOf(slot.StartsAt, s.loc))
	}
	return s.SetDay(ctx, id, to, times)
}

func (s *service) ClearDay(ctx context.Context, id *access.Identity, day Day) (int64, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return 0, err
	}
	from, to := day.Bounds(s.loc)
	removed, err := s.repo.DeleteUnclaimedBetween(ctx, from, to)
	if err != nil {
		return 0, pkgerrors.BackingStore(err, "clear day")
	}
	return removed, nil
}

// ClaimTx reserves the slot for orderID inside the caller's transaction.
func (s *service) ClaimTx(ctx context.Context, tx *gorm.DB, slotID, orderID uuid.UUID, now time.Time) (*SlotDTO, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	tx = tx.WithContext(ctx)
	claimed, err := s.repo.ClaimTx(tx, slotID, orderID, now.UTC().Add(s.lead))
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "claim slot")
	}
	s.metrics.SlotClaim(claimed)
	if !claimed {
		return nil, pkgerrors.Validation(slotUnavailableMessage)
	}
	slot, err := s.repo.WithTx(tx).FindByID(ctx, slotID)
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "load claimed slot")
	}
	dto := FromModel(*slot)
	return &dto, nil
}

// ReleaseTx puts any slot held by orderID back on offer.
func (s *service) ReleaseTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction required")
	}
	n, err := s.repo.ReleaseTx(tx.WithContext(ctx), orderID)
	if err != nil {
		return false, pkgerrors.BackingStore(err, "release slot")
	}
	return n > 0, nil
}

// PrunePast deletes unclaimed slots that started before the cutoff.
func (s *service) PrunePast(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.repo.DeleteUnclaimedBefore(ctx, before)
	if err != nil {
		return 0, pkgerrors.BackingStore(err, "prune slots")
	}
	return n, nil
}

func sorted(slots []SlotDTO) []SlotDTO {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].StartsAt.Before(slots[j].StartsAt)
	})
	return slots
}

func duplicateSlot(ts time.Time) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "a slot already exists at that time").
		WithDetails(map[string]any{"reason": "DUPLICATE_SLOT", "starts_at": ts.Format(time.RFC3339)})
}

func claimedSlot(orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "slot is held by an order").
		WithDetails(map[string]any{"order_id": orderID.String()})
}
