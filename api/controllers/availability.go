package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/threshingfloor/roastery-backend/api/responses"
	"github.com/threshingfloor/roastery-backend/api/validators"
	"github.com/threshingfloor/roastery-backend/internal/access"
	"github.com/threshingfloor/roastery-backend/internal/availability"
	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
)

type addSlotRequest struct {
	StartsAt time.Time `json:"starts_at" validate:"required"`
}

type setDayRequest struct {
	Times []string `json:"times" validate:"dive,required,clock"`
}

type copyDayRequest struct {
	To string `json:"to" validate:"required,datetime=2006-01-02"`
}

func parseDayParam(r *http.Request) (availability.Day, error) {
	day, err := availability.ParseDay(chi.URLParam(r, "day"))
	if err != nil {
		return availability.Day{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()).WithDetails(map[string]any{"field": "day"})
	}
	return day, nil
}

// PickupSlots lists the slots a customer can book right now, optionally
// limited to the day given as ?date=YYYY-MM-DD.
func PickupSlots(svc availability.Service, clock func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if clock == nil {
		clock = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := validators.QueryString(r, "date", len("2006-01-02"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var slots []availability.SlotDTO
		if raw == "" {
			slots, err = svc.OfferableSlots(r.Context(), clock())
		} else {
			day, perr := availability.ParseDay(raw)
			if perr != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, perr, perr.Error()).WithDetails(map[string]any{"field": "date"}))
				return
			}
			slots, err = svc.OfferableSlotsOn(r.Context(), clock(), day)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"slots": slots})
	}
}

// AdminListSlots returns every slot, claimed or not.
func AdminListSlots(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.ListSlots(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"slots": slots})
	}
}

func AdminAddSlot(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body addSlotRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, _ := access.FromContext(r.Context())
		slot, err := svc.AddSlot(r.Context(), id, body.StartsAt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, slot)
	}
}

func AdminRemoveSlot(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, err := validators.ParseUUIDParam(r, "slotId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, _ := access.FromContext(r.Context())
		if err := svc.RemoveSlot(r.Context(), id, slotID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// AdminGetDay returns the slots on one calendar day.
func AdminGetDay(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := parseDayParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		slots, err := svc.SlotsOnDay(r.Context(), day)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"day": day.String(), "slots": slots})
	}
}

// AdminSetDay makes the day's slots exactly the given HH:MM times.
func AdminSetDay(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := parseDayParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body setDayRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		times := make([]availability.ClockTime, 0, len(body.Times))
		for _, raw := range body.Times {
			c, err := availability.ParseClock(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()).WithDetails(map[string]any{"field": "times"}))
				return
			}
			times = append(times, c)
		}
		id, _ := access.FromContext(r.Context())
		slots, err := svc.SetDay(r.Context(), id, day, times)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"day": day.String(), "slots": slots})
	}
}

func AdminCopyDay(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := parseDayParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body copyDayRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := availability.ParseDay(body.To)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()).WithDetails(map[string]any{"field": "to"}))
			return
		}
		id, _ := access.FromContext(r.Context())
		slots, err := svc.CopyDay(r.Context(), id, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"day": to.String(), "slots": slots})
	}
}

func AdminClearDay(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := parseDayParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, _ := access.FromContext(r.Context())
		removed, err := svc.ClearDay(r.Context(), id, day)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"day": day.String(), "removed": removed})
	}
}
