package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/threshingfloor/roastery-backend/api/responses"
	"github.com/threshingfloor/roastery-backend/api/validators"
	"github.com/threshingfloor/roastery-backend/internal/access"
	"github.com/threshingfloor/roastery-backend/internal/cart"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
)

// Line keys embed a uuid plus size and roast labels.
const maxLineKeyLen = 200

type addCartLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Size      string    `json:"size" validate:"max=60"`
	Roast     string    `json:"roast" validate:"max=60"`
}

type setCartQuantityRequest struct {
	Key      string `json:"key" validate:"required,max=200"`
	Quantity int    `json:"quantity"`
}

type cartResponse struct {
	Cart  cart.View `json:"cart"`
	Added *bool     `json:"added,omitempty"`
}

func cartOwner(r *http.Request) (uuid.UUID, error) {
	id, _ := access.FromContext(r.Context())
	if err := access.RequireUser(id); err != nil {
		return uuid.Nil, err
	}
	return id.UserID, nil
}

func CartGet(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.Get(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartResponse{Cart: c.ToView()})
	}
}

// CartAddLine adds one unit. Out-of-stock products leave the cart unchanged
// and report added=false.
func CartAddLine(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body addCartLineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, added, err := svc.AddLine(r.Context(), owner, body.ProductID, body.Size, body.Roast)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartResponse{Cart: c.ToView(), Added: &added})
	}
}

// CartSetQuantity caps the quantity at current stock; zero removes the line.
func CartSetQuantity(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body setCartQuantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.SetQuantity(r.Context(), owner, body.Key, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartResponse{Cart: c.ToView()})
	}
}

func CartRemoveLine(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		key, err := validators.RequireQueryString(r, "key", maxLineKeyLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.RemoveLine(r.Context(), owner, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartResponse{Cart: c.ToView()})
	}
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Clear(r.Context(), owner); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
