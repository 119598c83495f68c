package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/threshingfloor/roastery-backend/api/responses"
	"github.com/threshingfloor/roastery-backend/api/validators"
	"github.com/threshingfloor/roastery-backend/internal/access"
	"github.com/threshingfloor/roastery-backend/internal/orders"
	"github.com/threshingfloor/roastery-backend/pkg/enums"
	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
	"github.com/threshingfloor/roastery-backend/pkg/pagination"
	"github.com/threshingfloor/roastery-backend/pkg/types"
)

const maxCursorLen = 256

type placeOrderRequest struct {
	DeliveryMethod  string         `json:"delivery_method" validate:"required,oneof=pickup delivery"`
	PickupSlotID    *uuid.UUID     `json:"pickup_slot_id,omitempty"`
	ShippingAddress *types.Address `json:"shipping_address,omitempty"`
	PaymentMethod   string         `json:"payment_method" validate:"required,oneof=cash venmo cashapp"`
}

func (p placeOrderRequest) toInput() (orders.PlaceOrderInput, error) {
	delivery, err := enums.ParseDeliveryMethod(strings.TrimSpace(p.DeliveryMethod))
	if err != nil {
		return orders.PlaceOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery_method")
	}
	payment, err := enums.ParsePaymentMethod(strings.TrimSpace(p.PaymentMethod))
	if err != nil {
		return orders.PlaceOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method")
	}
	return orders.PlaceOrderInput{
		DeliveryMethod:  delivery,
		PickupSlotID:    p.PickupSlotID,
		ShippingAddress: p.ShippingAddress,
		PaymentMethod:   payment,
	}, nil
}

// PlaceOrder turns the caller's cart into a pending order.
func PlaceOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body placeOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, _ := access.FromContext(r.Context())
		order, err := svc.PlaceOrder(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// ListOrders pages through the caller's orders, or every order for the admin.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := validators.QueryString(r, "cursor", maxCursorLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{Limit: limit, Cursor: cursor}
		id, _ := access.FromContext(r.Context())
		list, err := svc.ListOrdersFor(r.Context(), id, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, _ := access.FromContext(r.Context())
		order, err := svc.GetOrder(r.Context(), id, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type orderTransition func(ctx context.Context, id *access.Identity, orderID uuid.UUID) (*orders.OrderDTO, error)

func adminOrderAction(run orderTransition, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, _ := access.FromContext(r.Context())
		order, err := run(r.Context(), id, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminConfirmPayment marks a pending order paid and applies its stock.
func AdminConfirmPayment(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderAction(svc.ConfirmPayment, logg)
}

// AdminCancelOrder cancels a pending order and frees its pickup slot.
func AdminCancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderAction(svc.CancelOrder, logg)
}

func AdminFulfilOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderAction(svc.MarkFulfilled, logg)
}
