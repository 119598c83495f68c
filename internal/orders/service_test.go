package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/threshingfloor/roastery-backend/internal/access"
	"github.com/threshingfloor/roastery-backend/internal/availability"
	"github.com/threshingfloor/roastery-backend/internal/cart"
	"github.com/threshingfloor/roastery-backend/internal/catalog"
	"github.com/threshingfloor/roastery-backend/pkg/config"
	"github.com/threshingfloor/roastery-backend/pkg/db"
	"github.com/threshingfloor/roastery-backend/pkg/db/dbtest"
	"github.com/threshingfloor/roastery-backend/pkg/enums"
	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
	"github.com/threshingfloor/roastery-backend/pkg/outbox"
	"github.com/threshingfloor/roastery-backend/pkg/pagination"
	"github.com/threshingfloor/roastery-backend/pkg/types"
)

const (
	adminEmail    = "admin@coffeeshop.com"
	pickupAddress = "1234 Roasting Lane, Coffee City, CA 90210"
)

var admin = &access.Identity{UserID: uuid.New(), Email: adminEmail, Name: "Owner", IsAdmin: true}

type memoryKV struct {
	data map[string]string
}

func (m *memoryKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if b, ok := value.([]byte); ok {
		m.data[key] = string(b)
		return nil
	}
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryKV) CartKey(userID string) string {
	return "rs:cart:" + userID
}

// flakyCatalog fails the first decrement of one product, then behaves.
type flakyCatalog struct {
	catalog.Service
	failOnce map[uuid.UUID]bool
}

func (f *flakyCatalog) DecrementStockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) (bool, error) {
	if f.failOnce[productID] {
		delete(f.failOnce, productID)
		return false, pkgerrors.BackingStore(errors.New("connection reset"), "decrement stock")
	}
	return f.Service.DecrementStockTx(ctx, tx, productID, size, qty)
}

type harness struct {
	t        *testing.T
	client   *db.Client
	svc      Service
	catalog  catalog.Service
	flaky    *flakyCatalog
	calendar availability.Service
	carts    cart.Service
	events   *outbox.Repository
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t)
	policy := access.NewPolicy(adminEmail)
	h := &harness{t: t, client: client, now: time.Date(2026, 11, 2, 16, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }

	cat, err := catalog.NewService(catalog.ServiceParams{Repo: catalog.NewRepository(client.DB()), DB: client, Policy: policy})
	require.NoError(t, err)
	cal, err := availability.NewService(availability.ServiceParams{Repo: availability.NewRepository(client.DB()), DB: client, Policy: policy})
	require.NoError(t, err)
	carts, err := cart.NewService(cart.ServiceParams{Store: &memoryKV{data: map[string]string{}}, Catalog: cat, Clock: clock})
	require.NoError(t, err)
	h.events = outbox.NewRepository(client.DB())
	h.flaky = &flakyCatalog{Service: cat, failOnce: map[uuid.UUID]bool{}}

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(client.DB()),
		DB:       client,
		Policy:   policy,
		Carts:    carts,
		Catalog:  h.flaky,
		Calendar: cal,
		Outbox:   outbox.NewService(h.events, nil),
		Store: config.StoreConfig{
			PickupAddress: pickupAddress,
			VenmoHandle:   "roastery-venmo",
		},
		Clock: clock,
	})
	require.NoError(t, err)
	h.svc, h.catalog, h.calendar, h.carts = svc, cat, cal, carts
	return h
}

func (h *harness) customer(email string) *access.Identity {
	return &access.Identity{UserID: uuid.New(), Email: email}
}

func (h *harness) product(name string, variants ...catalog.VariantInput) *catalog.ProductDTO {
	h.t.Helper()
	p, err := h.catalog.Create(context.Background(), admin, catalog.ProductInput{
		Name:     name,
		Roasts:   []string{"Light", "Dark"},
		Variants: variants,
	})
	require.NoError(h.t, err)
	return p
}

func (h *harness) slot(in time.Duration) *availability.SlotDTO {
	h.t.Helper()
	s, err := h.calendar.AddSlot(context.Background(), admin, h.now.Add(in))
	require.NoError(h.t, err)
	return s
}

func (h *harness) add(id *access.Identity, productID uuid.UUID, size string, times int) {
	h.t.Helper()
	for i := 0; i < times; i++ {
		_, added, err := h.carts.AddLine(context.Background(), id.UserID, productID, size, "Light")
		require.NoError(h.t, err)
		require.True(h.t, added)
	}
}

func (h *harness) stock(productID uuid.UUID, size string) int {
	h.t.Helper()
	level, err := h.catalog.Stock(context.Background(), productID, size)
	require.NoError(h.t, err)
	return level.Quantity
}

func (h *harness) eventTypes(orderID uuid.UUID) []enums.OutboxEventType {
	h.t.Helper()
	rows, err := h.events.ListForAggregate(context.Background(), orderID)
	require.NoError(h.t, err)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.EventType)
	}
	return out
}

func (h *harness) pickup(id *access.Identity, slotID uuid.UUID) (*OrderDTO, error) {
	return h.svc.PlaceOrder(context.Background(), id, PlaceOrderInput{
		DeliveryMethod: enums.DeliveryMethodPickup,
		PickupSlotID:   &slotID,
		PaymentMethod:  enums.PaymentMethodCash,
	})
}

func sizes(v ...string) []catalog.VariantInput {
	out := []catalog.VariantInput{}
	for _, s := range v {
		out = append(out, catalog.VariantInput{Size: s, Price: decimal.RequireFromString("18.50"), Quantity: 5})
	}
	return out
}

func TestPlacePickupOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jane := h.customer("jane@example.com")
	bean := h.product("Ethiopia Guji", sizes("12oz", "2lb")...)
	slot := h.slot(2 * time.Hour)
	h.add(jane, bean.ID, "12oz", 2)

	order, err := h.pickup(jane, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, "jane", order.CustomerName)
	assert.Equal(t, cashPaymentInfo, order.PaymentInfo)
	require.NotNil(t, order.PickupAddress)
	assert.Equal(t, pickupAddress, *order.PickupAddress)
	require.NotNil(t, order.PickupAt)
	assert.True(t, order.PickupAt.Equal(slot.StartsAt))
	assert.True(t, order.Total.Equal(decimal.RequireFromString("37")))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.False(t, order.Items[0].StockApplied)

	c, err := h.carts.Get(ctx, jane.UserID)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 5, h.stock(bean.ID, "12oz"), "placing an order does not touch stock")
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderPlaced}, h.eventTypes(order.ID))

	offered, err := h.calendar.OfferableSlots(ctx, h.now)
	require.NoError(t, err)
	assert.Empty(t, offered)
}

func TestPlaceDeliveryOrderWithVenmo(t *testing.T) {
	h := newHarness(t)
	jane := h.customer("jane@example.com")
	bean := h.product("Ethiopia Guji", sizes("12oz")...)
	h.add(jane, bean.ID, "12oz", 1)

	order, err := h.svc.PlaceOrder(context.Background(), jane, PlaceOrderInput{
		DeliveryMethod:  enums.DeliveryMethodDelivery,
		ShippingAddress: &types.Address{Street: " 1 Main St ", City: "Fresno", State: "CA", Zip: "93650"},
		PaymentMethod:   enums.PaymentMethodVenmo,
	})
	require.NoError(t, err)
	assert.Equal(t, "roastery-venmo", order.PaymentInfo)
	assert.Nil(t, order.PickupAddress)
	require.NotNil(t, order.ShippingAddress)
	assert.Equal(t, "1 Main St", order.ShippingAddress.Street)
}

func TestPlaceOrderPreconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jane := h.customer("jane@example.com")
	bean := h.product("Ethiopia Guji", sizes("12oz")...)
	slot := h.slot(2 * time.Hour)
	slotID := slot.ID

	_, err := h.svc.PlaceOrder(ctx, nil, PlaceOrderInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "login required", pkgerrors.As(err).Message())

	_, err = h.pickup(jane, slotID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "cart is empty", pkgerrors.As(err).Message())

	h.add(jane, bean.ID, "12oz", 1)
	cases := map[string]PlaceOrderInput{
		"choose a delivery method": {PaymentMethod: enums.PaymentMethodCash},
		"choose a pickup time":     {DeliveryMethod: enums.DeliveryMethodPickup, PaymentMethod: enums.PaymentMethodCash},
		"shipping address is incomplete": {
			DeliveryMethod:  enums.DeliveryMethodDelivery,
			ShippingAddress: &types.Address{Street: "1 Main St", City: "Fresno", State: " "},
			PaymentMethod:   enums.PaymentMethodCash,
		},
		"choose a payment method":                     {DeliveryMethod: enums.DeliveryMethodPickup, PickupSlotID: &slotID},
		"cashapp payments are not accepted right now": {DeliveryMethod: enums.DeliveryMethodPickup, PickupSlotID: &slotID, PaymentMethod: enums.PaymentMethodCashApp},
	}
	for want, input := range cases {
		t.Run(want, func(t *testing.T) {
			_, err := h.svc.PlaceOrder(ctx, jane, input)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
			assert.Equal(t, want, pkgerrors.As(err).Message())
		})
	}

	list, err := h.svc.ListOrdersFor(ctx, admin, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, list.Orders)
	c, err := h.carts.Get(ctx, jane.UserID)
	require.NoError(t, err)
	assert.False(t, c.IsEmpty(), "failed placement keeps the cart")
}

func TestPlaceOrderRevalidatesStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jane := h.customer("jane@example.com")
	bean := h.product("Ethiopia Guji", sizes("12oz")...)
	slot := h.slot(2 * time.Hour)
	h.add(jane, bean.ID, "12oz", 3)

	_, err := h.catalog.Update(ctx, admin, bean.ID, catalog.ProductInput{
		Name:     "Ethiopia Guji",
		Roasts:   []string{"Light", "Dark"},
		Variants: []catalog.VariantInput{{Size: "12oz", Price: decimal.RequireFromString("18.50"), Quantity: 2}},
	})
	require.NoError(t, err)

	_, err = h.pickup(jane, slot.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, pkgerrors.As(err).Message(), "only 2 left")

	offered, err := h.calendar.OfferableSlots(ctx, h.now)
	require.NoError(t, err)
	assert.Len(t, offered, 1, "rejected order must not hold the slot")
}

func TestPickupSlotIsExclusive(t *testing.T) {
	h := newHarness(t)
	jane := h.customer("jane@example.com")
	joe := h.customer("joe@example.com")
	bean := h.product("Ethiopia Guji", sizes("12oz")...)
	slot := h.slot(2 * time.Hour)
	h.add(jane, bean.ID, "12oz", 1)
	h.add(joe, bean.ID, "12oz", 1)

	_, err := h.pickup(jane, slot.ID)
	require.NoError(t, err)
	_, err = h.pickup(joe, slot.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "pickup slot is no longer available", pkgerrors.As(err).Message())

	list, err := h.svc.ListOrdersFor(context.Background(), admin, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 1)
}

func TestConfirmPaymentDecrementsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jane := h.customer("jane@example.com")
	bean := h.product("Ethiopia Guji", sizes("12oz", "2lb")...)
	slot := h.slot(2 * time.Hour)
	h.add(jane, bean.ID, "12oz", 2)
	h.add(jane, bean.ID, "2lb", 1)
	order, err := h.pickup(jane, slot.ID)
	require.NoError(t, err)
	h.now = h.now.Add(time.Minute)

	_, err = h.svc.ConfirmPayment(ctx, jane, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	_, err = h.svc.ConfirmPayment(ctx, nil, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	confirmed, err := h.svc.ConfirmPayment(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	for _, item := range confirmed.Items {
		assert.True(t, item.StockApplied)
	}
	assert.Equal(t, 3, h.stock(bean.ID, "12oz"))
	assert.Equal(t, 4, h.stock(bean.ID, "2lb"))

	_, err = h.svc.ConfirmPayment(ctx, admin, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, 3, h.stock(bean.ID, "12oz"), "second confirm leaves stock alone")
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderPlaced, enums.EventOrderConfirmed}, h.eventTypes(order.ID))

	_, err = h.svc.ConfirmPayment(ctx, admin, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConfirmPaymentRetryAppliesRemainingLinesOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jane := h.customer("jane@example.com")
	first := h.product("Ethiopia Guji", sizes("12oz")...)
	second := h.product("Colombia Huila", sizes("12oz")...)
	slot := h.slot(2 * time.Hour)
	h.add(jane, first.ID, "12oz", 2)
	h.add(jane, second.ID, "12oz", 1)
	order, err := h.pickup(jane, slot.ID)
	require.NoError(t, err)

	h.flaky.failOnce[second.ID] = true
	_, err = h.svc.ConfirmPayment(ctx, admin, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	partial, err := h.svc.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, partial.Status)
	assert.True(t, partial.Items[0].StockApplied)
	assert.False(t, partial.Items[1].StockApplied)
	assert.Equal(t, 3, h.stock(first.ID, "12oz"))
	assert.Equal(t, 5, h.stock(second.ID, "12oz"))

	confirmed, err := h.svc.ConfirmPayment(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, confirmed.Status)
	assert.Equal(t, 3, h.stock(first.ID, "12oz"))
	assert.Equal(t, 4, h.stock(second.ID, "12oz"))
}

func TestCancelRefusedAfterPartialConfirm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jane := h.customer("jane@example.com")
	first := h.product("Ethiopia Guji", sizes("12oz")...)
	second := h.product("Colombia Huila", sizes("12oz")...)
	slot := h.slot(2 * time.Hour)
	h.add(jane, first.ID, "12oz", 2)
	h.add(jane, second.ID, "12oz", 1)
	order, err := h.pickup(jane, slot.ID)
	require.NoError(t, err)

	h.flaky.failOnce[second.ID] = true
	_, err = h.svc.ConfirmPayment(ctx, admin, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = h.svc.CancelOrder(ctx, admin, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	still, err := h.svc.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, still.Status)
	offered, err := h.calendar.OfferableSlots(ctx, h.now)
	require.NoError(t, err)
	assert.Empty(t, offered, "slot stays held while the order is pending")
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderPlaced}, h.eventTypes(order.ID))

	confirmed, err := h.svc.ConfirmPayment(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, confirmed.Status)
}

func TestConfirmPaymentFloorsStockAndAbsorbsDeletedProducts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jane := h.customer("jane@example.com")
	joe := h.customer("joe@example.com")
	bean := h.product("Ethiopia Guji", sizes("12oz")...)
	gone := h.product("Seasonal Blend", sizes("12oz")...)

	h.add(jane, bean.ID, "12oz", 4)
	h.add(jane, gone.ID, "12oz", 1)
	h.add(joe, bean.ID, "12oz", 3)
	janeOrder, err := h.pickup(jane, h.slot(2*time.Hour).ID)
	require.NoError(t, err)
	joeOrder, err := h.pickup(joe, h.slot(3*time.Hour).ID)
	require.NoError(t, err)
	require.NoError(t, h.catalog.Delete(ctx, admin, gone.ID))

	_, err = h.svc.ConfirmPayment(ctx, admin, janeOrder.ID)
	require.NoError(t, err)
	_, err = h.svc.ConfirmPayment(ctx, admin, joeOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, h.stock(bean.ID, "12oz"))
}

func TestCancelAndFulfil(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jane := h.customer("jane@example.com")
	bean := h.product("Ethiopia Guji", sizes("12oz")...)
	slot := h.slot(2 * time.Hour)

	h.add(jane, bean.ID, "12oz", 1)
	cancelled, err := h.pickup(jane, slot.ID)
	require.NoError(t, err)

	_, err = h.svc.MarkFulfilled(ctx, admin, cancelled.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = h.svc.CancelOrder(ctx, jane, cancelled.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	out, err := h.svc.CancelOrder(ctx, admin, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, out.Status)
	require.NotNil(t, out.CancelledAt)
	assert.Equal(t, 5, h.stock(bean.ID, "12oz"))
	_, err = h.svc.ConfirmPayment(ctx, admin, cancelled.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	offered, err := h.calendar.OfferableSlots(ctx, h.now)
	require.NoError(t, err)
	require.Len(t, offered, 1, "cancellation releases the slot")

	h.add(jane, bean.ID, "12oz", 1)
	order, err := h.pickup(jane, slot.ID)
	require.NoError(t, err)
	h.now = h.now.Add(time.Minute)
	_, err = h.svc.ConfirmPayment(ctx, admin, order.ID)
	require.NoError(t, err)
	h.now = h.now.Add(time.Minute)
	_, err = h.svc.CancelOrder(ctx, admin, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	done, err := h.svc.MarkFulfilled(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFulfilled, done.Status)
	require.NotNil(t, done.FulfilledAt)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderPlaced, enums.EventOrderConfirmed, enums.EventOrderFulfilled}, h.eventTypes(order.ID))
}

func TestListAndGetAreScopedToOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jane := h.customer("jane@example.com")
	joe := h.customer("joe@example.com")
	bean := h.product("Ethiopia Guji", []catalog.VariantInput{{Size: "12oz", Price: decimal.RequireFromString("18.50"), Quantity: 50}}...)

	place := func(id *access.Identity) *OrderDTO {
		h.add(id, bean.ID, "12oz", 1)
		h.now = h.now.Add(time.Minute)
		order, err := h.svc.PlaceOrder(ctx, id, PlaceOrderInput{
			DeliveryMethod:  enums.DeliveryMethodDelivery,
			ShippingAddress: &types.Address{Street: "1 Main St", City: "Fresno", State: "CA", Zip: "93650"},
			PaymentMethod:   enums.PaymentMethodCash,
		})
		require.NoError(t, err)
		return order
	}
	var janeOrders []*OrderDTO
	for i := 0; i < 3; i++ {
		janeOrders = append(janeOrders, place(jane))
	}
	joeOrder := place(joe)

	page, err := h.svc.ListOrdersFor(ctx, jane, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, janeOrders[2].ID, page.Orders[0].ID)
	assert.Equal(t, janeOrders[1].ID, page.Orders[1].ID)
	require.NotEmpty(t, page.NextCursor)

	next, err := h.svc.ListOrdersFor(ctx, jane, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Orders, 1)
	assert.Equal(t, janeOrders[0].ID, next.Orders[0].ID)
	assert.Empty(t, next.NextCursor)

	all, err := h.svc.ListOrdersFor(ctx, admin, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, all.Orders, 4)
	assert.Equal(t, joeOrder.ID, all.Orders[0].ID)

	_, err = h.svc.GetOrder(ctx, joe, janeOrders[0].ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	got, err := h.svc.GetOrder(ctx, jane, janeOrders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, janeOrders[0].ID, got.ID)
	_, err = h.svc.GetOrder(ctx, admin, joeOrder.ID)
	require.NoError(t, err)

	_, err = h.svc.ListOrdersFor(ctx, nil, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	_, err = h.svc.ListOrdersFor(ctx, jane, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
