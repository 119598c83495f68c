package enums

import "fmt"

// PaymentMethod describes how a customer intends to pay. Settlement happens
// outside the system; the admin confirms payment by hand.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodVenmo   PaymentMethod = "venmo"
	PaymentMethodCashApp PaymentMethod = "cashapp"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodVenmo,
	PaymentMethodCashApp,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// DeliveryMethod is how the order reaches the customer.
type DeliveryMethod string

const (
	DeliveryMethodPickup   DeliveryMethod = "pickup"
	DeliveryMethodDelivery DeliveryMethod = "delivery"
)

// String implements fmt.Stringer.
func (d DeliveryMethod) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryMethod.
func (d DeliveryMethod) IsValid() bool {
	return d == DeliveryMethodPickup || d == DeliveryMethodDelivery
}

// ParseDeliveryMethod converts raw input into a DeliveryMethod.
func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	d := DeliveryMethod(value)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid delivery method %q", value)
	}
	return d, nil
}
