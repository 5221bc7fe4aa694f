package checkout

import (
	"fmt"
	"sort"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/validation"
)

// Request is everything needed to place one order. When CartID is set the
// items are read from the server-side cart and Items is ignored.
type Request struct {
	UserID          string               `json:"user_id" validate:"notblank"`
	CustomerEmail   string               `json:"customer_email,omitempty" validate:"omitempty,email"`
	CartID          string               `json:"cart_id,omitempty"`
	Items           []domain.CartItem    `json:"items" validate:"required,min=1,dive"`
	ShippingAddress domain.Address       `json:"shipping_address"`
	BillingAddress  *domain.Address      `json:"billing_address,omitempty"`
	PaymentMethod   domain.PaymentMethod `json:"payment_method" validate:"required,oneof=credit_card debit_card upi net_banking cod"`
	CouponCode      string               `json:"coupon_code,omitempty"`
	Notes           string               `json:"notes,omitempty"`
	IdempotencyKey  string               `json:"-"`
}

// Billing returns the billing address, defaulting to the shipping address.
func (r *Request) Billing() domain.Address {
	if r.BillingAddress == nil {
		return r.ShippingAddress
	}
	return *r.BillingAddress
}

// ValidationError maps request fields to user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

var messages = map[string]string{
	"user_id":                         "Please sign in to place an order",
	"customer_email":                  "Please enter a valid email address",
	"items":                           "Your cart is empty",
	"shipping_address.full_name":      "Please enter your full name",
	"shipping_address.phone":          "Please enter your phone number",
	"shipping_address.address_line_1": "Please enter your address",
	"shipping_address.city":           "Please select or enter your city",
	"shipping_address.state":          "Please select your state",
	"shipping_address.postal_code":    "Please enter your postal code",
	"payment_method":                  "Please select a payment method",
}

type Validator struct {
	validate *validatorv10.Validate
	pricing  Pricing
}

func NewValidator(pricing Pricing) *Validator {
	v := validation.New()
	v.RegisterStructValidation(func(sl validatorv10.StructLevel) {
		req := sl.Current().Interface().(Request)
		if req.PaymentMethod.IsCOD() && !pricing.MeetsCODMinimum(domain.CartSubtotal(req.Items)) {
			sl.ReportError(req.PaymentMethod, "payment_method", "PaymentMethod", "cod_minimum", "")
		}
	}, Request{})

	return &Validator{validate: v, pricing: pricing}
}

// Validate returns a *ValidationError describing every failing field, or nil.
func (v *Validator) Validate(req Request) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate request: %w", err)
	}

	out := &ValidationError{Fields: make(map[string]string, len(ve))}
	for _, fe := range ve {
		field := strings.TrimPrefix(fe.Namespace(), "Request.")
		if _, seen := out.Fields[field]; seen {
			continue
		}
		out.Fields[field] = v.message(field, fe.Tag())
	}
	return out
}

func (v *Validator) message(field, tag string) string {
	switch {
	case tag == "pincode":
		return "Please enter a valid 6-digit PIN code"
	case tag == "cod_minimum":
		return fmt.Sprintf("Minimum order amount for COD is ₹%s", v.pricing.CODMinimum.String())
	case strings.HasPrefix(field, "billing_address."):
		return "Please complete the billing address"
	case strings.HasSuffix(field, ".quantity"):
		return "Quantity must be at least 1"
	case strings.HasSuffix(field, ".unit_price"):
		return "Price must be greater than zero"
	}
	if msg, ok := messages[field]; ok {
		return msg
	}
	return "is invalid"
}
