package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	t.Run("accepts known statuses case-insensitively", func(t *testing.T) {
		status, err := ParseOrderStatus(" Shipped ")
		require.NoError(t, err)
		assert.Equal(t, OrderStatusShipped, status)

		status, err = ParseOrderStatus("OUT_FOR_DELIVERY")
		require.NoError(t, err)
		assert.Equal(t, OrderStatusOutForDelivery, status)
	})

	t.Run("rejects anything outside the closed set", func(t *testing.T) {
		_, err := ParseOrderStatus("teleported")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownOrderStatus))
	})
}

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusOutForDelivery, true},
		{OrderStatusOutForDelivery, OrderStatusDelivered, true},
		{OrderStatusOutForDelivery, OrderStatusShipped, false},
		{OrderStatusOutForDelivery, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusRefunded, true},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusConfirmed, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusConfirmed, OrderStatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusRefunded.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusOutForDelivery.IsTerminal())
	assert.False(t, OrderStatus("bogus").IsTerminal())
}

func TestOrderStatus_Title(t *testing.T) {
	assert.Equal(t, "Shipped", OrderStatusShipped.Title())
	assert.Equal(t, "Out for delivery", OrderStatusOutForDelivery.Title())
	assert.Equal(t, "", OrderStatus("").Title())
}

func TestAddress_ScanValueRoundTrip(t *testing.T) {
	addr := Address{FullName: "Asha Rao", City: "Pune", PostalCode: "411001"}

	v, err := addr.Value()
	require.NoError(t, err)

	var scanned Address
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, addr, scanned)

	require.Error(t, scanned.Scan(42))
}

func TestOrder_ExpectedTotal(t *testing.T) {
	order := Order{
		Subtotal:       decimal.RequireFromString("600"),
		TaxAmount:      decimal.RequireFromString("108"),
		ShippingAmount: decimal.RequireFromString("99"),
		CODAmount:      decimal.RequireFromString("50"),
		DiscountAmount: decimal.RequireFromString("20"),
	}

	assert.True(t, order.ExpectedTotal().Equal(decimal.RequireFromString("837")))
}

func TestCartSubtotal(t *testing.T) {
	items := []CartItem{
		{UnitPrice: decimal.RequireFromString("59.99"), Quantity: 2},
		{UnitPrice: decimal.RequireFromString("10.02"), Quantity: 1},
	}
	assert.True(t, CartSubtotal(items).Equal(decimal.RequireFromString("130")))
}
