package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectableStatuses(t *testing.T) {
	tests := []struct {
		name    string
		current OrderStatus
		want    []OrderStatus
	}{
		{"pending", OrderStatusPending, []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered}},
		{"paid", OrderStatusPaid, []OrderStatus{OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered}},
		{"shipped", OrderStatusShipped, []OrderStatus{OrderStatusShipped, OrderStatusDelivered}},
		{"delivered is terminal", OrderStatusDelivered, nil},
		{"cancelled is terminal", OrderStatusCancelled, nil},
		{"unknown status selects nothing", OrderStatus("Refunded"), nil},
		{"empty status selects nothing", OrderStatus(""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectableStatuses(tt.current))
		})
	}
}

func TestSelectableStatuses_NeverGoesBackward(t *testing.T) {
	for _, current := range StatusFlow {
		for _, st := range SelectableStatuses(current) {
			assert.GreaterOrEqual(t, st.Index(), current.Index(), "%s offered from %s", st, current)
			assert.NotEqual(t, OrderStatusCancelled, st)
		}
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusDelivered, true},
		{OrderStatusPaid, OrderStatusPaid, true},
		{OrderStatusShipped, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusPaid, false},
		{OrderStatusShipped, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusDelivered, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatus("bogus"), OrderStatusPaid, false},
		{OrderStatusPaid, OrderStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestCanCancel(t *testing.T) {
	assert.True(t, CanCancel(OrderStatusPending))
	assert.True(t, CanCancel(OrderStatusPaid))
	assert.True(t, CanCancel(OrderStatusShipped))
	assert.False(t, CanCancel(OrderStatusDelivered))
	assert.False(t, CanCancel(OrderStatusCancelled))
	assert.False(t, CanCancel(OrderStatus("")))
}

func TestParseOrderStatus(t *testing.T) {
	st, ok := ParseOrderStatus("  shipped ")
	assert.True(t, ok)
	assert.Equal(t, OrderStatusShipped, st)

	_, ok = ParseOrderStatus("returned")
	assert.False(t, ok)
}

func TestOrderStatus_Index(t *testing.T) {
	assert.Equal(t, 0, OrderStatusPending.Index())
	assert.Equal(t, 2, OrderStatusShipped.Index())
	assert.Equal(t, 4, OrderStatusCancelled.Index())
	assert.Equal(t, -1, OrderStatus("x").Index())
}
