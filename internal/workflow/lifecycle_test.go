package workflow

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kicksideshop/orderapi/internal/domain"
	pkgerrors "github.com/kicksideshop/orderapi/pkg/errors"
)

func newLifecycle(t *testing.T) *Lifecycle {
	t.Helper()
	l, err := NewLifecycle()
	require.NoError(t, err)
	return l
}

func TestLifecycle_AgreesWithPolicy(t *testing.T) {
	l := newLifecycle(t)

	statuses := append([]domain.OrderStatus{"Refunded"}, domain.StatusFlow...)
	for _, from := range statuses {
		for _, to := range statuses {
			err := l.Validate(from, to)
			assert.Equal(t, from.CanTransitionTo(to), err == nil, "%s -> %s", from, to)
		}
	}
}

func TestLifecycle_Validate_ReturnsTypedError(t *testing.T) {
	l := newLifecycle(t)

	err := l.Validate(domain.OrderStatusShipped, domain.OrderStatusPaid)
	require.Error(t, err)

	var transitionErr *pkgerrors.ErrInvalidStateTransition
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, domain.OrderStatusShipped, transitionErr.From)
	assert.Equal(t, domain.OrderStatusPaid, transitionErr.To)
}

func TestLifecycle_Allowed(t *testing.T) {
	l := newLifecycle(t)

	assert.Equal(t, []domain.OrderStatus{
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	}, l.Allowed(domain.OrderStatusShipped))
	assert.Empty(t, l.Allowed(domain.OrderStatusDelivered))
	assert.Empty(t, l.Allowed(domain.OrderStatusCancelled))
}

func TestLifecycle_ExportXStateJSON(t *testing.T) {
	l := newLifecycle(t)

	raw, err := l.ExportXStateJSON()
	require.NoError(t, err)

	var x XStateJSON
	require.NoError(t, json.Unmarshal(raw, &x))
	assert.Equal(t, "Pending", x.Initial)
	assert.Equal(t, "final", x.States["Delivered"].Type)
	assert.Equal(t, "final", x.States["Cancelled"].Type)
	assert.Equal(t, "Cancelled", x.States["Paid"].On["CANCEL"].Target)
	assert.NotContains(t, x.States["Shipped"].On, "TO_PAID")
}

func TestEventFor(t *testing.T) {
	ev, ok := EventFor(domain.OrderStatusShipped)
	assert.True(t, ok)
	assert.Equal(t, EventToShipped, ev)

	_, ok = EventFor("Lost")
	assert.False(t, ok)
}
