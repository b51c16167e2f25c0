// Package workflow enforces the order lifecycle with a statekit machine.
package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/kicksideshop/orderapi/internal/domain"
	pkgerrors "github.com/kicksideshop/orderapi/pkg/errors"
)

// Event names for the order machine.
const (
	EventToPending   statekit.EventType = "TO_PENDING"
	EventToPaid      statekit.EventType = "TO_PAID"
	EventToShipped   statekit.EventType = "TO_SHIPPED"
	EventToDelivered statekit.EventType = "TO_DELIVERED"
	EventCancel      statekit.EventType = "CANCEL"
)

// State IDs mirror domain.OrderStatus values.
var (
	StateIDPending   = statekit.StateID(domain.OrderStatusPending)
	StateIDPaid      = statekit.StateID(domain.OrderStatusPaid)
	StateIDShipped   = statekit.StateID(domain.OrderStatusShipped)
	StateIDDelivered = statekit.StateID(domain.OrderStatusDelivered)
	StateIDCancelled = statekit.StateID(domain.OrderStatusCancelled)
)

const machineID = "order-lifecycle"

// OrderContext is the machine context. Transitions carry no guards so it stays empty.
type OrderContext struct{}

// EventFor returns the event that moves an order into status.
func EventFor(status domain.OrderStatus) (statekit.EventType, bool) {
	switch status {
	case domain.OrderStatusPending:
		return EventToPending, true
	case domain.OrderStatusPaid:
		return EventToPaid, true
	case domain.OrderStatusShipped:
		return EventToShipped, true
	case domain.OrderStatusDelivered:
		return EventToDelivered, true
	case domain.OrderStatusCancelled:
		return EventCancel, true
	}
	return "", false
}

// Lifecycle validates status changes server-side. One machine is built per
// non-terminal starting status because statekit interpreters always begin at
// the machine's initial state.
type Lifecycle struct {
	interpreters map[domain.OrderStatus]func() *statekit.Interpreter[OrderContext]
}

// NewLifecycle builds the order machines.
func NewLifecycle() (*Lifecycle, error) {
	l := &Lifecycle{
		interpreters: make(map[domain.OrderStatus]func() *statekit.Interpreter[OrderContext]),
	}

	for _, initial := range []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusPaid,
		domain.OrderStatusShipped,
	} {
		machine, err := statekit.NewMachine[OrderContext](machineID).
			WithInitial(statekit.StateID(initial)).
			// Pending state
			State(StateIDPending).
			On(EventToPending).Target(StateIDPending).
			On(EventToPaid).Target(StateIDPaid).
			On(EventToShipped).Target(StateIDShipped).
			On(EventToDelivered).Target(StateIDDelivered).
			On(EventCancel).Target(StateIDCancelled).
			Done().
			// Paid state
			State(StateIDPaid).
			On(EventToPaid).Target(StateIDPaid).
			On(EventToShipped).Target(StateIDShipped).
			On(EventToDelivered).Target(StateIDDelivered).
			On(EventCancel).Target(StateIDCancelled).
			Done().
			// Shipped state
			State(StateIDShipped).
			On(EventToShipped).Target(StateIDShipped).
			On(EventToDelivered).Target(StateIDDelivered).
			On(EventCancel).Target(StateIDCancelled).
			Done().
			// Delivered state (terminal)
			State(StateIDDelivered).
			Final().
			Done().
			// Cancelled state (terminal)
			State(StateIDCancelled).
			Final().
			Done().
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build order state machine from %s: %w", initial, err)
		}

		l.interpreters[initial] = func() *statekit.Interpreter[OrderContext] {
			return statekit.NewInterpreter(machine)
		}
	}

	return l, nil
}

// Validate returns *errors.ErrInvalidStateTransition when the machine does not
// move from into to.
func (l *Lifecycle) Validate(from, to domain.OrderStatus) error {
	invalid := &pkgerrors.ErrInvalidStateTransition{From: from, To: to}

	newInterp, ok := l.interpreters[from]
	if !ok {
		return invalid
	}
	event, ok := EventFor(to)
	if !ok {
		return invalid
	}

	interp := newInterp()
	interp.Start()
	interp.Send(statekit.Event{Type: event})

	if interp.State().Value != statekit.StateID(to) {
		return invalid
	}
	return nil
}

// Allowed lists the statuses reachable from from, Cancelled included, in StatusFlow order.
func (l *Lifecycle) Allowed(from domain.OrderStatus) []domain.OrderStatus {
	var out []domain.OrderStatus
	for _, st := range domain.StatusFlow {
		if l.Validate(from, st) == nil {
			out = append(out, st)
		}
	}
	return out
}

// XStateJSON represents the XState JSON format for visualization.
type XStateJSON struct {
	ID      string                     `json:"id"`
	Initial string                     `json:"initial"`
	States  map[string]XStateStateJSON `json:"states"`
}

// XStateStateJSON represents a state in XState JSON format.
type XStateStateJSON struct {
	Type string                      `json:"type,omitempty"`
	On   map[string]XStateTransition `json:"on,omitempty"`
}

// XStateTransition represents a transition in XState JSON format.
type XStateTransition struct {
	Target string `json:"target"`
}

// ExportXStateJSON exports the lifecycle as XState-compatible JSON for tooling.
func (l *Lifecycle) ExportXStateJSON() ([]byte, error) {
	x := XStateJSON{
		ID:      machineID,
		Initial: string(domain.OrderStatusPending),
		States:  make(map[string]XStateStateJSON, len(domain.StatusFlow)),
	}

	for _, from := range domain.StatusFlow {
		if from.IsTerminal() {
			x.States[string(from)] = XStateStateJSON{Type: "final"}
			continue
		}
		on := make(map[string]XStateTransition)
		for _, to := range l.Allowed(from) {
			event, _ := EventFor(to)
			on[string(event)] = XStateTransition{Target: string(to)}
		}
		x.States[string(from)] = XStateStateJSON{On: on}
	}

	return json.MarshalIndent(x, "", "  ")
}
