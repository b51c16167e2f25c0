// Package notify fans order status changes out to external subscribers.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kicksideshop/orderapi/internal/domain"
)

// StatusChangedEvent is published after a process entry has been stored.
type StatusChangedEvent struct {
	OrderID        uuid.UUID          `json:"orderId"`
	TrackingNumber string             `json:"trackingNumber"`
	SellerID       uuid.UUID          `json:"sellerId"`
	From           domain.OrderStatus `json:"from"`
	To             domain.OrderStatus `json:"to"`
	Process        string             `json:"process"`
	Version        int                `json:"version"`
	Courier        *CourierPayload    `json:"courier,omitempty"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// CourierPayload is the courier snapshot carried by a shipped event.
type CourierPayload struct {
	Name           string `json:"name"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

// NewStatusChangedEvent builds the event for an order that moved from -> order.Status via entry.
func NewStatusChangedEvent(order *domain.Order, from domain.OrderStatus, entry domain.ProcessEntry) StatusChangedEvent {
	ev := StatusChangedEvent{
		OrderID:        order.ID,
		TrackingNumber: order.TrackingNumber,
		SellerID:       order.SellerID,
		From:           from,
		To:             entry.Status,
		Process:        entry.Process,
		Version:        order.Version,
		OccurredAt:     entry.Date,
	}
	if order.Courier != nil {
		ev.Courier = &CourierPayload{Name: order.Courier.Name, TrackingNumber: order.Courier.TrackingNumber}
	}
	return ev
}

// Notifier is told about every stored status change.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, event StatusChangedEvent) error
}

// Nop discards events.
type Nop struct{}

func (Nop) OrderStatusChanged(context.Context, StatusChangedEvent) error { return nil }

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) OrderStatusChanged(ctx context.Context, event StatusChangedEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.OrderStatusChanged(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
