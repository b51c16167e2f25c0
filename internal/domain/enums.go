package domain

import "strings"

// OrderStatus represents the fulfilment status of an order
type OrderStatus string

const (
	// PENDING - order placed, awaiting payment
	OrderStatusPending OrderStatus = "Pending"
	// PAID - payment received
	OrderStatusPaid OrderStatus = "Paid"
	// SHIPPED - handed to a courier
	OrderStatusShipped OrderStatus = "Shipped"
	// DELIVERED - received by the customer (terminal)
	OrderStatusDelivered OrderStatus = "Delivered"
	// CANCELLED - side exit reachable from any non-terminal status (terminal)
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// StatusFlow is the fixed status order used for progress views and the transition policy.
// Cancelled sits at the end but is not part of the linear progress line.
var StatusFlow = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending,
		OrderStatusPaid,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Index returns the position of s in StatusFlow, or -1 when s is not a known status.
func (s OrderStatus) Index() int {
	for i, st := range StatusFlow {
		if st == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further transition is permitted from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

// ParseOrderStatus maps user input ("paid", " SHIPPED ") to a known status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range StatusFlow {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}
