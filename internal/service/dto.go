package service

import (
	"time"

	"github.com/kicksideshop/orderapi/internal/domain"
)

// AddProcessCommand is the Status Update Command: append one process entry
// and move the order to Status.
type AddProcessCommand struct {
	// OrderRef is the order UUID or its tracking number.
	OrderRef string
	Status   domain.OrderStatus
	Process  string
	Date     *time.Time
	Courier  *domain.Courier
	Images   []string
	// ExpectedVersion is the order version the caller last saw. Nil means the
	// version read at the start of the command.
	ExpectedVersion *int
}

// UpdateStatusCommand changes the status without a seller-written note.
type UpdateStatusCommand struct {
	OrderRef        string
	Status          domain.OrderStatus
	Courier         *domain.Courier
	ExpectedVersion *int
}

// CancelCommand is the always-available cancellation action.
type CancelCommand struct {
	OrderRef        string
	Reason          string
	ExpectedVersion *int
}

// HistoryQuery filters and pages a process log.
type HistoryQuery struct {
	Search string
	Limit  int
	Offset int
}

// ProcessPage is one page of a filtered process log, newest first.
type ProcessPage struct {
	Total   int
	Limit   int
	Offset  int
	Entries []domain.ProcessEntry
}

// TimelineStep is one status of the progress line.
type TimelineStep struct {
	Status     domain.OrderStatus
	Completed  bool
	Current    bool
	Selectable bool
	ReachedAt  *time.Time
}

// Timeline is the progress view of an order.
type Timeline struct {
	Status      domain.OrderStatus
	Version     int
	Steps       []TimelineStep
	Cancellable bool
}
