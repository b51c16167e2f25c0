package domain

// SelectableStatuses returns the statuses a seller may pick next from current.
// A status is selectable when it is not behind current in StatusFlow and is not
// Cancelled; cancellation is offered separately (see CanCancel). Unknown and
// terminal statuses yield nothing.
func SelectableStatuses(current OrderStatus) []OrderStatus {
	idx := current.Index()
	if idx < 0 || current.IsTerminal() {
		return nil
	}

	out := make([]OrderStatus, 0, len(StatusFlow))
	for i, st := range StatusFlow {
		if i >= idx && st != OrderStatusCancelled {
			out = append(out, st)
		}
	}
	return out
}

// CanCancel reports whether the always-available cancel action applies to current.
func CanCancel(current OrderStatus) bool {
	return current.IsValid() && !current.IsTerminal()
}

// CanTransitionTo checks if a status transition is valid.
// Re-selecting the current status is allowed and records another process entry.
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	if newStatus == OrderStatusCancelled {
		return CanCancel(s)
	}
	for _, st := range SelectableStatuses(s) {
		if st == newStatus {
			return true
		}
	}
	return false
}
