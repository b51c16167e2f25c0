package service

import (
	"strings"

	"github.com/kicksideshop/orderapi/internal/domain"
)

// BuildTimeline renders the order as one step per status in StatusFlow.
// Completed comes from the process log; Current comes from order.Status only.
func BuildTimeline(order *domain.Order) Timeline {
	completed := make(map[domain.OrderStatus]bool, len(domain.StatusFlow))
	for _, st := range domain.CompletedStatuses(order.Processes) {
		completed[st] = true
	}
	selectable := make(map[domain.OrderStatus]bool, len(domain.StatusFlow))
	for _, st := range domain.SelectableStatuses(order.Status) {
		selectable[st] = true
	}

	steps := make([]TimelineStep, 0, len(domain.StatusFlow))
	for _, st := range domain.StatusFlow {
		step := TimelineStep{
			Status:     st,
			Completed:  completed[st],
			Current:    st == order.Status,
			Selectable: selectable[st],
		}
		if e, ok := domain.FirstEntryFor(order.Processes, st); ok {
			at := e.Date
			step.ReachedAt = &at
		}
		steps = append(steps, step)
	}

	return Timeline{
		Status:      order.Status,
		Version:     order.Version,
		Steps:       steps,
		Cancellable: domain.CanCancel(order.Status),
	}
}

// FilterProcesses returns the entries whose process text contains q.Search
// (case-insensitive), newest first, paged by q.Limit and q.Offset.
// entries is not modified.
func FilterProcesses(entries []domain.ProcessEntry, q HistoryQuery) ProcessPage {
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	matched := make([]domain.ProcessEntry, 0, len(entries))
	for _, e := range entries {
		if needle == "" || strings.Contains(strings.ToLower(e.Process), needle) {
			matched = append(matched, e)
		}
	}
	matched = domain.SortProcessesByDate(matched, true)

	page := ProcessPage{Total: len(matched), Limit: q.Limit, Offset: q.Offset}
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			page.Entries = []domain.ProcessEntry{}
			return page
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	page.Entries = matched
	return page
}
