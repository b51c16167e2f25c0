package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kicksideshop/orderapi/internal/domain"
)

func sampleLog() []domain.ProcessEntry {
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	return []domain.ProcessEntry{
		{Sequence: 1, Process: "Pending - order created", Date: base},
		{Sequence: 2, Process: "Paid - Payment confirmed via M-Pesa", Date: base.Add(2 * time.Hour)},
		{Sequence: 3, Process: "courier called, no answer", Date: base.Add(time.Hour)},
		{Sequence: 4, Process: "Shipped - handed to DHL Express", Date: base.Add(3 * time.Hour)},
	}
}

func TestFilterProcesses_SortsNewestFirst(t *testing.T) {
	page := FilterProcesses(sampleLog(), HistoryQuery{})

	require.Len(t, page.Entries, 4)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 4, page.Entries[0].Sequence)
	assert.Equal(t, 2, page.Entries[1].Sequence)
	assert.Equal(t, 3, page.Entries[2].Sequence)
	assert.Equal(t, 1, page.Entries[3].Sequence)
}

func TestFilterProcesses_CaseInsensitiveSearch(t *testing.T) {
	page := FilterProcesses(sampleLog(), HistoryQuery{Search: "dhl"})
	require.Len(t, page.Entries, 1)
	assert.Equal(t, 4, page.Entries[0].Sequence)

	page = FilterProcesses(sampleLog(), HistoryQuery{Search: "PAYMENT"})
	require.Len(t, page.Entries, 1)
}

func TestFilterProcesses_NoMatchLeavesLogUntouched(t *testing.T) {
	log := sampleLog()
	original := sampleLog()

	page := FilterProcesses(log, HistoryQuery{Search: "refund"})

	assert.Empty(t, page.Entries)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, original, log)
}

func TestFilterProcesses_Paging(t *testing.T) {
	page := FilterProcesses(sampleLog(), HistoryQuery{Limit: 2, Offset: 1})
	require.Len(t, page.Entries, 2)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Entries[0].Sequence)

	past := FilterProcesses(sampleLog(), HistoryQuery{Offset: 10})
	assert.Empty(t, past.Entries)
	assert.Equal(t, 4, past.Total)
}

func TestBuildTimeline(t *testing.T) {
	order := &domain.Order{
		Status:    domain.OrderStatusPaid,
		Version:   2,
		Processes: sampleLog()[:2],
	}

	tl := BuildTimeline(order)
	require.Len(t, tl.Steps, len(domain.StatusFlow))

	byStatus := map[domain.OrderStatus]TimelineStep{}
	for _, s := range tl.Steps {
		byStatus[s.Status] = s
	}

	assert.True(t, byStatus[domain.OrderStatusPending].Completed)
	assert.True(t, byStatus[domain.OrderStatusPaid].Completed)
	assert.True(t, byStatus[domain.OrderStatusPaid].Current)
	assert.False(t, byStatus[domain.OrderStatusShipped].Completed)
	assert.False(t, byStatus[domain.OrderStatusDelivered].Completed)
	assert.False(t, byStatus[domain.OrderStatusCancelled].Completed)

	assert.False(t, byStatus[domain.OrderStatusPending].Selectable)
	assert.True(t, byStatus[domain.OrderStatusShipped].Selectable)
	assert.False(t, byStatus[domain.OrderStatusCancelled].Selectable)
	assert.True(t, tl.Cancellable)

	require.NotNil(t, byStatus[domain.OrderStatusPaid].ReachedAt)
	assert.Nil(t, byStatus[domain.OrderStatusShipped].ReachedAt)
}

func TestBuildTimeline_CurrentComesFromOrderStatus(t *testing.T) {
	// log says Shipped but the order field says Paid
	order := &domain.Order{Status: domain.OrderStatusPaid, Processes: sampleLog()}

	tl := BuildTimeline(order)
	for _, s := range tl.Steps {
		assert.Equal(t, s.Status == domain.OrderStatusPaid, s.Current, s.Status)
	}
}

func TestBuildTimeline_UnknownStatus(t *testing.T) {
	order := &domain.Order{Status: "Corrupted"}

	tl := BuildTimeline(order)
	for _, s := range tl.Steps {
		assert.False(t, s.Completed)
		assert.False(t, s.Current)
		assert.False(t, s.Selectable)
	}
	assert.False(t, tl.Cancellable)
}
