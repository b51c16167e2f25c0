package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/internal/metrics"
	"github.com/kicksideshop/orderapi/internal/notify"
	"github.com/kicksideshop/orderapi/internal/repository"
	"github.com/kicksideshop/orderapi/internal/workflow"
	"github.com/kicksideshop/orderapi/pkg/errors"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	notifyTimeout = 30 * time.Second
)

// OrderService owns every read and write of the order lifecycle.
type OrderService struct {
	repos     *repository.Repositories
	lifecycle *workflow.Lifecycle
	notifier  notify.Notifier
	logger    *zap.Logger
	now       func() time.Time
	inflight  sync.WaitGroup
}

// NewOrderService creates a new order service
func NewOrderService(repos *repository.Repositories, lifecycle *workflow.Lifecycle, notifier notify.Notifier, logger *zap.Logger) *OrderService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &OrderService{
		repos:     repos,
		lifecycle: lifecycle,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Lifecycle exposes the transition machine, for handlers that describe it.
func (s *OrderService) Lifecycle() *workflow.Lifecycle {
	return s.lifecycle
}

// GetOrder loads the order and its process log. The seller must own it.
func (s *OrderService) GetOrder(ctx context.Context, sellerID uuid.UUID, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withProcesses(ctx, sellerID, order)
}

// GetOrderByRef resolves ref as an order UUID first, then as a tracking number.
func (s *OrderService) GetOrderByRef(ctx context.Context, sellerID uuid.UUID, ref string) (*domain.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &errors.ErrValidation{
			Message: "order id is required",
			Fields:  map[string]string{"_id": "order id is required"},
		}
	}
	if id, err := uuid.Parse(ref); err == nil {
		return s.GetOrder(ctx, sellerID, id)
	}

	order, err := s.repos.Order.GetByTrackingNumber(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.withProcesses(ctx, sellerID, order)
}

func (s *OrderService) withProcesses(ctx context.Context, sellerID uuid.UUID, order *domain.Order) (*domain.Order, error) {
	if order.SellerID != sellerID {
		return nil, &errors.ErrForbidden{}
	}

	entries, err := s.repos.OrderProcess.ListByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load process log for order %s: %w", order.ID, err)
	}
	if entries == nil {
		entries = []domain.ProcessEntry{}
	}
	order.Processes = entries
	return order, nil
}

// ListSellerOrders returns the seller's orders, newest first, without process logs.
func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, filter domain.OrderFilter) ([]*domain.Order, error) {
	filter = NormalizeOrderFilter(filter)
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, &errors.ErrValidation{
			Message: fmt.Sprintf("unknown order status %q", *filter.Status),
			Fields:  map[string]string{"status": "unknown order status"},
		}
	}

	orders, err := s.repos.Order.ListBySellerID(ctx, sellerID, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return orders, nil
}

// NormalizeOrderFilter applies the default and maximum page size.
func NormalizeOrderFilter(filter domain.OrderFilter) domain.OrderFilter {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}

// AddProcess runs the Status Update Command. It validates the command before
// touching storage, enforces the lifecycle, and appends the entry and the new
// status in one atomic step guarded by the order version.
func (s *OrderService) AddProcess(ctx context.Context, sellerID uuid.UUID, cmd AddProcessCommand) (*domain.Order, error) {
	update := domain.StatusUpdate{
		Target:  cmd.Status,
		Note:    cmd.Process,
		Courier: cmd.Courier,
		Images:  cmd.Images,
		Date:    cmd.Date,
	}
	fields := update.Validate()
	if strings.TrimSpace(cmd.OrderRef) == "" {
		if fields == nil {
			fields = domain.FieldErrors{}
		}
		fields["_id"] = "order id is required"
	}
	if fields != nil {
		metrics.StatusUpdateRejectionsTotal.WithLabelValues(metrics.ReasonValidation).Inc()
		return nil, errors.NewValidation(fields)
	}

	order, err := s.GetOrderByRef(ctx, sellerID, cmd.OrderRef)
	if err != nil {
		s.reject(err)
		return nil, err
	}

	if err := s.lifecycle.Validate(order.Status, cmd.Status); err != nil {
		s.reject(err)
		s.logger.Info("Rejected order status transition",
			zap.String("order_id", order.ID.String()),
			zap.String("from", string(order.Status)),
			zap.String("to", string(cmd.Status)))
		return nil, err
	}

	note := update.CleanNote()
	entry := domain.ProcessEntry{
		Status:  cmd.Status,
		Note:    note,
		Process: domain.FormatProcess(cmd.Status, note),
		Images:  cmd.Images,
		Date:    s.now().UTC(),
	}
	if cmd.Date != nil {
		entry.Date = cmd.Date.UTC()
	}

	expected := order.Version
	if cmd.ExpectedVersion != nil {
		expected = *cmd.ExpectedVersion
	}

	if err := s.repos.Order.AppendProcess(ctx, order.ID, expected, &entry, cmd.Courier); err != nil {
		s.reject(err)
		return nil, err
	}

	metrics.StatusUpdatesTotal.WithLabelValues(string(cmd.Status)).Inc()
	s.logger.Info("Order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(order.Status)),
		zap.String("to", string(cmd.Status)),
		zap.Int("version", entry.Sequence))

	updated, err := s.GetOrder(ctx, sellerID, order.ID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notify.NewStatusChangedEvent(updated, order.Status, entry))
	return updated, nil
}

// UpdateOrderStatus changes the status with a generated note so the status and
// the log never diverge.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, sellerID uuid.UUID, cmd UpdateStatusCommand) (*domain.Order, error) {
	return s.AddProcess(ctx, sellerID, AddProcessCommand{
		OrderRef:        cmd.OrderRef,
		Status:          cmd.Status,
		Process:         domain.StatusUpdatedNote(cmd.Status),
		Courier:         cmd.Courier,
		ExpectedVersion: cmd.ExpectedVersion,
	})
}

// CancelOrder moves the order to Cancelled with the seller's reason as note.
func (s *OrderService) CancelOrder(ctx context.Context, sellerID uuid.UUID, cmd CancelCommand) (*domain.Order, error) {
	return s.AddProcess(ctx, sellerID, AddProcessCommand{
		OrderRef:        cmd.OrderRef,
		Status:          domain.OrderStatusCancelled,
		Process:         cmd.Reason,
		ExpectedVersion: cmd.ExpectedVersion,
	})
}

// Wait blocks until in-flight notifications have finished.
func (s *OrderService) Wait() {
	s.inflight.Wait()
}

// notify delivers in the background so subscribers never delay or fail the
// update. Errors are logged only.
func (s *OrderService) notify(ctx context.Context, event notify.StatusChangedEvent) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.OrderStatusChanged(nctx, event); err != nil {
			s.logger.Warn("Failed to notify order status change",
				zap.String("order_id", event.OrderID.String()),
				zap.Error(err))
		}
	}()
}

func (s *OrderService) reject(err error) {
	var (
		validation *errors.ErrValidation
		transition *errors.ErrInvalidStateTransition
		forbidden  *errors.ErrForbidden
		notFound   *errors.ErrNotFound
		conflict   *errors.ErrConflict
	)
	switch {
	case stderrors.As(err, &validation):
		metrics.StatusUpdateRejectionsTotal.WithLabelValues(metrics.ReasonValidation).Inc()
	case stderrors.As(err, &transition):
		metrics.StatusUpdateRejectionsTotal.WithLabelValues(metrics.ReasonTransition).Inc()
	case stderrors.As(err, &forbidden):
		metrics.StatusUpdateRejectionsTotal.WithLabelValues(metrics.ReasonForbidden).Inc()
	case stderrors.As(err, &notFound):
		metrics.StatusUpdateRejectionsTotal.WithLabelValues(metrics.ReasonNotFound).Inc()
	case stderrors.As(err, &conflict):
		metrics.StatusUpdateRejectionsTotal.WithLabelValues(metrics.ReasonConflict).Inc()
		metrics.VersionConflictsTotal.Inc()
	}
}
