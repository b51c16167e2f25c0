package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/api/dto"
	"github.com/kicksideshop/orderapi/internal/api/middleware"
	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/internal/repository"
	"github.com/kicksideshop/orderapi/internal/service"
)

// HandleAddOrderProcess handles PUT /api/order/add-single-product-order-process
func HandleAddOrderProcess(svc *service.OrderService, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		seller, ok := middleware.GetSellerFromContext(c)
		if !ok {
			respond(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if replayIdempotent(c, svc, seller, logger) {
			return
		}

		var req dto.AddProcessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond(c, http.StatusBadRequest, "invalid request body", nil)
			return
		}

		order, err := svc.AddProcess(c.Request.Context(), seller.ID, service.AddProcessCommand{
			OrderRef:        req.ID,
			Status:          requestedStatus(req.OrderStatus),
			Process:         req.Process,
			Date:            req.Date,
			Courier:         req.Courier.ToDomain(),
			Images:          req.Images,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			respondError(c, logger, "add order process", err)
			return
		}

		rememberIdempotent(c, repos, seller, order, logger)
		respond(c, http.StatusOK, "order process added successfully", dto.OrderData{Order: dto.FromOrder(order)})
	}
}

// HandleUpdateOrderStatus handles PUT /api/order/update-order-status
func HandleUpdateOrderStatus(svc *service.OrderService, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		seller, ok := middleware.GetSellerFromContext(c)
		if !ok {
			respond(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if replayIdempotent(c, svc, seller, logger) {
			return
		}

		var req dto.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond(c, http.StatusBadRequest, "invalid request body", nil)
			return
		}

		order, err := svc.UpdateOrderStatus(c.Request.Context(), seller.ID, service.UpdateStatusCommand{
			OrderRef:        req.ID,
			Status:          requestedStatus(req.OrderStatus),
			Courier:         req.Courier.ToDomain(),
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			respondError(c, logger, "update order status", err)
			return
		}

		rememberIdempotent(c, repos, seller, order, logger)
		respond(c, http.StatusOK, "order status updated successfully", dto.OrderData{Order: dto.FromOrder(order)})
	}
}

// HandleCancelOrder handles PUT /api/order/cancel-order
func HandleCancelOrder(svc *service.OrderService, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		seller, ok := middleware.GetSellerFromContext(c)
		if !ok {
			respond(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if replayIdempotent(c, svc, seller, logger) {
			return
		}

		var req dto.CancelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond(c, http.StatusBadRequest, "invalid request body", nil)
			return
		}

		order, err := svc.CancelOrder(c.Request.Context(), seller.ID, service.CancelCommand{
			OrderRef:        req.ID,
			Reason:          req.Reason,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			respondError(c, logger, "cancel order", err)
			return
		}

		rememberIdempotent(c, repos, seller, order, logger)
		respond(c, http.StatusOK, "order cancelled successfully", dto.OrderData{Order: dto.FromOrder(order)})
	}
}

// HandleGetOrderProcesses handles GET /api/order/processes/:id
func HandleGetOrderProcesses(svc *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		seller, ok := middleware.GetSellerFromContext(c)
		if !ok {
			respond(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		q := service.HistoryQuery{Search: c.Query("search")}
		fields := domain.FieldErrors{}
		var err error
		if q.Limit, err = intParam(c, "limit"); err != nil {
			fields["limit"] = "must be a non-negative integer"
		}
		if q.Offset, err = intParam(c, "offset"); err != nil {
			fields["offset"] = "must be a non-negative integer"
		}
		if len(fields) > 0 {
			respondFields(c, http.StatusUnprocessableEntity, fields.Summary(), fields)
			return
		}

		order, err := svc.GetOrderByRef(c.Request.Context(), seller.ID, c.Param("id"))
		if err != nil {
			respondError(c, logger, "get order processes", err)
			return
		}

		page := service.FilterProcesses(order.Processes, q)
		respond(c, http.StatusOK, "order processes fetched successfully", dto.ProcessesData{
			Total:          page.Total,
			Limit:          page.Limit,
			Offset:         page.Offset,
			OrderProcesses: dto.FromProcesses(page.Entries),
		})
	}
}

// requestedStatus normalises case; unknown values pass through so validation
// reports them against orderStatus.
func requestedStatus(raw string) domain.OrderStatus {
	if st, ok := domain.ParseOrderStatus(raw); ok {
		return st
	}
	return domain.OrderStatus(strings.TrimSpace(raw))
}

// replayIdempotent answers a repeated Idempotency-Key with the stored order and
// reports whether it did so.
func replayIdempotent(c *gin.Context, svc *service.OrderService, seller *domain.Seller, logger *zap.Logger) bool {
	_, _, existingOrderID, isExisting := middleware.GetIdempotencyInfo(c)
	if !isExisting {
		return false
	}

	order, err := svc.GetOrder(c.Request.Context(), seller.ID, existingOrderID)
	if err != nil {
		respondError(c, logger, "replay idempotent request", err)
		return true
	}
	respond(c, http.StatusOK, "request already processed", dto.OrderData{Order: dto.FromOrder(order), Replayed: true})
	return true
}

func rememberIdempotent(c *gin.Context, repos *repository.Repositories, seller *domain.Seller, order *domain.Order, logger *zap.Logger) {
	key, requestHash, _, _ := middleware.GetIdempotencyInfo(c)
	if key == "" {
		return
	}
	err := repos.IdempotencyKey.Create(c.Request.Context(), &domain.IdempotencyKey{
		Key:         key,
		SellerID:    seller.ID,
		OrderID:     order.ID,
		RequestHash: requestHash,
	})
	if err != nil {
		// The update already happened; a lost key only weakens replay protection
		logger.Warn("Failed to store idempotency key", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}
