package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/api/dto"
	"github.com/kicksideshop/orderapi/internal/api/middleware"
	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/internal/service"
)

// HandleListSellerOrders handles GET /api/order/seller-view-orders
func HandleListSellerOrders(svc *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		seller, ok := middleware.GetSellerFromContext(c)
		if !ok {
			respond(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		filter, fields := parseOrderFilter(c)
		if len(fields) > 0 {
			respondFields(c, http.StatusUnprocessableEntity, fields.Summary(), fields)
			return
		}
		filter = service.NormalizeOrderFilter(filter)

		orders, err := svc.ListSellerOrders(c.Request.Context(), seller.ID, filter)
		if err != nil {
			respondError(c, logger, "list orders", err)
			return
		}

		respond(c, http.StatusOK, "orders fetched successfully", dto.OrdersData{
			Orders: dto.FromOrders(orders),
			Limit:  filter.Limit,
			Offset: filter.Offset,
		})
	}
}

// HandleGetOrder handles GET /api/order/view-single-product-order-details/:id
func HandleGetOrder(svc *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		seller, ok := middleware.GetSellerFromContext(c)
		if !ok {
			respond(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		// Resolve order by UUID or tracking number
		order, err := svc.GetOrderByRef(c.Request.Context(), seller.ID, c.Param("id"))
		if err != nil {
			respondError(c, logger, "get order", err)
			return
		}

		respond(c, http.StatusOK, "order fetched successfully", dto.OrderData{Order: dto.FromOrder(order)})
	}
}

func parseOrderFilter(c *gin.Context) (domain.OrderFilter, domain.FieldErrors) {
	filter := domain.OrderFilter{Search: strings.TrimSpace(c.Query("search"))}
	fields := domain.FieldErrors{}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			fields["status"] = "unknown order status"
		} else {
			filter.Status = &status
		}
	}
	if raw := c.Query("from"); raw != "" {
		t, err := parseDateParam(raw)
		if err != nil {
			fields["from"] = "must be RFC3339 or YYYY-MM-DD"
		} else {
			filter.From = &t
		}
	}
	if raw := c.Query("to"); raw != "" {
		t, err := parseDateParam(raw)
		if err != nil {
			fields["to"] = "must be RFC3339 or YYYY-MM-DD"
		} else {
			filter.To = &t
		}
	}

	var err error
	if filter.Limit, err = intParam(c, "limit"); err != nil {
		fields["limit"] = "must be a non-negative integer"
	}
	if filter.Offset, err = intParam(c, "offset"); err != nil {
		fields["offset"] = "must be a non-negative integer"
	}
	return filter, fields
}

func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
