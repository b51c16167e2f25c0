package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/api/dto"
	"github.com/kicksideshop/orderapi/internal/api/middleware"
	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/internal/service"
	"github.com/kicksideshop/orderapi/internal/workflow"
)

// HandleGetTimeline handles GET /api/order/timeline/:id
func HandleGetTimeline(svc *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		seller, ok := middleware.GetSellerFromContext(c)
		if !ok {
			respond(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		order, err := svc.GetOrderByRef(c.Request.Context(), seller.ID, c.Param("id"))
		if err != nil {
			respondError(c, logger, "get order timeline", err)
			return
		}

		respond(c, http.StatusOK, "order timeline fetched successfully", dto.TimelineData{
			Timeline: timelineResponse(service.BuildTimeline(order)),
		})
	}
}

// HandleGetStatuses handles GET /api/order/statuses. It needs no seller.
func HandleGetStatuses(lifecycle *workflow.Lifecycle, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		machine, err := lifecycle.ExportXStateJSON()
		if err != nil {
			respondError(c, logger, "export order machine", err)
			return
		}

		flow := make([]string, 0, len(domain.StatusFlow))
		allowed := make(map[string][]string, len(domain.StatusFlow))
		for _, st := range domain.StatusFlow {
			flow = append(flow, string(st))
			next := []string{}
			for _, to := range lifecycle.Allowed(st) {
				next = append(next, string(to))
			}
			allowed[string(st)] = next
		}

		respond(c, http.StatusOK, "order statuses fetched successfully", dto.StatusesData{
			StatusFlow: flow,
			Allowed:    allowed,
			Machine:    machine,
		})
	}
}

func timelineResponse(tl service.Timeline) dto.Timeline {
	steps := make([]dto.TimelineStep, 0, len(tl.Steps))
	for _, s := range tl.Steps {
		step := dto.TimelineStep{
			Status:     string(s.Status),
			Completed:  s.Completed,
			Current:    s.Current,
			Selectable: s.Selectable,
		}
		if s.ReachedAt != nil {
			at := dto.FormatTime(*s.ReachedAt)
			step.ReachedAt = &at
		}
		steps = append(steps, step)
	}
	return dto.Timeline{
		OrderStatus: string(tl.Status),
		Version:     tl.Version,
		Steps:       steps,
		Cancellable: tl.Cancellable,
	}
}
