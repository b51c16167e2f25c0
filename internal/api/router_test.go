package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/api/dto"
	"github.com/kicksideshop/orderapi/internal/api/middleware"
	"github.com/kicksideshop/orderapi/internal/config"
	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/internal/repository"
	"github.com/kicksideshop/orderapi/internal/repository/memory"
	"github.com/kicksideshop/orderapi/internal/service"
	"github.com/kicksideshop/orderapi/internal/workflow"
)

const (
	sellerKey = "kss_live_seller_one"
	otherKey  = "kss_live_seller_two"
)

type testServer struct {
	router *gin.Engine
	repos  *repository.Repositories
	seller *domain.Seller
	other  *domain.Seller
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repos, _ := memory.NewRepositories(zap.NewNop())
	lifecycle, err := workflow.NewLifecycle()
	require.NoError(t, err)
	svc := service.NewOrderService(repos, lifecycle, nil, zap.NewNop())
	t.Cleanup(svc.Wait)

	ts := &testServer{
		router: NewRouter(&config.Config{Environment: "test"}, repos, svc, zap.NewNop()),
		repos:  repos,
	}
	ts.seller = ts.createSeller(t, "Kickside Kicks", sellerKey)
	ts.other = ts.createSeller(t, "Other Shop", otherKey)
	return ts
}

func (ts *testServer) createSeller(t *testing.T, name, key string) *domain.Seller {
	t.Helper()
	hash, err := middleware.HashAPIKey(key)
	require.NoError(t, err)
	s := &domain.Seller{
		Name:         name,
		APIKeyHash:   hash,
		APIKeyLookup: repository.APIKeyLookup(key),
		IsActive:     true,
	}
	require.NoError(t, ts.repos.Seller.Create(context.Background(), s))
	return s
}

func (ts *testServer) createOrder(t *testing.T, seller *domain.Seller, tracking string, status domain.OrderStatus) *domain.Order {
	t.Helper()
	created := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	o := &domain.Order{
		TrackingNumber: tracking,
		SellerID:       seller.ID,
		Status:         domain.OrderStatusPending,
		ProductName:    "Air Jordan 1 Mid",
		Quantity:       1,
		Customer:       domain.Customer{FullNames: "Amina Wanjiru"},
		CreatedAt:      created,
		Processes: []domain.ProcessEntry{{
			Status:  domain.OrderStatusPending,
			Note:    "order created",
			Process: "Pending - order created",
			Date:    created,
		}},
	}
	for i, st := range domain.StatusFlow[1:] {
		if status.Index() <= i || st == domain.OrderStatusCancelled {
			break
		}
		o.Status = st
		o.Processes = append(o.Processes, domain.ProcessEntry{
			Status:  st,
			Note:    "moved along by the test fixture",
			Process: domain.FormatProcess(st, "moved along by the test fixture"),
			Date:    created.Add(time.Duration(i+1) * time.Hour),
		})
	}
	require.Equal(t, status, o.Status)
	require.NoError(t, ts.repos.Order.Create(context.Background(), o))
	return o
}

func (ts *testServer) do(t *testing.T, method, path, key string, body any, headers ...string) (*httptest.ResponseRecorder, dto.Envelope[json.RawMessage]) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env dto.Envelope[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	assert.Equal(t, w.Code, env.Status)
	assert.NotEmpty(t, env.Message)
	return w, env
}

func decodeOrder(t *testing.T, env dto.Envelope[json.RawMessage]) dto.OrderData {
	t.Helper()
	var data dto.OrderData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w, _ := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_RejectsMissingAndUnknownKeys(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodGet, "/api/order/seller-view-orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := ts.do(t, http.MethodGet, "/api/order/seller-view-orders", "not-a-key", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid API key", env.Message)
}

func TestStatuses_DescribeMachine(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/api/order/statuses", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data dto.StatusesData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, []string{"Pending", "Paid", "Shipped", "Delivered", "Cancelled"}, data.StatusFlow)
	assert.Empty(t, data.Allowed["Delivered"])
	assert.Contains(t, data.Allowed["Shipped"], "Cancelled")
	assert.NotContains(t, data.Allowed["Shipped"], "Pending")
	assert.NotEmpty(t, data.Machine)
}

func TestAddProcess_PendingToPaid(t *testing.T) {
	ts := newTestServer(t)
	order := ts.createOrder(t, ts.seller, "KS-1001", domain.OrderStatusPending)

	w, env := ts.do(t, http.MethodPut, "/api/order/add-single-product-order-process", sellerKey, dto.AddProcessRequest{
		ID:          order.ID.String(),
		OrderStatus: "Paid",
		Process:     "Payment confirmed via bank transfer",
	})
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	got := decodeOrder(t, env).Order
	assert.Equal(t, "Paid", got.OrderStatus)
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.OrderProcesses, 2)
	assert.Equal(t, "Pending - order created", got.OrderProcesses[0].Process)
	assert.True(t, strings.HasPrefix(got.OrderProcesses[1].Process, "Paid - "))
	assert.Equal(t, "Paid", got.OrderProcesses[1].Status)
}

func TestAddProcess_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	order := ts.createOrder(t, ts.seller, "KS-1002", domain.OrderStatusPaid)

	cases := []struct {
		name  string
		req   dto.AddProcessRequest
		field string
	}{
		{"short note", dto.AddProcessRequest{ID: order.ID.String(), OrderStatus: "Paid", Process: "too short"}, "process"},
		{"shipped without courier", dto.AddProcessRequest{ID: order.ID.String(), OrderStatus: "Shipped", Process: "Handed over at the depot this morning"}, "courier"},
		{"unknown status", dto.AddProcessRequest{ID: order.ID.String(), OrderStatus: "Refunded", Process: "Refund issued through the bank"}, "orderStatus"},
		{"missing id", dto.AddProcessRequest{OrderStatus: "Paid", Process: "Payment confirmed via bank transfer"}, "_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := ts.do(t, http.MethodPut, "/api/order/add-single-product-order-process", sellerKey, tc.req)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Contains(t, env.Fields, tc.field)
		})
	}

	// nothing was appended
	w, env := ts.do(t, http.MethodGet, "/api/order/view-single-product-order-details/"+order.ID.String(), sellerKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeOrder(t, env).Order.OrderProcesses, 2)
}

func TestAddProcess_ShippedAcceptsCourierName(t *testing.T) {
	ts := newTestServer(t)
	order := ts.createOrder(t, ts.seller, "KS-1003", domain.OrderStatusPaid)

	body := `{"_id":"KS-1003","orderStatus":"Shipped","process":"Handed over to DHL at the Nairobi hub","courier":"DHL Express"}`
	w, env := ts.do(t, http.MethodPut, "/api/order/add-single-product-order-process", sellerKey, body)
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	got := decodeOrder(t, env).Order
	assert.Equal(t, order.ID.String(), got.ID)
	assert.Equal(t, "Shipped", got.OrderStatus)
	require.NotNil(t, got.Courier)
	assert.Equal(t, "DHL Express", got.Courier.Name)
}

func TestAddProcess_BackwardTransitionRejected(t *testing.T) {
	ts := newTestServer(t)
	order := ts.createOrder(t, ts.seller, "KS-1004", domain.OrderStatusShipped)

	w, _ := ts.do(t, http.MethodPut, "/api/order/add-single-product-order-process", sellerKey, dto.AddProcessRequest{
		ID:          order.ID.String(),
		OrderStatus: "Pending",
		Process:     "Customer asked to restart the order",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddProcess_OtherSellersOrderIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	order := ts.createOrder(t, ts.other, "KS-1005", domain.OrderStatusPending)

	w, _ := ts.do(t, http.MethodPut, "/api/order/add-single-product-order-process", sellerKey, dto.AddProcessRequest{
		ID:          order.ID.String(),
		OrderStatus: "Paid",
		Process:     "Payment confirmed via bank transfer",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/api/order/view-single-product-order-details/"+uuid.NewString(), sellerKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "order not found", env.Message)
}

func TestAddProcess_StaleVersionConflicts(t *testing.T) {
	ts := newTestServer(t)
	order := ts.createOrder(t, ts.seller, "KS-1006", domain.OrderStatusPending)
	stale := 0

	w, _ := ts.do(t, http.MethodPut, "/api/order/add-single-product-order-process", sellerKey, dto.AddProcessRequest{
		ID:              order.ID.String(),
		OrderStatus:     "Paid",
		Process:         "Payment confirmed via bank transfer",
		ExpectedVersion: &stale,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAddProcess_IdempotencyKey(t *testing.T) {
	ts := newTestServer(t)
	order := ts.createOrder(t, ts.seller, "KS-1007", domain.OrderStatusPending)
	req := dto.AddProcessRequest{
		ID:          order.ID.String(),
		OrderStatus: "Paid",
		Process:     "Payment confirmed via bank transfer",
	}
	path := "/api/order/add-single-product-order-process"

	w, env := ts.do(t, http.MethodPut, path, sellerKey, req, middleware.IdempotencyKeyHeader, "pay-1007")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeOrder(t, env).Replayed)

	w, env = ts.do(t, http.MethodPut, path, sellerKey, req, middleware.IdempotencyKeyHeader, "pay-1007")
	require.Equal(t, http.StatusOK, w.Code)
	replay := decodeOrder(t, env)
	assert.True(t, replay.Replayed)
	assert.Len(t, replay.Order.OrderProcesses, 2)

	req.Process = "Payment confirmed via mobile money"
	w, _ = ts.do(t, http.MethodPut, path, sellerKey, req, middleware.IdempotencyKeyHeader, "pay-1007")
	assert.Equal(t, http.StatusConflict, w.Code)

	// without a key a duplicate submission appends again
	w, env = ts.do(t, http.MethodPut, path, sellerKey, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeOrder(t, env).Order.OrderProcesses, 3)
}

func TestUpdateOrderStatus_GeneratesNote(t *testing.T) {
	ts := newTestServer(t)
	order := ts.createOrder(t, ts.seller, "KS-1008", domain.OrderStatusShipped)

	w, env := ts.do(t, http.MethodPut, "/api/order/update-order-status", sellerKey, dto.UpdateStatusRequest{
		ID:          order.ID.String(),
		OrderStatus: "delivered",
	})
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	got := decodeOrder(t, env).Order
	assert.Equal(t, "Delivered", got.OrderStatus)
	last := got.OrderProcesses[len(got.OrderProcesses)-1]
	assert.Equal(t, "Delivered - Order status updated to Delivered", last.Process)
}

func TestCancelOrder(t *testing.T) {
	ts := newTestServer(t)
	order := ts.createOrder(t, ts.seller, "KS-1009", domain.OrderStatusPaid)

	w, env := ts.do(t, http.MethodPut, "/api/order/cancel-order", sellerKey, dto.CancelRequest{
		ID:     order.ID.String(),
		Reason: "Customer cancelled before dispatch",
	})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	assert.Equal(t, "Cancelled", decodeOrder(t, env).Order.OrderStatus)

	// terminal: nothing further is accepted
	w, _ = ts.do(t, http.MethodPut, "/api/order/cancel-order", sellerKey, dto.CancelRequest{
		ID:     order.ID.String(),
		Reason: "Customer cancelled before dispatch",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSellerOrders_FiltersAndScopesToSeller(t *testing.T) {
	ts := newTestServer(t)
	ts.createOrder(t, ts.seller, "KS-2001", domain.OrderStatusPending)
	ts.createOrder(t, ts.seller, "KS-2002", domain.OrderStatusShipped)
	ts.createOrder(t, ts.other, "KS-2003", domain.OrderStatusShipped)

	w, env := ts.do(t, http.MethodGet, "/api/order/seller-view-orders", sellerKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all dto.OrdersData
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all.Orders, 2)
	assert.Equal(t, 20, all.Limit)

	w, env = ts.do(t, http.MethodGet, "/api/order/seller-view-orders?status=shipped", sellerKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var shipped dto.OrdersData
	require.NoError(t, json.Unmarshal(env.Data, &shipped))
	require.Len(t, shipped.Orders, 1)
	assert.Equal(t, "KS-2002", shipped.Orders[0].TrackingNumber)

	w, env = ts.do(t, http.MethodGet, "/api/order/seller-view-orders?status=lost&limit=x", sellerKey, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Fields, "status")
	assert.Contains(t, env.Fields, "limit")
}

func TestProcesses_SearchAndTimeline(t *testing.T) {
	ts := newTestServer(t)
	order := ts.createOrder(t, ts.seller, "KS-3001", domain.OrderStatusPaid)

	w, env := ts.do(t, http.MethodGet, "/api/order/processes/KS-3001?search=nothing-like-this", sellerKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page dto.ProcessesData
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.OrderProcesses)

	w, env = ts.do(t, http.MethodGet, "/api/order/processes/"+order.ID.String(), sellerKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "Paid", page.OrderProcesses[0].Status)

	w, env = ts.do(t, http.MethodGet, "/api/order/timeline/"+order.ID.String(), sellerKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tl dto.TimelineData
	require.NoError(t, json.Unmarshal(env.Data, &tl))
	assert.Equal(t, "Paid", tl.Timeline.OrderStatus)
	assert.True(t, tl.Timeline.Cancellable)
	require.Len(t, tl.Timeline.Steps, 5)
	assert.True(t, tl.Timeline.Steps[0].Completed)
	assert.True(t, tl.Timeline.Steps[1].Current)
	assert.False(t, tl.Timeline.Steps[2].Completed)
	assert.True(t, tl.Timeline.Steps[2].Selectable)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	ts := newTestServer(t)
	w, _ := ts.do(t, http.MethodGet, "/api/order/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
