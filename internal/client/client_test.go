package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/api"
	"github.com/kicksideshop/orderapi/internal/api/dto"
	"github.com/kicksideshop/orderapi/internal/api/middleware"
	"github.com/kicksideshop/orderapi/internal/config"
	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/internal/repository"
	"github.com/kicksideshop/orderapi/internal/repository/memory"
	"github.com/kicksideshop/orderapi/internal/service"
	"github.com/kicksideshop/orderapi/internal/workflow"
)

const testKey = "kss_test_client_key"

// countingServer counts every request it receives.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestAddOrderProcess_ValidatesBeforeSending(t *testing.T) {
	srv, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	c := NewClient(srv.URL, nil, zap.NewNop())
	sess := NewSession(testKey)

	cases := []struct {
		name  string
		req   dto.AddProcessRequest
		field string
	}{
		{"shipped without courier", dto.AddProcessRequest{ID: "KS-1", OrderStatus: "Shipped", Process: "Handed over at the depot this morning"}, "courier"},
		{"short description", dto.AddProcessRequest{ID: "KS-1", OrderStatus: "Paid", Process: "paid"}, "process"},
		{"missing order id", dto.AddProcessRequest{OrderStatus: "Paid", Process: "Payment confirmed via bank transfer"}, "_id"},
		{"prefix does not count", dto.AddProcessRequest{ID: "KS-1", OrderStatus: "Paid", Process: "Paid - short note"}, "process"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.AddOrderProcess(context.Background(), sess, tc.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestCancelOrder_ValidatesReason(t *testing.T) {
	srv, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c := NewClient(srv.URL, nil, nil)

	_, err := c.CancelOrder(context.Background(), NewSession(testKey), dto.CancelRequest{ID: "KS-1", Reason: "changed mind"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "reason")
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestClearedSessionSendsNothing(t *testing.T) {
	srv, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c := NewClient(srv.URL, nil, nil)
	sess := NewSession(testKey)
	sess.Clear()

	_, err := c.GetOrder(context.Background(), sess, "KS-1")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = c.ListOrders(context.Background(), nil, ListOptions{})
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestAPIError_UsesServerMessage(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"status":409,"message":"order was modified by another request"}`))
	})
	c := NewClient(srv.URL, nil, nil)

	_, err := c.GetOrder(context.Background(), NewSession(testKey), "KS-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "order was modified by another request", apiErr.Message)
}

func TestAPIError_FallsBackToGenericMessage(t *testing.T) {
	for _, body := range []string{``, `<html>bad gateway</html>`, `{"status":502}`} {
		srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(body))
		})
		c := NewClient(srv.URL, nil, nil)

		_, err := c.GetOrder(context.Background(), NewSession(testKey), "KS-1")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr, body)
		assert.Equal(t, GenericErrorMessage, apiErr.Message, body)
	}
}

func TestGetOrder_MissingCollectionsBecomeEmpty(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":200,"message":"ok","data":{"order":{"_id":"x","orderStatus":"Paid"}}}`))
	})
	c := NewClient(srv.URL, nil, nil)

	order, err := c.GetOrder(context.Background(), NewSession(testKey), "x")
	require.NoError(t, err)
	assert.NotNil(t, order.OrderProcesses)
	assert.Empty(t, order.OrderProcesses)
	assert.NotNil(t, order.Images)
}

func TestRequestHonoursContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	c := NewClient(srv.URL, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Timeline(ctx, NewSession(testKey), "KS-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestEndToEnd_AgainstRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repos, _ := memory.NewRepositories(zap.NewNop())
	lifecycle, err := workflow.NewLifecycle()
	require.NoError(t, err)
	svc := service.NewOrderService(repos, lifecycle, nil, zap.NewNop())
	t.Cleanup(svc.Wait)

	ctx := context.Background()
	hash, err := middleware.HashAPIKey(testKey)
	require.NoError(t, err)
	seller := &domain.Seller{Name: "Kickside", APIKeyHash: hash, APIKeyLookup: repository.APIKeyLookup(testKey), IsActive: true}
	require.NoError(t, repos.Seller.Create(ctx, seller))
	require.NoError(t, repos.Order.Create(ctx, &domain.Order{
		TrackingNumber: "KS-E2E",
		SellerID:       seller.ID,
		Status:         domain.OrderStatusPending,
		ProductName:    "Yeezy Boost 350",
		Quantity:       1,
		Processes: []domain.ProcessEntry{{
			Status:  domain.OrderStatusPending,
			Note:    "order created",
			Process: "Pending - order created",
		}},
	}))

	srv := httptest.NewServer(api.NewRouter(&config.Config{Environment: "test"}, repos, svc, zap.NewNop()))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, nil, zap.NewNop())
	sess := NewSession(testKey)

	order, err := c.AddOrderProcess(ctx, sess, dto.AddProcessRequest{
		ID:          "KS-E2E",
		OrderStatus: "paid",
		Process:     "Payment confirmed via bank transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, "Paid", order.OrderStatus)
	require.Len(t, order.OrderProcesses, 2)
	assert.True(t, strings.HasPrefix(order.OrderProcesses[1].Process, "Paid - "))

	// Shipped back to Pending is refused by the server
	_, err = c.UpdateOrderStatus(ctx, sess, dto.UpdateStatusRequest{ID: "KS-E2E", OrderStatus: "Shipped", Courier: &dto.Courier{Name: "Sendy"}})
	require.NoError(t, err)
	_, err = c.AddOrderProcess(ctx, sess, dto.AddProcessRequest{ID: "KS-E2E", OrderStatus: "Pending", Process: "Customer asked to restart the order"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "invalid state transition")

	tl, err := c.Timeline(ctx, sess, "KS-E2E")
	require.NoError(t, err)
	assert.Equal(t, "Shipped", tl.OrderStatus)
	assert.Equal(t, 3, tl.Version)

	page, err := c.Processes(ctx, sess, "KS-E2E", "bank", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	list, err := c.ListOrders(ctx, sess, ListOptions{Status: domain.OrderStatusShipped})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)

	statuses, err := c.Statuses(ctx)
	require.NoError(t, err)
	assert.Len(t, statuses.StatusFlow, 5)

	cancelled, err := c.CancelOrder(ctx, sess, dto.CancelRequest{ID: "KS-E2E", Reason: "Courier lost the parcel in transit"})
	require.NoError(t, err)
	assert.Equal(t, "Cancelled", cancelled.OrderStatus)
}
