// Package client is a thin REST client for the order API. Commands are
// validated locally and nothing is sent when validation fails. Failed calls are
// never retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/api/dto"
	"github.com/kicksideshop/orderapi/internal/domain"
)

// GenericErrorMessage is shown when a failed response carries no message.
const GenericErrorMessage = "Something went wrong. Please try again."

// Session carries the seller's credentials. It is passed to every call so
// that two sessions can share one Client.
type Session struct {
	mu     sync.RWMutex
	apiKey string
}

func NewSession(apiKey string) *Session {
	return &Session{apiKey: strings.TrimSpace(apiKey)}
}

// APIKey returns the current key, empty after Clear.
func (s *Session) APIKey() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey
}

// Clear forgets the credentials (logout).
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = ""
}

// APIError is any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("order api: %d: %s", e.StatusCode, e.Message)
}

// ValidationError is returned before any request is sent.
type ValidationError struct {
	Fields domain.FieldErrors
}

func (e *ValidationError) Error() string {
	return e.Fields.Summary()
}

// ErrNoSession is returned when a call needs a session and has none.
var ErrNoSession = &ValidationError{Fields: domain.FieldErrors{"session": "please sign in again"}}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the API at baseURL. A nil httpClient gets a
// 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ListOptions narrows ListOrders.
type ListOptions struct {
	Search string
	Status domain.OrderStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

func (c *Client) ListOrders(ctx context.Context, sess *Session, opts ListOptions) (*dto.OrdersData, error) {
	q := url.Values{}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.From != nil {
		q.Set("from", opts.From.UTC().Format(time.RFC3339))
	}
	if opts.To != nil {
		q.Set("to", opts.To.UTC().Format(time.RFC3339))
	}
	setPaging(q, opts.Limit, opts.Offset)

	var out dto.OrdersData
	if err := c.do(ctx, sess, http.MethodGet, withQuery("/api/order/seller-view-orders", q), nil, &out); err != nil {
		return nil, err
	}
	if out.Orders == nil {
		out.Orders = []dto.Order{}
	}
	for i := range out.Orders {
		normalizeOrder(&out.Orders[i])
	}
	return &out, nil
}

// GetOrder fetches one order by id or tracking number.
func (c *Client) GetOrder(ctx context.Context, sess *Session, ref string) (*dto.Order, error) {
	if err := requireRef(ref); err != nil {
		return nil, err
	}
	var out dto.OrderData
	if err := c.do(ctx, sess, http.MethodGet, "/api/order/view-single-product-order-details/"+url.PathEscape(ref), nil, &out); err != nil {
		return nil, err
	}
	normalizeOrder(&out.Order)
	return &out.Order, nil
}

// AddOrderProcess submits the Status Update Command and returns the server's
// updated order.
func (c *Client) AddOrderProcess(ctx context.Context, sess *Session, req dto.AddProcessRequest) (*dto.Order, error) {
	req.OrderStatus = normalizeStatus(req.OrderStatus)
	fields := domain.StatusUpdate{
		Target:  domain.OrderStatus(req.OrderStatus),
		Note:    req.Process,
		Courier: req.Courier.ToDomain(),
		Images:  req.Images,
		Date:    req.Date,
	}.Validate()
	if err := withRef(fields, req.ID); err != nil {
		return nil, err
	}
	return c.putOrder(ctx, sess, "/api/order/add-single-product-order-process", req)
}

// UpdateOrderStatus changes only the status; the server writes the note.
func (c *Client) UpdateOrderStatus(ctx context.Context, sess *Session, req dto.UpdateStatusRequest) (*dto.Order, error) {
	req.OrderStatus = normalizeStatus(req.OrderStatus)
	status := domain.OrderStatus(req.OrderStatus)
	fields := domain.StatusUpdate{
		Target:  status,
		Note:    domain.StatusUpdatedNote(status),
		Courier: req.Courier.ToDomain(),
	}.Validate()
	if err := withRef(fields, req.ID); err != nil {
		return nil, err
	}
	return c.putOrder(ctx, sess, "/api/order/update-order-status", req)
}

// CancelOrder cancels with reason as the process note.
func (c *Client) CancelOrder(ctx context.Context, sess *Session, req dto.CancelRequest) (*dto.Order, error) {
	fields := domain.StatusUpdate{
		Target: domain.OrderStatusCancelled,
		Note:   req.Reason,
	}.Validate()
	if fields != nil {
		if msg, ok := fields["process"]; ok {
			fields["reason"] = msg
			delete(fields, "process")
		}
	}
	if err := withRef(fields, req.ID); err != nil {
		return nil, err
	}
	return c.putOrder(ctx, sess, "/api/order/cancel-order", req)
}

func (c *Client) Timeline(ctx context.Context, sess *Session, ref string) (*dto.Timeline, error) {
	if err := requireRef(ref); err != nil {
		return nil, err
	}
	var out dto.TimelineData
	if err := c.do(ctx, sess, http.MethodGet, "/api/order/timeline/"+url.PathEscape(ref), nil, &out); err != nil {
		return nil, err
	}
	return &out.Timeline, nil
}

// Processes returns one page of the order's process history, newest first.
func (c *Client) Processes(ctx context.Context, sess *Session, ref, search string, limit, offset int) (*dto.ProcessesData, error) {
	if err := requireRef(ref); err != nil {
		return nil, err
	}
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	setPaging(q, limit, offset)

	var out dto.ProcessesData
	if err := c.do(ctx, sess, http.MethodGet, withQuery("/api/order/processes/"+url.PathEscape(ref), q), nil, &out); err != nil {
		return nil, err
	}
	if out.OrderProcesses == nil {
		out.OrderProcesses = []dto.ProcessEntry{}
	}
	return &out, nil
}

// Statuses describes the lifecycle. It needs no session.
func (c *Client) Statuses(ctx context.Context) (*dto.StatusesData, error) {
	var out dto.StatusesData
	if err := c.send(ctx, "", http.MethodGet, "/api/order/statuses", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) putOrder(ctx context.Context, sess *Session, path string, body any) (*dto.Order, error) {
	var out dto.OrderData
	if err := c.do(ctx, sess, http.MethodPut, path, body, &out); err != nil {
		return nil, err
	}
	normalizeOrder(&out.Order)
	return &out.Order, nil
}

func (c *Client) do(ctx context.Context, sess *Session, method, path string, body, out any) error {
	key := sess.APIKey()
	if key == "" {
		return ErrNoSession
	}
	return c.send(ctx, key, method, path, body, out)
}

func (c *Client) send(ctx context.Context, apiKey, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env dto.Envelope[json.RawMessage]
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: GenericErrorMessage}
		if decodeErr == nil {
			if msg := strings.TrimSpace(env.Message); msg != "" {
				apiErr.Message = msg
			}
			apiErr.Fields = env.Fields
		}
		c.logger.Debug("Order API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return apiErr
	}

	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

func requireRef(ref string) error {
	return withRef(nil, ref)
}

func withRef(fields domain.FieldErrors, ref string) error {
	if strings.TrimSpace(ref) == "" {
		if fields == nil {
			fields = domain.FieldErrors{}
		}
		fields["_id"] = "order id is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func normalizeStatus(raw string) string {
	if st, ok := domain.ParseOrderStatus(raw); ok {
		return string(st)
	}
	return strings.TrimSpace(raw)
}

// normalizeOrder treats absent collections as empty.
func normalizeOrder(o *dto.Order) {
	if o.OrderProcesses == nil {
		o.OrderProcesses = []dto.ProcessEntry{}
	}
	if o.Images == nil {
		o.Images = []string{}
	}
	for i := range o.OrderProcesses {
		if o.OrderProcesses[i].Images == nil {
			o.OrderProcesses[i].Images = []string{}
		}
	}
}

func setPaging(q url.Values, limit, offset int) {
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
