// Package dto holds the JSON wire types shared by the HTTP handlers and the
// REST client.
package dto

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kicksideshop/orderapi/internal/domain"
)

// Envelope is the body of every response. Status repeats the HTTP status code.
type Envelope[T any] struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    T                 `json:"data,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Courier accepts either an object or a bare courier name on input.
type Courier struct {
	Name              string     `json:"name"`
	TrackingNumber    string     `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
}

func (c *Courier) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		*c = Courier{Name: name}
		return nil
	}
	type plain Courier
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*c = Courier(p)
	return nil
}

// ToDomain returns nil for a nil or nameless courier.
func (c *Courier) ToDomain() *domain.Courier {
	if c == nil {
		return nil
	}
	if strings.TrimSpace(c.Name) == "" && c.TrackingNumber == "" && c.EstimatedDelivery == nil {
		return nil
	}
	return &domain.Courier{
		Name:              strings.TrimSpace(c.Name),
		TrackingNumber:    strings.TrimSpace(c.TrackingNumber),
		EstimatedDelivery: c.EstimatedDelivery,
	}
}

type Customer struct {
	ID        string `json:"_id,omitempty"`
	FullNames string `json:"fullNames"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type ProcessEntry struct {
	ID       string   `json:"_id"`
	Sequence int      `json:"sequence"`
	Status   string   `json:"status"`
	Note     string   `json:"note"`
	Process  string   `json:"process"`
	Images   []string `json:"images"`
	Date     string   `json:"date"`
}

type Order struct {
	ID              string                 `json:"_id"`
	TrackingNumber  string                 `json:"trackingNumber"`
	SellerID        string                 `json:"sellerId"`
	OrderStatus     string                 `json:"orderStatus"`
	Version         int                    `json:"version"`
	ProductName     string                 `json:"productName"`
	Quantity        int                    `json:"quantity"`
	FinalUnitPrice  decimal.Decimal        `json:"finalUnitPrice"`
	FinalTotalPrice decimal.Decimal        `json:"finalTotalPrice"`
	Discount        decimal.Decimal        `json:"discount"`
	Images          []string               `json:"images"`
	Customer        Customer               `json:"customer"`
	Addresses       map[string]interface{} `json:"addresses,omitempty"`
	Courier         *Courier               `json:"courier,omitempty"`
	OrderProcesses  []ProcessEntry         `json:"orderProcesses"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt"`
}

type OrderData struct {
	Order Order `json:"order"`
	// Replayed is set when an Idempotency-Key matched an earlier request.
	Replayed bool `json:"replayed,omitempty"`
}

type OrdersData struct {
	Orders []Order `json:"orders"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

type ProcessesData struct {
	Total          int            `json:"total"`
	Limit          int            `json:"limit"`
	Offset         int            `json:"offset"`
	OrderProcesses []ProcessEntry `json:"orderProcesses"`
}

type TimelineStep struct {
	Status     string  `json:"status"`
	Completed  bool    `json:"completed"`
	Current    bool    `json:"current"`
	Selectable bool    `json:"selectable"`
	ReachedAt  *string `json:"reachedAt,omitempty"`
}

type Timeline struct {
	OrderStatus string         `json:"orderStatus"`
	Version     int            `json:"version"`
	Steps       []TimelineStep `json:"steps"`
	Cancellable bool           `json:"cancellable"`
}

type TimelineData struct {
	Timeline Timeline `json:"timeline"`
}

type StatusesData struct {
	StatusFlow []string            `json:"statusFlow"`
	Allowed    map[string][]string `json:"allowed"`
	Machine    json.RawMessage     `json:"machine"`
}

// AddProcessRequest is the body of PUT /api/order/add-single-product-order-process.
type AddProcessRequest struct {
	ID              string     `json:"_id"`
	OrderStatus     string     `json:"orderStatus"`
	Process         string     `json:"process"`
	Date            *time.Time `json:"date,omitempty"`
	Courier         *Courier   `json:"courier,omitempty"`
	Images          []string   `json:"images,omitempty"`
	ExpectedVersion *int       `json:"expectedVersion,omitempty"`
}

// UpdateStatusRequest is the body of PUT /api/order/update-order-status.
type UpdateStatusRequest struct {
	ID              string   `json:"_id"`
	OrderStatus     string   `json:"orderStatus"`
	Courier         *Courier `json:"courier,omitempty"`
	ExpectedVersion *int     `json:"expectedVersion,omitempty"`
}

// CancelRequest is the body of PUT /api/order/cancel-order.
type CancelRequest struct {
	ID              string `json:"_id"`
	Reason          string `json:"reason"`
	ExpectedVersion *int   `json:"expectedVersion,omitempty"`
}

const timeLayout = time.RFC3339

// FormatTime renders t the way every timestamp goes over the wire.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// FromOrder converts a domain order. A nil process log becomes an empty list.
func FromOrder(o *domain.Order) Order {
	out := Order{
		ID:              o.ID.String(),
		TrackingNumber:  o.TrackingNumber,
		SellerID:        o.SellerID.String(),
		OrderStatus:     string(o.Status),
		Version:         o.Version,
		ProductName:     o.ProductName,
		Quantity:        o.Quantity,
		FinalUnitPrice:  o.FinalUnitPrice,
		FinalTotalPrice: o.FinalTotalPrice,
		Discount:        o.Discount,
		Images:          nonNil(o.Images),
		Customer: Customer{
			ID:        o.Customer.ID,
			FullNames: o.Customer.FullNames,
			Email:     o.Customer.Email,
			Phone:     o.Customer.Phone,
		},
		Addresses:      o.Address,
		OrderProcesses: FromProcesses(o.Processes),
		CreatedAt:      FormatTime(o.CreatedAt),
		UpdatedAt:      FormatTime(o.UpdatedAt),
	}
	if o.Courier != nil {
		out.Courier = &Courier{
			Name:              o.Courier.Name,
			TrackingNumber:    o.Courier.TrackingNumber,
			EstimatedDelivery: o.Courier.EstimatedDelivery,
		}
	}
	return out
}

func FromOrders(orders []*domain.Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromOrder(o))
	}
	return out
}

func FromProcess(e domain.ProcessEntry) ProcessEntry {
	return ProcessEntry{
		ID:       e.ID.String(),
		Sequence: e.Sequence,
		Status:   string(e.Status),
		Note:     e.Note,
		Process:  e.Process,
		Images:   nonNil(e.Images),
		Date:     FormatTime(e.Date),
	}
}

func FromProcesses(entries []domain.ProcessEntry) []ProcessEntry {
	out := make([]ProcessEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromProcess(e))
	}
	return out
}

// ToDomain converts a wire entry back. Unparseable ids and dates are left zero.
func (e ProcessEntry) ToDomain() domain.ProcessEntry {
	out := domain.ProcessEntry{
		Sequence: e.Sequence,
		Status:   domain.OrderStatus(e.Status),
		Note:     e.Note,
		Process:  e.Process,
		Images:   e.Images,
	}
	if id, err := uuid.Parse(e.ID); err == nil {
		out.ID = id
	}
	if t, err := time.Parse(timeLayout, e.Date); err == nil {
		out.Date = t
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
