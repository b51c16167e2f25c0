package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/pkg/errors"
)

const orderColumns = `
	id, tracking_number, seller_id, status, version, product_name, quantity,
	final_unit_price, final_total_price, discount, images,
	customer_id, customer_full_names, customer_email, customer_phone, address,
	courier_name, courier_tracking_number, courier_estimated_delivery,
	created_at, updated_at`

type orderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
	}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, tracking_number, seller_id, status, version, product_name, quantity,
			final_unit_price, final_total_price, discount, images,
			customer_id, customer_full_names, customer_email, customer_phone, address,
			courier_name, courier_tracking_number, courier_estimated_delivery,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}
	order.Version = len(order.Processes)
	if order.Version == 0 {
		order.Version = 1
	}

	var addressJSON []byte
	if order.Address != nil {
		var err error
		addressJSON, err = json.Marshal(order.Address)
		if err != nil {
			return err
		}
	}
	images := order.Images
	if images == nil {
		images = []string{}
	}
	courierName, courierTracking, courierETA := courierArgs(order.Courier)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.TrackingNumber,
		order.SellerID,
		order.Status,
		order.Version,
		order.ProductName,
		order.Quantity,
		order.FinalUnitPrice,
		order.FinalTotalPrice,
		order.Discount,
		pq.Array(images),
		order.Customer.ID,
		order.Customer.FullNames,
		order.Customer.Email,
		order.Customer.Phone,
		addressJSON,
		courierName,
		courierTracking,
		courierETA,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create order", zap.Error(err))
		return err
	}

	for i := range order.Processes {
		e := &order.Processes[i]
		e.OrderID = order.ID
		e.Sequence = i + 1
		if e.Date.IsZero() {
			e.Date = order.CreatedAt
		}
		if err := insertProcess(ctx, tx, e); err != nil {
			r.logger.Error("Failed to create order process", zap.Error(err))
			return err
		}
	}

	return tx.Commit()
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get order by ID", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tracking_number = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, trackingNumber))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: trackingNumber}
	}
	if err != nil {
		r.logger.Error("Failed to get order by tracking number", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) ListBySellerID(ctx context.Context, sellerID uuid.UUID, filter domain.OrderFilter) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE seller_id = $1`
	args := []interface{}{sellerID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (tracking_number ILIKE $%d OR product_name ILIKE $%d OR customer_full_names ILIKE $%d)", n, n, n)
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list orders by seller ID", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

func (r *orderRepository) AppendProcess(ctx context.Context, orderID uuid.UUID, expectedVersion int, entry *domain.ProcessEntry, courier *domain.Courier) error {
	query := `
		UPDATE orders
		SET status = $3,
			version = version + 1,
			courier_name = COALESCE($4, courier_name),
			courier_tracking_number = COALESCE($5, courier_tracking_number),
			courier_estimated_delivery = COALESCE($6, courier_estimated_delivery),
			updated_at = $7
		WHERE id = $1 AND version = $2
		RETURNING version
	`

	now := time.Now()
	if entry.Date.IsZero() {
		entry.Date = now
	}
	courierName, courierTracking, courierETA := courierArgs(courier)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	var newVersion int
	err = tx.QueryRowContext(ctx, query,
		orderID,
		expectedVersion,
		entry.Status,
		courierName,
		courierTracking,
		courierETA,
		now,
	).Scan(&newVersion)
	if err == sql.ErrNoRows {
		return r.staleOrMissing(ctx, tx, orderID, expectedVersion)
	}
	if err != nil {
		r.logger.Error("Failed to update order status", zap.Error(err), zap.String("order_id", orderID.String()))
		return err
	}

	entry.OrderID = orderID
	entry.Sequence = newVersion
	if err := insertProcess(ctx, tx, entry); err != nil {
		r.logger.Error("Failed to append order process", zap.Error(err), zap.String("order_id", orderID.String()))
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit order process", zap.Error(err))
		return err
	}
	return nil
}

// staleOrMissing tells a missing order apart from a version mismatch after the
// guarded UPDATE matched no row.
func (r *orderRepository) staleOrMissing(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, expectedVersion int) error {
	var current int
	err := tx.QueryRowContext(ctx, `SELECT version FROM orders WHERE id = $1`, orderID).Scan(&current)
	if err == sql.ErrNoRows {
		return &errors.ErrNotFound{Resource: "order", ID: orderID.String()}
	}
	if err != nil {
		return err
	}
	r.logger.Info("Order version conflict",
		zap.String("order_id", orderID.String()),
		zap.Int("expected_version", expectedVersion),
		zap.Int("current_version", current))
	return &errors.ErrConflict{
		Message: fmt.Sprintf("order was modified by another request (expected version %d, current %d)", expectedVersion, current),
	}
}

func courierArgs(c *domain.Courier) (name, tracking, eta interface{}) {
	if c == nil {
		return nil, nil, nil
	}
	name = c.Name
	if c.TrackingNumber != "" {
		tracking = c.TrackingNumber
	}
	if c.EstimatedDelivery != nil {
		eta = *c.EstimatedDelivery
	}
	return name, tracking, eta
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var images pq.StringArray
	var addressJSON []byte
	var courierName, courierTracking sql.NullString
	var courierETA sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.TrackingNumber,
		&order.SellerID,
		&order.Status,
		&order.Version,
		&order.ProductName,
		&order.Quantity,
		&order.FinalUnitPrice,
		&order.FinalTotalPrice,
		&order.Discount,
		&images,
		&order.Customer.ID,
		&order.Customer.FullNames,
		&order.Customer.Email,
		&order.Customer.Phone,
		&addressJSON,
		&courierName,
		&courierTracking,
		&courierETA,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Images = []string(images)
	if len(addressJSON) > 0 {
		if err := json.Unmarshal(addressJSON, &order.Address); err != nil {
			return nil, err
		}
	}
	if courierName.Valid {
		order.Courier = &domain.Courier{Name: courierName.String}
		if courierTracking.Valid {
			order.Courier.TrackingNumber = courierTracking.String
		}
		if courierETA.Valid {
			t := courierETA.Time
			order.Courier.EstimatedDelivery = &t
		}
	}

	return &order, nil
}
