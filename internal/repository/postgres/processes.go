package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/domain"
)

type orderProcessRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderProcessRepository creates a new order process repository
func NewOrderProcessRepository(db *sql.DB, logger *zap.Logger) *orderProcessRepository {
	return &orderProcessRepository{
		db:     db,
		logger: logger,
	}
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// insertProcess appends one entry. Callers own the transaction.
func insertProcess(ctx context.Context, db execer, entry *domain.ProcessEntry) error {
	query := `
		INSERT INTO order_processes (id, order_id, sequence, status, note, process, images, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	images := entry.Images
	if images == nil {
		images = []string{}
	}

	_, err := db.ExecContext(ctx, query,
		entry.ID,
		entry.OrderID,
		entry.Sequence,
		entry.Status,
		entry.Note,
		entry.Process,
		pq.Array(images),
		entry.Date,
	)
	return err
}

func (r *orderProcessRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.ProcessEntry, error) {
	query := `
		SELECT id, order_id, sequence, status, note, process, images, date
		FROM order_processes
		WHERE order_id = $1
		ORDER BY sequence ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to list order processes", zap.Error(err), zap.String("order_id", orderID.String()))
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ProcessEntry
	for rows.Next() {
		var e domain.ProcessEntry
		var images pq.StringArray

		err := rows.Scan(
			&e.ID,
			&e.OrderID,
			&e.Sequence,
			&e.Status,
			&e.Note,
			&e.Process,
			&images,
			&e.Date,
		)
		if err != nil {
			return nil, err
		}

		e.Images = []string(images)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
