package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/domain"
)

func TestOrderProcessRepository_ListByOrderID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrderProcessRepository(db, zap.NewNop())

	orderID := uuid.New()
	at := time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)

	mock.ExpectQuery("FROM order_processes").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "sequence", "status", "note", "process", "images", "date"}).
			AddRow(uuid.NewString(), orderID.String(), 1, "Pending", "Order created", "Pending - Order created", []byte("{}"), at).
			AddRow(uuid.NewString(), orderID.String(), 2, "", "", "Paid - Payment confirmed via M-Pesa", []byte(`{"https://cdn.example.com/r.png"}`), at.Add(time.Hour)))

	entries, err := repo.ListByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, domain.OrderStatusPending, entries[0].Status)
	assert.Empty(t, entries[0].Images)
	assert.Equal(t, 2, entries[1].Sequence)
	assert.Equal(t, []string{"https://cdn.example.com/r.png"}, entries[1].Images)

	// untagged legacy entry still resolves from its prefix
	st, ok := entries[1].EffectiveStatus()
	assert.True(t, ok)
	assert.Equal(t, domain.OrderStatusPaid, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}
