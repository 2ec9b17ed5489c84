package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"dispatch/internal/domain"
)

const orderColumns = `id, patient, destination, time, status, driver_id, created_at, updated_at`

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// ListPending retrieves all pending orders, newest created first.
func (r *OrderRepository) ListPending(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, domain.OrderStatusPending)
}

// ListHistory retrieves the decided orders of a driver, most recently updated first.
func (r *OrderRepository) ListHistory(ctx context.Context, driverID string) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = ANY($1) AND driver_id = $2
		ORDER BY updated_at DESC
	`
	statuses := pq.Array([]string{string(domain.OrderStatusAccepted), string(domain.OrderStatusRejected)})
	return r.list(ctx, query, statuses, driverID)
}

// InsertMany persists a batch of new orders in a single statement and
// fills in the store-assigned IDs.
func (r *OrderRepository) InsertMany(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	values := make([]string, 0, len(orders))
	args := make([]any, 0, len(orders)*6)
	for i, o := range orders {
		n := i * 6
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6))
		args = append(args, o.Patient, o.Destination, o.Time, o.Status, o.CreatedAt, o.UpdatedAt)
	}

	query := `INSERT INTO orders (patient, destination, time, status, created_at, updated_at) VALUES ` +
		strings.Join(values, ", ") + ` RETURNING id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for i := 0; rows.Next(); i++ {
		if i >= len(orders) {
			break
		}
		if err := rows.Scan(&orders[i].ID); err != nil {
			return err
		}
	}
	return rows.Err()
}

// UpdateStatus records a driver decision on an order and returns the updated row.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, driverID string, at time.Time) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET status = $1, driver_id = $2, updated_at = $3
		WHERE id = $4
		RETURNING ` + orderColumns

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, status, nullString(driverID), at, id))
	if err != nil {
		return nil, translateError(err)
	}
	return order, nil
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var driverID sql.NullString
	if err := row.Scan(
		&order.ID,
		&order.Patient,
		&order.Destination,
		&order.Time,
		&order.Status,
		&driverID,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if driverID.Valid {
		order.DriverID = driverID.String
	}
	return &order, nil
}
