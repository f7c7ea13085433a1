package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baristaq/baristaq/internal/domain/order"
)

// OrderRepository implements order.Store with PostgreSQL
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository creates a new PostgreSQL order repository
func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		db: db,
	}
}

// Migrate creates the orders and drinks relations if they do not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		CREATE TABLE IF NOT EXISTS orders (
			order_id      BIGINT PRIMARY KEY,
			customer      TEXT NOT NULL,
			date_received DATE NOT NULL,
			time_received TIMESTAMPTZ NOT NULL,
			time_complete TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS drinks (
			identifier    BIGINT PRIMARY KEY,
			order_id      BIGINT NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
			drink         TEXT NOT NULL,
			milk          TEXT NOT NULL,
			milk_volume   DOUBLE PRECISION NOT NULL,
			shots         INT NOT NULL,
			temperature   TEXT NOT NULL DEFAULT '',
			texture       TEXT NOT NULL DEFAULT '',
			options       TEXT NOT NULL DEFAULT '',
			customer      TEXT NOT NULL DEFAULT '',
			time_received TIMESTAMPTZ NOT NULL,
			time_complete TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_drinks_order_id ON drinks(order_id);
		CREATE INDEX IF NOT EXISTS idx_orders_date_received ON orders(date_received);`

	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// AddOrder persists the order and its drinks in a single transaction.
func (r *OrderRepository) AddOrder(ctx context.Context, o *order.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	orderQuery := `
		INSERT INTO orders (order_id, customer, date_received, time_received, time_complete)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = tx.Exec(ctx, orderQuery,
		o.OrderID,
		o.Customer,
		o.DateReceived,
		o.TimeReceived,
		o.TimeComplete,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	drinkQuery := `
		INSERT INTO drinks (
			identifier, order_id, drink, milk, milk_volume,
			shots, temperature, texture, options, customer,
			time_received, time_complete
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, d := range o.Drinks {
		_, err = tx.Exec(ctx, drinkQuery,
			d.Identifier,
			d.OrderID,
			d.Name,
			d.Milk,
			d.MilkVolume,
			d.Shots,
			d.Temperature,
			d.Texture,
			strings.Join(d.Options, ","),
			d.Customer,
			d.TimeReceived,
			d.TimeComplete,
		)
		if err != nil {
			return fmt.Errorf("failed to insert drink %d: %w", d.Identifier, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// CompleteDrink stamps a drink's completion time.
func (r *OrderRepository) CompleteDrink(ctx context.Context, identifier int64, at time.Time) error {
	query := `UPDATE drinks SET time_complete = $1 WHERE identifier = $2`

	tag, err := r.db.Exec(ctx, query, at, identifier)
	if err != nil {
		return fmt.Errorf("failed to complete drink %d: %w", identifier, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// CompleteOrder stamps an order's completion time.
func (r *OrderRepository) CompleteOrder(ctx context.Context, orderID int64, at time.Time) error {
	query := `UPDATE orders SET time_complete = $1 WHERE order_id = $2`

	tag, err := r.db.Exec(ctx, query, at, orderID)
	if err != nil {
		return fmt.Errorf("failed to complete order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// GetQueue returns today's orders with their drinks, oldest first.
func (r *OrderRepository) GetQueue(ctx context.Context) ([]order.Order, error) {
	orderQuery := `
		SELECT order_id, customer, date_received, time_received, time_complete
		FROM orders
		WHERE date_received = CURRENT_DATE
		ORDER BY time_received ASC`

	rows, err := r.db.Query(ctx, orderQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []order.Order
	index := make(map[int64]int)
	for rows.Next() {
		var o order.Order
		var timeComplete sql.NullTime
		if err := rows.Scan(&o.OrderID, &o.Customer, &o.DateReceived, &o.TimeReceived, &timeComplete); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if timeComplete.Valid {
			o.TimeComplete = &timeComplete.Time
		}
		index[o.OrderID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	drinkQuery := `
		SELECT d.identifier, d.order_id, d.drink, d.milk, d.milk_volume,
		       d.shots, d.temperature, d.texture, d.options, d.customer,
		       d.time_received, d.time_complete
		FROM drinks d
		JOIN orders o ON o.order_id = d.order_id
		WHERE o.date_received = CURRENT_DATE
		ORDER BY d.identifier ASC`

	drinkRows, err := r.db.Query(ctx, drinkQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query drinks: %w", err)
	}
	defer drinkRows.Close()

	for drinkRows.Next() {
		var d order.Drink
		var options string
		var timeComplete sql.NullTime
		if err := drinkRows.Scan(
			&d.Identifier,
			&d.OrderID,
			&d.Name,
			&d.Milk,
			&d.MilkVolume,
			&d.Shots,
			&d.Temperature,
			&d.Texture,
			&options,
			&d.Customer,
			&d.TimeReceived,
			&timeComplete,
		); err != nil {
			return nil, fmt.Errorf("failed to scan drink: %w", err)
		}
		d.Options = splitOptions(options)
		if timeComplete.Valid {
			d.TimeComplete = &timeComplete.Time
		}
		if i, ok := index[d.OrderID]; ok {
			orders[i].Drinks = append(orders[i].Drinks, d)
		}
	}
	if err := drinkRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read drinks: %w", err)
	}

	return orders, nil
}

// ClearOldRecords deletes orders received before today; drinks cascade.
func (r *OrderRepository) ClearOldRecords(ctx context.Context) error {
	query := `DELETE FROM orders WHERE date_received < CURRENT_DATE`

	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to clear old records: %w", err)
	}
	return nil
}

// ClearQueue deletes every order and, by cascade, every drink.
func (r *OrderRepository) ClearQueue(ctx context.Context) error {
	query := `DELETE FROM orders`

	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

func splitOptions(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, ",")
}
