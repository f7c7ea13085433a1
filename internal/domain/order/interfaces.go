package order

import (
	"context"
	"time"
)

// Store is the durable mirror of orders and drinks. Each mutation is its
// own transaction; implementations roll back on error.
type Store interface {
	AddOrder(ctx context.Context, o *Order) error

	CompleteDrink(ctx context.Context, identifier int64, at time.Time) error

	CompleteOrder(ctx context.Context, orderID int64, at time.Time) error

	// GetQueue returns today's orders with their drinks, ordered by
	// timeReceived ascending.
	GetQueue(ctx context.Context) ([]Order, error)

	ClearOldRecords(ctx context.Context) error

	ClearQueue(ctx context.Context) error
}

// Broadcaster pushes queue snapshots to connected UI clients.
type Broadcaster interface {
	Broadcast(snapshot Snapshot)
}
