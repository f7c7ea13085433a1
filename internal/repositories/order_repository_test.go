package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baristaq/baristaq/internal/domain/order"
)

func storedOrder(id int64, received time.Time) *order.Order {
	o := &order.Order{
		OrderID:      id,
		Customer:     "Robin",
		TimeReceived: received,
		Drinks: []order.Drink{
			{
				Name:       "Latte",
				Milk:       "Oat",
				Texture:    "Wet",
				MilkVolume: 2,
				Shots:      2,
				Options:    []string{"Decaf", "Honey"},
			},
			{
				Name:    "Double Espresso",
				Milk:    order.NoMilk,
				Shots:   2,
				Options: []string{},
			},
		},
	}
	o.Normalize()
	return o
}

func TestOrderRepository(t *testing.T) {
	td := SetupTestDatabase(t)
	defer td.Cleanup()

	repo := NewOrderRepository(td.Pool)
	ctx := context.Background()

	t.Run("add and read back", func(t *testing.T) {
		require.NoError(t, repo.ClearQueue(ctx))

		o := storedOrder(1, time.Now())
		require.NoError(t, repo.AddOrder(ctx, o))

		queue, err := repo.GetQueue(ctx)
		require.NoError(t, err)
		require.Len(t, queue, 1)

		got := queue[0]
		assert.Equal(t, o.OrderID, got.OrderID)
		assert.Equal(t, o.Customer, got.Customer)
		assert.Nil(t, got.TimeComplete)
		require.Len(t, got.Drinks, 2)
		assert.Equal(t, "Latte", got.Drinks[0].Name)
		assert.Equal(t, []string{"Decaf", "Honey"}, got.Drinks[0].Options)
		assert.Equal(t, []string{}, got.Drinks[1].Options)
		assert.Equal(t, order.NoMilk, got.Drinks[1].Milk)
	})

	t.Run("duplicate order id rolls back", func(t *testing.T) {
		require.NoError(t, repo.ClearQueue(ctx))

		o := storedOrder(2, time.Now())
		require.NoError(t, repo.AddOrder(ctx, o))
		assert.Error(t, repo.AddOrder(ctx, storedOrder(2, time.Now())))

		queue, err := repo.GetQueue(ctx)
		require.NoError(t, err)
		assert.Len(t, queue, 1)
	})

	t.Run("complete drink and order", func(t *testing.T) {
		require.NoError(t, repo.ClearQueue(ctx))

		o := storedOrder(3, time.Now())
		require.NoError(t, repo.AddOrder(ctx, o))

		now := time.Now()
		require.NoError(t, repo.CompleteDrink(ctx, o.Drinks[0].Identifier, now))
		require.NoError(t, repo.CompleteOrder(ctx, o.OrderID, now))

		queue, err := repo.GetQueue(ctx)
		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.NotNil(t, queue[0].TimeComplete)
		assert.NotNil(t, queue[0].Drinks[0].TimeComplete)
		assert.Nil(t, queue[0].Drinks[1].TimeComplete)
	})

	t.Run("completing unknown rows", func(t *testing.T) {
		assert.ErrorIs(t, repo.CompleteDrink(ctx, 999999, time.Now()), order.ErrOrderNotFound)
		assert.ErrorIs(t, repo.CompleteOrder(ctx, 999999, time.Now()), order.ErrOrderNotFound)
	})

	t.Run("clear old records keeps today", func(t *testing.T) {
		require.NoError(t, repo.ClearQueue(ctx))

		today := storedOrder(4, time.Now())
		require.NoError(t, repo.AddOrder(ctx, today))

		yesterday := storedOrder(5, time.Now().AddDate(0, 0, -1))
		yesterday.DateReceived = yesterday.TimeReceived.Truncate(24 * time.Hour)
		require.NoError(t, repo.AddOrder(ctx, yesterday))

		require.NoError(t, repo.ClearOldRecords(ctx))

		queue, err := repo.GetQueue(ctx)
		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Equal(t, int64(4), queue[0].OrderID)
	})

	t.Run("queue ordering by time received", func(t *testing.T) {
		require.NoError(t, repo.ClearQueue(ctx))

		base := time.Now()
		require.NoError(t, repo.AddOrder(ctx, storedOrder(7, base)))
		require.NoError(t, repo.AddOrder(ctx, storedOrder(6, base.Add(-time.Minute))))

		queue, err := repo.GetQueue(ctx)
		require.NoError(t, err)
		require.Len(t, queue, 2)
		assert.Equal(t, int64(6), queue[0].OrderID)
		assert.Equal(t, int64(7), queue[1].OrderID)
	})
}
