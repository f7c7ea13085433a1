package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/baristaq/baristaq/internal/domain/order"
)

// QueueService is the queue optimization engine. It owns the live queue
// of orders and batches, the positional lookup table, the order history
// and the session counters, regrouping pending drinks on every arrival
// so drinks sharing a milk preparation are made from one steamed jug.
//
// A single mutex guards all state; mutations persist through the store
// (when enabled) and finish with one snapshot broadcast.
type QueueService struct {
	mu      sync.Mutex
	items   []*order.Item
	table   *lookupTable
	history *orderHistory

	totalOrders    int
	totalDrinks    int
	ordersComplete int
	drinksComplete int

	searchDepth int
	store       order.Store
	broadcaster order.Broadcaster
	logger      *zap.Logger
	closed      bool
}

// Counters is a read-only view of the session counters.
type Counters struct {
	TotalOrders    int `json:"totalOrders"`
	TotalDrinks    int `json:"totalDrinks"`
	OrdersComplete int `json:"ordersComplete"`
	DrinksComplete int `json:"drinksComplete"`
}

// NewQueueService creates the engine. The lookup table is keyed by every
// milk/texture combination from configuration; searchDepth caps the
// lookback for multi-drink orders. store may be nil (persistence
// disabled) and broadcaster may be nil (no observers).
func NewQueueService(milks, textures []string, searchDepth int, store order.Store, broadcaster order.Broadcaster, logger *zap.Logger) *QueueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueService{
		table:       newLookupTable(milks, textures),
		history:     newOrderHistory(),
		searchDepth: searchDepth,
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// AddOrder validates, appends and optimizes an incoming order. When
// persist is set the order is written through to the store after the
// in-memory mutation; a persistence failure is returned but leaves the
// queue state in place until the next startup replay reconciles.
func (q *QueueService) AddOrder(ctx context.Context, o *order.Order, persist bool) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return order.ErrShuttingDown
	}
	o.Normalize()
	if err := o.Validate(); err != nil {
		q.mu.Unlock()
		return err
	}
	err := q.addLocked(ctx, o, persist, true)
	snap := q.snapshotLocked()
	q.mu.Unlock()

	q.broadcast(snap)
	return err
}

// CompleteDrinks marks the given drinks complete, removes them from the
// live queue and stamps their history entries. Unknown identifiers are
// ignored; calling twice with the same identifiers is idempotent.
func (q *QueueService) CompleteDrinks(ctx context.Context, ids []int64) error {
	q.mu.Lock()
	_, err := q.completeLocked(ctx, ids, time.Now())
	snap := q.snapshotLocked()
	q.mu.Unlock()

	q.broadcast(snap)
	return err
}

// CompleteItem completes every drink of the item at index.
func (q *QueueService) CompleteItem(ctx context.Context, index int) error {
	q.mu.Lock()
	if index < 0 || index >= len(q.items) {
		q.mu.Unlock()
		return order.ErrIndexOutOfRange
	}
	var ids []int64
	for _, d := range q.items[index].Drinks() {
		ids = append(ids, d.Identifier)
	}
	_, err := q.completeLocked(ctx, ids, time.Now())
	snap := q.snapshotLocked()
	q.mu.Unlock()

	q.broadcast(snap)
	return err
}

// CompletedItems returns history entries projected to their completed
// drinks, most recent first. Entries without completed drinks are
// omitted.
func (q *QueueService) CompletedItems() []order.Order {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.history.completedItems()
}

// CountCompletedOrders returns the number of fully completed orders.
func (q *QueueService) CountCompletedOrders() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.history.countCompleted()
}

// Snapshot returns an immutable copy of the live queue and counters.
func (q *QueueService) Snapshot() order.Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Counters returns the session counters.
func (q *QueueService) Counters() Counters {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Counters{
		TotalOrders:    q.totalOrders,
		TotalDrinks:    q.totalDrinks,
		OrdersComplete: q.ordersComplete,
		DrinksComplete: q.drinksComplete,
	}
}

// Replay rebuilds the engine from persisted orders, oldest first, with
// persistence disabled: each order lands in history exactly once, drinks
// already completed count into DrinksComplete, and the remaining drinks
// re-enter the live queue through the normal batching path. A single
// broadcast follows so late-joining clients see the full state.
func (q *QueueService) Replay(ctx context.Context, persisted []order.Order) {
	q.mu.Lock()
	var maxID int64
	for i := range persisted {
		full := persisted[i].Clone()
		for _, d := range full.Drinks {
			if d.Identifier > maxID {
				maxID = d.Identifier
			}
		}
		q.history.addFront(full)

		if full.TimeComplete != nil {
			// Per-drink stamps, not the drink count: a row can be
			// stamped complete while a drink stamp is missing.
			for _, d := range full.Drinks {
				if d.TimeComplete != nil {
					q.drinksComplete++
				}
			}
			q.ordersComplete++
			continue
		}

		live := persisted[i].Clone()
		pending := live.Drinks[:0]
		for _, d := range live.Drinks {
			if d.TimeComplete == nil {
				pending = append(pending, d)
			} else {
				q.drinksComplete++
			}
		}
		if len(pending) == 0 {
			continue
		}
		live.Drinks = pending
		if err := q.addLocked(ctx, live, false, false); err != nil {
			q.logger.Warn("replay: order skipped", zap.Int64("orderID", live.OrderID), zap.Error(err))
		}
	}
	order.SeedDrinkIDs(maxID)
	snap := q.snapshotLocked()
	drinksComplete := q.drinksComplete
	q.mu.Unlock()

	q.logger.Info("queue replayed",
		zap.Int("orders", len(persisted)),
		zap.Int("live", snap.TotalOrders),
		zap.Int("drinksComplete", drinksComplete),
	)
	q.broadcast(snap)
}

// Shutdown stops the engine accepting new orders.
func (q *QueueService) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// addLocked runs the optimization pass: append, internal batching,
// cross-order merge, cleanup, persistence. Callers hold the mutex.
func (q *QueueService) addLocked(ctx context.Context, o *order.Order, persist, recordHistory bool) error {
	q.items = append(q.items, order.OrderItem(o))
	pos := len(q.items) - 1
	if recordHistory {
		q.history.addFront(o.Clone())
	}
	q.totalOrders++
	q.totalDrinks += len(o.Drinks)

	// Single-drink orders may jump any distance forward; multi-drink
	// orders look back at most searchDepth positions.
	depth := pos
	if len(o.Drinks) > 1 {
		depth = q.searchDepth
		pos = q.batchWithinOrder(o, pos)
	}

	for _, d := range slices.Clone(o.Drinks) {
		if !d.NeedsMilk() {
			continue
		}
		if merged, newPos := q.mergeForward(o, d, pos, depth); merged {
			pos = newPos
		} else {
			q.table.add(d.MilkKey(), pos)
		}
	}

	q.cleanupLocked()

	if persist && q.store != nil {
		if entry := q.history.get(o.OrderID); entry != nil {
			if err := q.store.AddOrder(ctx, entry); err != nil {
				q.logger.Error("persist order failed", zap.Int64("orderID", o.OrderID), zap.Error(err))
				// The order stays live in memory; callers must not
				// treat this as a rejection.
				return fmt.Errorf("order %d: %w", o.OrderID, errors.Join(order.ErrPersistFailed, err))
			}
		}
	}
	return nil
}

// batchWithinOrder extracts same-preparation groups of the new order
// into batches inserted directly in front of it. Returns the order's
// index after the insertions. Drinks that would push a batch past the
// jug capacity stay in the order for the cross-order pass.
func (q *QueueService) batchWithinOrder(o *order.Order, pos int) int {
	for _, group := range o.GroupDrinks() {
		if len(group) < 2 {
			continue
		}
		batch := order.NewBatch(group[0].Milk, group[0].Texture)
		var moved []int64
		for _, d := range group {
			if batch.CanAdd(d) {
				batch.Add(d)
				moved = append(moved, d.Identifier)
			}
		}
		if len(moved) < 2 {
			continue
		}
		for _, id := range moved {
			o.RemoveDrink(id)
		}
		q.insertItem(pos, order.BatchItem(batch), batch.MilkKey())
		q.logger.Debug("batched within order",
			zap.Int64("orderID", o.OrderID),
			zap.String("key", batch.MilkKey()),
			zap.Int("drinks", len(batch.Drinks)),
			zap.Float64("volume", batch.Volume),
		)
		pos++
	}
	return pos
}

// mergeForward tries to place drink d of the order at pos into an item
// further up the queue. Candidates are enumerated closest-first within
// the lookback window; positions 0 and 1 are never targets, the barista
// is assumed to be working them. Returns whether a merge happened and
// the order's (possibly shifted) index.
func (q *QueueService) mergeForward(o *order.Order, d order.Drink, pos, depth int) (bool, int) {
	key := d.MilkKey()
	low := pos - depth
	if low < 0 {
		low = 0
	}
	for _, i := range q.table.candidates(key, low, pos) {
		if i <= 1 {
			continue
		}
		target := q.items[i]
		if target.Kind == order.KindBatch {
			if !target.Batch.CanAdd(d) {
				continue
			}
			target.Batch.Add(d)
			o.RemoveDrink(d.Identifier)
			q.logger.Debug("merged into batch",
				zap.Int64("drink", d.Identifier),
				zap.String("key", key),
				zap.Int("position", i),
			)
			return true, pos
		}

		siblings := drinksWithKey(target.Order, key)
		if len(siblings) == 0 {
			continue
		}
		batch := order.NewBatch(d.Milk, d.Texture)
		var taken []int64
		for _, s := range siblings {
			if batch.Volume+s.MilkVolume+d.MilkVolume <= order.MaxBatchVolume {
				batch.Add(s)
				taken = append(taken, s.Identifier)
			}
		}
		if len(taken) == 0 {
			continue
		}
		batch.Add(d)
		for _, id := range taken {
			target.Order.RemoveDrink(id)
		}
		o.RemoveDrink(d.Identifier)
		q.insertItem(i, order.BatchItem(batch), key)
		// The donor order shifted to i+1; drop its stale entry once it
		// has no matching drinks left.
		if len(drinksWithKey(target.Order, key)) == 0 {
			q.table.remove(key, i+1)
		}
		q.logger.Debug("batched across orders",
			zap.Int64("drink", d.Identifier),
			zap.Int64("donorOrderID", target.Order.OrderID),
			zap.String("key", key),
			zap.Int("position", i),
		)
		return true, pos + 1
	}
	return false, pos
}

// insertItem places it at pos, renumbering the table before recording
// the new entry. All sequence insertions flow through here.
func (q *QueueService) insertItem(pos int, it *order.Item, key string) {
	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = it
	q.table.shiftInsert(pos)
	q.table.add(key, pos)
}

// removeItem drops the item at pos and renumbers the table. All sequence
// removals flow through here.
func (q *QueueService) removeItem(pos int) {
	q.items = append(q.items[:pos], q.items[pos+1:]...)
	q.table.shiftRemove(pos)
}

// cleanupLocked drops empty items and recomputes totalOrders as the
// number of distinct orderIDs among live drinks. Runs after every
// mutation, including failed ones.
func (q *QueueService) cleanupLocked() {
	i := 0
	for i < len(q.items) {
		if len(q.items[i].Drinks()) == 0 {
			q.removeItem(i)
		} else {
			i++
		}
	}
	ids := make(map[int64]struct{})
	for _, it := range q.items {
		for _, d := range it.Drinks() {
			ids[d.OrderID] = struct{}{}
		}
	}
	q.totalOrders = len(ids)
}

// completeLocked retires the drinks found live, stamps their history
// entries with a single wall-clock reading and cascades completion to
// orders whose every drink is now done. Counters move by the number of
// identifiers actually found, making repeated calls idempotent.
func (q *QueueService) completeLocked(ctx context.Context, ids []int64, now time.Time) (int, error) {
	idSet := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	affected := make(map[int64]struct{})
	found := 0
	for pos, it := range q.items {
		drinks := it.Drinks()
		keep := make([]order.Drink, 0, len(drinks))
		var retiredKeys map[string]struct{}
		for _, d := range drinks {
			if _, ok := idSet[d.Identifier]; ok {
				affected[d.OrderID] = struct{}{}
				found++
				if d.NeedsMilk() {
					if retiredKeys == nil {
						retiredKeys = make(map[string]struct{})
					}
					retiredKeys[d.MilkKey()] = struct{}{}
				}
				continue
			}
			keep = append(keep, d)
		}
		if len(keep) == len(drinks) {
			continue
		}
		it.SetDrinks(keep)
		// A surviving order may have lost its last drink for a key;
		// drop those entries so the index stays dense. Batch entries
		// only go stale empty, which cleanup handles.
		if it.Kind == order.KindOrder {
			for key := range retiredKeys {
				if len(drinksWithKey(it.Order, key)) == 0 {
					q.table.remove(key, pos)
				}
			}
		}
	}

	q.cleanupLocked()

	var firstErr error
	for orderID := range affected {
		entry := q.history.get(orderID)
		if entry == nil {
			continue
		}
		for i := range entry.Drinks {
			d := &entry.Drinks[i]
			if _, ok := idSet[d.Identifier]; !ok || d.TimeComplete != nil {
				continue
			}
			t := now
			d.TimeComplete = &t
			if q.store != nil {
				if err := q.store.CompleteDrink(ctx, d.Identifier, now); err != nil {
					q.logger.Error("persist drink completion failed", zap.Int64("drink", d.Identifier), zap.Error(err))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
		done := true
		for _, d := range entry.Drinks {
			if d.TimeComplete == nil {
				done = false
				break
			}
		}
		if done && entry.TimeComplete == nil {
			t := now
			entry.TimeComplete = &t
			q.ordersComplete++
			if q.store != nil {
				if err := q.store.CompleteOrder(ctx, orderID, now); err != nil {
					q.logger.Error("persist order completion failed", zap.Int64("orderID", orderID), zap.Error(err))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	q.totalDrinks -= found
	q.drinksComplete += found
	if found > 0 {
		q.logger.Info("drinks completed", zap.Int("count", found))
	}
	return found, firstErr
}

func (q *QueueService) snapshotLocked() order.Snapshot {
	items := make([]*order.Item, len(q.items))
	for i, it := range q.items {
		items[i] = it.Clone()
	}
	return order.Snapshot{
		Items:       items,
		TotalOrders: q.totalOrders,
		TotalDrinks: q.totalDrinks,
	}
}

func (q *QueueService) broadcast(snap order.Snapshot) {
	if q.broadcaster != nil {
		q.broadcaster.Broadcast(snap)
	}
}

func drinksWithKey(o *order.Order, key string) []order.Drink {
	var out []order.Drink
	for _, d := range o.Drinks {
		if d.NeedsMilk() && d.MilkKey() == key {
			out = append(out, d)
		}
	}
	return out
}

// lookupEntries exposes the table contents for tests and diagnostics.
func (q *QueueService) lookupEntries() map[string][]int {
	return q.table.entries()
}
