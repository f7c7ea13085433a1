package services

import (
	"github.com/baristaq/baristaq/internal/domain/order"
)

// historyRef tracks where an order sits in the history log and which
// drink identifiers belong to it. The index field always matches the
// order's current position; without it, completing a drink meant a full
// traversal of the log for every affected order.
type historyRef struct {
	drinkIDs map[int64]struct{}
	index    int
}

// orderHistory is the append-at-front log of every received order, most
// recent first, with per-drink completion stamps independent of the live
// queue.
type orderHistory struct {
	entries []*order.Order
	refs    map[int64]*historyRef
}

func newOrderHistory() *orderHistory {
	return &orderHistory{refs: make(map[int64]*historyRef)}
}

// addFront inserts o at position 0 and renumbers every prior entry.
// The caller hands over ownership of o.
func (h *orderHistory) addFront(o *order.Order) {
	for _, ref := range h.refs {
		ref.index++
	}
	ids := make(map[int64]struct{}, len(o.Drinks))
	for _, d := range o.Drinks {
		ids[d.Identifier] = struct{}{}
	}
	h.entries = append([]*order.Order{o}, h.entries...)
	h.refs[o.OrderID] = &historyRef{drinkIDs: ids, index: 0}
}

// get returns the history entry for orderID, or nil when unknown.
func (h *orderHistory) get(orderID int64) *order.Order {
	ref, ok := h.refs[orderID]
	if !ok {
		return nil
	}
	return h.entries[ref.index]
}

// completedItems projects each entry to its completed drinks only,
// omitting entries with none.
func (h *orderHistory) completedItems() []order.Order {
	var out []order.Order
	for _, entry := range h.entries {
		var done []order.Drink
		for _, d := range entry.Drinks {
			if d.TimeComplete != nil {
				done = append(done, d.Clone())
			}
		}
		if len(done) == 0 {
			continue
		}
		copied := *entry
		copied.Drinks = done
		out = append(out, copied)
	}
	return out
}

// countCompleted returns the number of fully completed orders.
func (h *orderHistory) countCompleted() int {
	n := 0
	for _, entry := range h.entries {
		if entry.TimeComplete != nil {
			n++
		}
	}
	return n
}

// len returns the number of history entries.
func (h *orderHistory) len() int {
	return len(h.entries)
}

// indexOf returns the recorded position for orderID, or -1.
func (h *orderHistory) indexOf(orderID int64) int {
	ref, ok := h.refs[orderID]
	if !ok {
		return -1
	}
	return ref.index
}
