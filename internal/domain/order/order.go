package order

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync/atomic"
	"time"
)

// NoMilk is the distinguished milk value for drinks prepared without
// steamed milk. Such drinks are never batched or indexed.
const NoMilk = "No Milk"

// MaxBatchVolume is the steam jug capacity: the summed milk volume a
// single batch may hold.
const MaxBatchVolume = 5.0

var drinkIDCounter atomic.Int64

// NextDrinkID returns a process-unique drink identifier.
func NextDrinkID() int64 {
	return drinkIDCounter.Add(1)
}

// SeedDrinkIDs advances the identifier counter past min so identifiers
// restored from persistence never collide with freshly assigned ones.
func SeedDrinkIDs(min int64) {
	for {
		cur := drinkIDCounter.Load()
		if cur >= min {
			return
		}
		if drinkIDCounter.CompareAndSwap(cur, min) {
			return
		}
	}
}

// Drink is a single beverage with its preparation attributes.
type Drink struct {
	Identifier   int64      `json:"identifier"`
	OrderID      int64      `json:"orderID"`
	Customer     string     `json:"customer,omitempty"`
	Name         string     `json:"drink"`
	Milk         string     `json:"milk,omitempty"`
	MilkVolume   float64    `json:"milk_volume"`
	Shots        int        `json:"shots"`
	Temperature  string     `json:"temperature,omitempty"`
	Texture      string     `json:"texture,omitempty"`
	Options      []string   `json:"options"`
	TimeReceived time.Time  `json:"timeReceived"`
	TimeComplete *time.Time `json:"timeComplete,omitempty"`
}

// NeedsMilk reports whether the drink requires a milk preparation and
// therefore participates in batching.
func (d Drink) NeedsMilk() bool {
	return d.Milk != "" && d.Milk != NoMilk
}

// MilkKey returns the lookup table key for the drink's milk preparation.
func (d Drink) MilkKey() string {
	return MilkKey(d.Milk, d.Texture)
}

// MilkKey builds the lookup table key for a milk/texture combination.
func MilkKey(milk, texture string) string {
	return fmt.Sprintf("%s_%s", milk, texture)
}

// Equal reports full attribute equality, identifier included.
func (d Drink) Equal(other Drink) bool {
	return d.Identifier == other.Identifier &&
		d.OrderID == other.OrderID &&
		d.Customer == other.Customer &&
		d.Name == other.Name &&
		d.Milk == other.Milk &&
		d.MilkVolume == other.MilkVolume &&
		d.Shots == other.Shots &&
		d.Temperature == other.Temperature &&
		d.Texture == other.Texture &&
		slices.Equal(d.Options, other.Options) &&
		d.TimeReceived.Equal(other.TimeReceived) &&
		timePtrEqual(d.TimeComplete, other.TimeComplete)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Clone returns a deep copy of the drink.
func (d Drink) Clone() Drink {
	out := d
	out.Options = slices.Clone(d.Options)
	if d.TimeComplete != nil {
		t := *d.TimeComplete
		out.TimeComplete = &t
	}
	return out
}

// Order is a customer submission grouping one or more drinks.
type Order struct {
	OrderID      int64      `json:"orderID"`
	Customer     string     `json:"customer"`
	DateReceived time.Time  `json:"dateReceived"`
	TimeReceived time.Time  `json:"timeReceived"`
	TimeComplete *time.Time `json:"timeComplete,omitempty"`
	Drinks       []Drink    `json:"drinks"`
}

// Normalize populates derived drink fields from the order and assigns
// identifiers to drinks that do not carry one yet. Customer, orderID and
// timeReceived propagate once at construction; there are no back
// references from drink to order.
func (o *Order) Normalize() {
	if o.DateReceived.IsZero() && !o.TimeReceived.IsZero() {
		o.DateReceived = o.TimeReceived.Truncate(24 * time.Hour)
	}
	for i := range o.Drinks {
		d := &o.Drinks[i]
		if d.Customer == "" {
			d.Customer = o.Customer
		}
		if d.OrderID == 0 {
			d.OrderID = o.OrderID
		}
		if d.TimeReceived.IsZero() {
			d.TimeReceived = o.TimeReceived
		}
		if d.Identifier == 0 {
			d.Identifier = NextDrinkID()
		}
		if d.Options == nil {
			d.Options = []string{}
		}
	}
}

// Validate checks the order is acceptable for the queue.
func (o *Order) Validate() error {
	if o.OrderID == 0 {
		return ErrMissingOrderID
	}
	if o.Customer == "" {
		return ErrMissingCustomer
	}
	if len(o.Drinks) == 0 {
		return ErrEmptyOrder
	}
	for _, d := range o.Drinks {
		if d.Name == "" {
			return ErrMissingDrinkName
		}
		if d.MilkVolume < 0 {
			return ErrNegativeVolume
		}
		if d.Shots < 0 {
			return ErrNegativeShots
		}
	}
	return nil
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	out := *o
	if o.TimeComplete != nil {
		t := *o.TimeComplete
		out.TimeComplete = &t
	}
	out.Drinks = make([]Drink, len(o.Drinks))
	for i, d := range o.Drinks {
		out.Drinks[i] = d.Clone()
	}
	return &out
}

// DrinkIDs returns the identifiers of the order's drinks.
func (o *Order) DrinkIDs() []int64 {
	ids := make([]int64, len(o.Drinks))
	for i, d := range o.Drinks {
		ids[i] = d.Identifier
	}
	return ids
}

// GroupDrinks partitions the order's milk drinks by (milk, texture),
// preserving first-seen key order and drink order within each group.
// Drinks without milk are excluded.
func (o *Order) GroupDrinks() [][]Drink {
	byKey := make(map[string][]Drink)
	var order []string
	for _, d := range o.Drinks {
		if !d.NeedsMilk() {
			continue
		}
		key := d.MilkKey()
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], d)
	}
	groups := make([][]Drink, 0, len(order))
	for _, key := range order {
		groups = append(groups, byKey[key])
	}
	return groups
}

// RemoveDrink deletes the drink with the given identifier from the
// order, reporting whether it was present.
func (o *Order) RemoveDrink(identifier int64) bool {
	for i, d := range o.Drinks {
		if d.Identifier == identifier {
			o.Drinks = append(o.Drinks[:i], o.Drinks[i+1:]...)
			return true
		}
	}
	return false
}

// Batch groups drinks that share a milk preparation so they can be made
// from a single steamed jug.
type Batch struct {
	Drinks  []Drink `json:"drinks"`
	Milk    string  `json:"milk"`
	Texture string  `json:"texture"`
	Volume  float64 `json:"volume"`
}

// NewBatch creates an empty batch for the given milk preparation.
func NewBatch(milk, texture string) *Batch {
	return &Batch{Drinks: []Drink{}, Milk: milk, Texture: texture}
}

// CanAdd reports whether the drink matches the batch's preparation and
// fits within the jug capacity.
func (b *Batch) CanAdd(d Drink) bool {
	return b.Milk == d.Milk &&
		b.Texture == d.Texture &&
		b.Volume+d.MilkVolume <= MaxBatchVolume
}

// Add appends the drink and grows the running volume. Callers check
// CanAdd first.
func (b *Batch) Add(d Drink) {
	if b.Milk == "" {
		b.Milk = d.Milk
	}
	if b.Texture == "" {
		b.Texture = d.Texture
	}
	b.Drinks = append(b.Drinks, d)
	b.Volume += d.MilkVolume
}

// MilkKey returns the lookup table key of the batch's preparation.
func (b *Batch) MilkKey() string {
	return MilkKey(b.Milk, b.Texture)
}

// Clone returns a deep copy of the batch.
func (b *Batch) Clone() *Batch {
	out := *b
	out.Drinks = make([]Drink, len(b.Drinks))
	for i, d := range b.Drinks {
		out.Drinks[i] = d.Clone()
	}
	return &out
}

// ItemKind discriminates the two live queue variants.
type ItemKind string

const (
	KindOrder ItemKind = "order"
	KindBatch ItemKind = "batch"
)

// Item is an element of the live queue: an order or a batch.
type Item struct {
	Kind  ItemKind
	Order *Order
	Batch *Batch
}

// OrderItem wraps an order as a queue item.
func OrderItem(o *Order) *Item {
	return &Item{Kind: KindOrder, Order: o}
}

// BatchItem wraps a batch as a queue item.
func BatchItem(b *Batch) *Item {
	return &Item{Kind: KindBatch, Batch: b}
}

// Drinks returns the item's drink list.
func (it *Item) Drinks() []Drink {
	switch it.Kind {
	case KindOrder:
		return it.Order.Drinks
	default:
		return it.Batch.Drinks
	}
}

// SetDrinks replaces the item's drink list. Batch volume is recomputed
// so the running sum invariant holds after filtering.
func (it *Item) SetDrinks(drinks []Drink) {
	switch it.Kind {
	case KindOrder:
		it.Order.Drinks = drinks
	default:
		it.Batch.Drinks = drinks
		vol := 0.0
		for _, d := range drinks {
			vol += d.MilkVolume
		}
		it.Batch.Volume = vol
	}
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	switch it.Kind {
	case KindOrder:
		return OrderItem(it.Order.Clone())
	default:
		return BatchItem(it.Batch.Clone())
	}
}

type orderJSON struct {
	Kind ItemKind `json:"kind"`
	*Order
}

type batchJSON struct {
	Kind ItemKind `json:"kind"`
	*Batch
}

// MarshalJSON emits the wrapped value inline with a "kind" discriminant.
func (it *Item) MarshalJSON() ([]byte, error) {
	switch it.Kind {
	case KindOrder:
		return json.Marshal(orderJSON{Kind: KindOrder, Order: it.Order})
	case KindBatch:
		return json.Marshal(batchJSON{Kind: KindBatch, Batch: it.Batch})
	default:
		return nil, fmt.Errorf("marshal item: unknown kind %q", it.Kind)
	}
}

// UnmarshalJSON reads an item tagged with its kind.
func (it *Item) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind ItemKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch probe.Kind {
	case KindOrder:
		var o Order
		if err := json.Unmarshal(data, &o); err != nil {
			return err
		}
		*it = Item{Kind: KindOrder, Order: &o}
	case KindBatch:
		var b Batch
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*it = Item{Kind: KindBatch, Batch: &b}
	default:
		return fmt.Errorf("unmarshal item: unknown kind %q", probe.Kind)
	}
	return nil
}

// Snapshot is the immutable queue view broadcast to UI clients.
type Snapshot struct {
	Items       []*Item `json:"orders"`
	TotalOrders int     `json:"totalOrders"`
	TotalDrinks int     `json:"totalDrinks"`
}
