package services

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/baristaq/baristaq/internal/domain/menu"
	"github.com/baristaq/baristaq/internal/domain/order"
)

var generatorNames = []string{
	"Alex", "Billie", "Charlie", "Dana", "Eli", "Frankie", "Gray",
	"Harper", "Indy", "Jules", "Kai", "Lou", "Morgan", "Nico",
	"Olive", "Parker", "Quinn", "Robin", "Sam", "Toni",
}

// GeneratorService builds random orders from the menu catalog, the way
// the demo ordering service does. Drinks inherit their default shots,
// texture and milk volume from the catalog; milk drinks get a random
// milk, espresso drinks stay milkless.
type GeneratorService struct {
	catalog menu.Catalog
	names   []string // sorted drink names, for stable picks

	mu          sync.Mutex
	rng         *rand.Rand
	nextOrderID int64
	maxDrinks   int
}

// NewGeneratorService seeds a generator. maxDrinks caps drinks per
// order; values below 1 fall back to 4.
func NewGeneratorService(catalog menu.Catalog, maxDrinks int, seed uint64) *GeneratorService {
	if maxDrinks < 1 {
		maxDrinks = 4
	}
	names := catalog.Names()
	sort.Strings(names)
	return &GeneratorService{
		catalog:     catalog,
		names:       names,
		rng:         rand.New(rand.NewPCG(seed, seed)),
		nextOrderID: time.Now().Unix() % 1_000_000,
		maxDrinks:   maxDrinks,
	}
}

// NewOrder returns a freshly generated order with 1..maxDrinks drinks.
func (g *GeneratorService) NewOrder() *order.Order {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextOrderID++
	now := time.Now()
	o := &order.Order{
		OrderID:      g.nextOrderID,
		Customer:     generatorNames[g.rng.IntN(len(generatorNames))],
		TimeReceived: now,
	}

	n := 1 + g.rng.IntN(g.maxDrinks)
	for i := 0; i < n; i++ {
		o.Drinks = append(o.Drinks, g.newDrink())
	}
	return o
}

func (g *GeneratorService) newDrink() order.Drink {
	name := g.names[g.rng.IntN(len(g.names))]
	spec := g.catalog.Drinks[name]

	d := order.Drink{
		Name:        name,
		Milk:        order.NoMilk,
		Shots:       spec.Shots,
		Temperature: g.pick(g.catalog.Temperatures),
		Options:     []string{},
	}
	if spec.MilkVolume > 0 {
		d.Milk = g.pick(g.catalog.Milks)
		d.Texture = spec.Texture
		d.MilkVolume = spec.MilkVolume
	}
	// Roughly a third of drinks carry one extra option.
	if g.rng.IntN(3) == 0 && len(g.catalog.Options) > 0 {
		d.Options = append(d.Options, g.pick(g.catalog.Options))
	}
	return d
}

func (g *GeneratorService) pick(choices []string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[g.rng.IntN(len(choices))]
}
