// Package menu holds the workstation's drink catalog: the espresso
// drinks the shop serves with their default preparation, plus the milk,
// texture, temperature and option choices used when generating orders.
package menu

// DrinkSpec is the default preparation for a named drink.
type DrinkSpec struct {
	Shots      int
	Texture    string
	MilkVolume float64
}

// Catalog is the full set of choices an order can draw on.
type Catalog struct {
	Drinks       map[string]DrinkSpec
	Milks        []string
	Textures     []string
	Temperatures []string
	Options      []string
}

// DefaultCatalog returns the standard espresso menu.
func DefaultCatalog() Catalog {
	return Catalog{
		Drinks: map[string]DrinkSpec{
			"Latte":            {Shots: 2, Texture: "Wet", MilkVolume: 2},
			"Small Latte":      {Shots: 1, Texture: "Wet", MilkVolume: 1},
			"Cappuccino":       {Shots: 2, Texture: "Dry", MilkVolume: 2},
			"Small Cappuccino": {Shots: 1, Texture: "Dry", MilkVolume: 1},
			"Flat White":       {Shots: 2, Texture: "Wet", MilkVolume: 1},
			"Cortado":          {Shots: 2, Texture: "Wet", MilkVolume: 0.5},
			"Macchiato":        {Shots: 2, Texture: "Dry", MilkVolume: 0.5},
			"Single Macchiato": {Shots: 1, Texture: "Dry", MilkVolume: 0.5},
			"Long Black":       {Shots: 2},
			"Short Black":      {Shots: 2},
			"Double Espresso":  {Shots: 2},
			"Single Espresso":  {Shots: 1},
		},
		Milks:        []string{"Whole", "Semi Skimmed", "Oat", "Soy"},
		Textures:     []string{"Wet", "Dry"},
		Temperatures: []string{"Normal", "Extra Hot", "Warm"},
		Options:      []string{"Agave", "Honey", "Decaf", "Chocolate", "Cinnamon"},
	}
}

// Names returns the catalog's drink names in no particular order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Drinks))
	for name := range c.Drinks {
		names = append(names, name)
	}
	return names
}
