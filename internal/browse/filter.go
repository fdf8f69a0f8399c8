package browse

import (
	"github.com/vyrodovalexey/gamestore/internal/model"
)

// noUpperBound is the upper edge of the open-ended price ranges.
const noUpperBound = 999999999

// PriceRange is an inclusive price bracket offered as a filter.
type PriceRange struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Contains reports whether price lies within the range, edges included.
func (r PriceRange) Contains(price float64) bool {
	return price >= r.Min && price <= r.Max
}

// AllPrices matches every price.
var AllPrices = PriceRange{Label: "Todos los precios", Min: 0, Max: noUpperBound}

// GamePriceRanges are the brackets offered on the games page.
var GamePriceRanges = []PriceRange{
	AllPrices,
	{Label: "Menos de $120.000", Min: 0, Max: 120000},
	{Label: "$120.000 - $200.000", Min: 120000, Max: 200000},
	{Label: "$200.000 - $280.000", Min: 200000, Max: 280000},
	{Label: "Más de $280.000", Min: 280000, Max: noUpperBound},
}

// ProductPriceRanges are the brackets offered on the unified product page.
var ProductPriceRanges = []PriceRange{
	AllPrices,
	{Label: "Menos de $200.000", Min: 0, Max: 200000},
	{Label: "$200.000 - $500.000", Min: 200000, Max: 500000},
	{Label: "$500.000 - $1.000.000", Min: 500000, Max: 1000000},
	{Label: "Más de $1.000.000", Min: 1000000, Max: noUpperBound},
}

// FindPriceRange looks a range up by label.
func FindPriceRange(ranges []PriceRange, label string) (PriceRange, bool) {
	for _, r := range ranges {
		if r.Label == label {
			return r, true
		}
	}
	return PriceRange{}, false
}

// Filter selects listings. Zero-valued fields do not filter.
type Filter struct {
	Category    string
	Type        model.ItemType
	Price       *PriceRange
	InStockOnly bool
}

// Match reports whether l passes every set criterion.
func (f *Filter) Match(l *Listing) bool {
	if f.Category != "" && l.Category != f.Category {
		return false
	}

	if f.Type != "" && l.Type != f.Type {
		return false
	}

	if f.InStockOnly && !l.InStock() {
		return false
	}

	if f.Price != nil && !f.Price.Contains(l.Price) {
		return false
	}

	return true
}

// Apply returns the matching listings in their original order.
func (f *Filter) Apply(listings []Listing) []Listing {
	out := make([]Listing, 0, len(listings))
	for i := range listings {
		if f.Match(&listings[i]) {
			out = append(out, listings[i])
		}
	}
	return out
}
