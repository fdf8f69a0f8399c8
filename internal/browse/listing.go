// Package browse merges games and products into one listing and applies the
// storefront's client-side filters and pagination.
package browse

import (
	"strings"

	"github.com/vyrodovalexey/gamestore/internal/model"
)

// Listing is one sellable entry shown in the unified product grid.
type Listing struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        model.ItemType `json:"type"`
	Price       float64        `json:"price"`
	Description string         `json:"description"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	Stock       int            `json:"stock"`
	Brand       string         `json:"brand,omitempty"`
	Category    string         `json:"category,omitempty"`
}

// InStock reports whether at least one unit is available.
func (l *Listing) InStock() bool {
	return l.Stock > 0
}

// CartCandidate converts the listing into a cart candidate.
func (l *Listing) CartCandidate() model.CartCandidate {
	return model.CartCandidate{
		ID:       l.ID,
		Name:     l.Name,
		Price:    l.Price,
		Type:     l.Type,
		ImageURL: l.ImageURL,
		Brand:    l.Brand,
	}
}

// FromGames maps games to listings. The developer is shown as the brand and
// the genre as the category.
func FromGames(games []model.Game) []Listing {
	out := make([]Listing, 0, len(games))
	for i := range games {
		g := &games[i]
		out = append(out, Listing{
			ID:          g.ID,
			Name:        g.Name,
			Type:        model.ItemTypeGame,
			Price:       g.Price,
			Description: g.Description,
			ImageURL:    g.ImageURL,
			Stock:       g.Stock,
			Brand:       g.Developer,
			Category:    g.Genre,
		})
	}
	return out
}

// FromProducts maps products to listings. The type is inferred from the
// category, or from the brand when the category is empty.
func FromProducts(products []model.Product) []Listing {
	out := make([]Listing, 0, len(products))
	for i := range products {
		p := &products[i]

		label := p.Category
		if label == "" {
			label = p.Brand
		}

		out = append(out, Listing{
			ID:          p.ID,
			Name:        p.Name,
			Type:        InferType(label),
			Price:       p.Price,
			Description: p.Description,
			ImageURL:    p.ImageURL,
			Stock:       p.Stock,
			Brand:       label,
			Category:    label,
		})
	}
	return out
}

var (
	consoleKeywords   = []string{"playstation", "xbox", "nintendo", "consola", "console"}
	accessoryKeywords = []string{"accesorio", "accessory"}
	gameKeywords      = []string{"juego", "game"}
)

// InferType guesses the item type from a free-form category label.
// Unrecognized labels are accessories.
func InferType(category string) model.ItemType {
	c := strings.ToLower(category)

	switch {
	case c == "":
		return model.ItemTypeAccessory
	case containsAny(c, consoleKeywords):
		return model.ItemTypeConsole
	case containsAny(c, accessoryKeywords):
		return model.ItemTypeAccessory
	case containsAny(c, gameKeywords):
		return model.ItemTypeGame
	default:
		return model.ItemTypeAccessory
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
