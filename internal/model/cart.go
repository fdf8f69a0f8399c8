package model

import (
	"errors"
	"math"
)

// ItemType is the closed set of catalog entity kinds a line item can carry.
type ItemType string

// Item types, using the backend's wire values.
const (
	ItemTypeGame      ItemType = "juego"
	ItemTypeConsole   ItemType = "consola"
	ItemTypeAccessory ItemType = "accesorio"
)

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeGame, ItemTypeConsole, ItemTypeAccessory:
		return true
	default:
		return false
	}
}

// Label returns the human readable label used in order messages.
func (t ItemType) Label() string {
	switch t {
	case ItemTypeGame:
		return "Juego"
	case ItemTypeConsole:
		return "Consola"
	case ItemTypeAccessory:
		return "Accesorio"
	default:
		return string(t)
	}
}

// Validation errors for cart entries.
var (
	ErrEmptyItemID      = errors.New("item id cannot be empty")
	ErrInvalidItemType  = errors.New("item type must be one of: juego, consola, accesorio")
	ErrInvalidItemPrice = errors.New("item price must be a non-negative number")
	ErrInvalidQuantity  = errors.New("item quantity must be at least 1")
)

// CartCandidate is a catalog entity offered to the cart, without a quantity.
type CartCandidate struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Type     ItemType `json:"type"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Brand    string   `json:"brand,omitempty"`
}

// Validate checks the candidate before it is added to a cart.
func (c *CartCandidate) Validate() error {
	if c.ID == "" {
		return ErrEmptyItemID
	}

	if c.Price < 0 || math.IsNaN(c.Price) || math.IsInf(c.Price, 0) {
		return ErrInvalidItemPrice
	}

	if !c.Type.Valid() {
		return ErrInvalidItemType
	}

	return nil
}

// CartItem is one line of the cart.
type CartItem struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Quantity int      `json:"quantity"`
	Type     ItemType `json:"type"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Brand    string   `json:"brand,omitempty"`
}

// NewCartItem creates a line item from a candidate with quantity 1.
func NewCartItem(c CartCandidate) CartItem {
	return CartItem{
		ID:       c.ID,
		Name:     c.Name,
		Price:    c.Price,
		Quantity: 1,
		Type:     c.Type,
		ImageURL: c.ImageURL,
		Brand:    c.Brand,
	}
}

// Subtotal returns price times quantity.
func (i CartItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// Validate checks a persisted line item.
func (i *CartItem) Validate() error {
	if i.ID == "" {
		return ErrEmptyItemID
	}

	if i.Quantity < 1 {
		return ErrInvalidQuantity
	}

	if i.Price < 0 || math.IsNaN(i.Price) || math.IsInf(i.Price, 0) {
		return ErrInvalidItemPrice
	}

	return nil
}

// CartState is the cart as presented to views.
type CartState struct {
	Items     []CartItem `json:"items"`
	Visible   bool       `json:"visible"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"itemCount"`
}

// NewCartState builds the view state for items.
func NewCartState(items []CartItem, visible bool) CartState {
	return CartState{
		Items:     items,
		Visible:   visible,
		Total:     Total(items),
		ItemCount: ItemCount(items),
	}
}

// Total returns the sum of price times quantity over items.
func Total(items []CartItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.Subtotal()
	}
	return sum
}

// ItemCount returns the sum of quantities over items.
func ItemCount(items []CartItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}
