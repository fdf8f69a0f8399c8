package model

import (
	"errors"
)

// Validation errors for catalog records.
var (
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrNameTooLong      = errors.New("name cannot exceed 255 characters")
	ErrNegativePrice    = errors.New("price cannot be negative")
	ErrNegativeStock    = errors.New("stock cannot be negative")
	ErrDescriptionLimit = errors.New("description cannot exceed 1000 characters")
	ErrEmptyConsole     = errors.New("console cannot be empty")
	ErrEmptyGenre       = errors.New("genre cannot be empty")
	ErrEmptyDescription = errors.New("description cannot be empty")
	ErrEmptyTitle       = errors.New("title cannot be empty")
)

// Validation constants.
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 1000
)

// Consoles accepted by the per-console game listing.
const (
	ConsolePlayStation = "playstation"
	ConsoleXbox        = "xbox"
	ConsoleNintendo    = "nintendo"
)

// ValidConsole reports whether name is one of the per-console listings.
func ValidConsole(name string) bool {
	switch name {
	case ConsolePlayStation, ConsoleXbox, ConsoleNintendo:
		return true
	default:
		return false
	}
}

// Game is a game record as served by the backend.
type Game struct {
	ID          string  `json:"_id,omitempty"`
	Name        string  `json:"name"`
	Console     string  `json:"consola"`
	Genre       string  `json:"genero"`
	Description string  `json:"descripcion"`
	Price       float64 `json:"precio"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Stock       int     `json:"stock"`
	IsActive    bool    `json:"isActive"`
	Developer   string  `json:"developer,omitempty"`
	Publisher   string  `json:"publisher,omitempty"`
	ReleaseYear int     `json:"releaseYear,omitempty"`
	Rating      string  `json:"rating,omitempty"`
	Multiplayer bool    `json:"multiplayer"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

// Validate checks the fields the admin form requires before a game is
// created.
func (g *Game) Validate() error {
	if g.Name == "" {
		return ErrEmptyName
	}

	if len(g.Name) > MaxNameLength {
		return ErrNameTooLong
	}

	if g.Console == "" {
		return ErrEmptyConsole
	}

	if g.Genre == "" {
		return ErrEmptyGenre
	}

	if g.Description == "" {
		return ErrEmptyDescription
	}

	if len(g.Description) > MaxDescriptionLength {
		return ErrDescriptionLimit
	}

	if g.Price < 0 {
		return ErrNegativePrice
	}

	if g.Stock < 0 {
		return ErrNegativeStock
	}

	return nil
}

// InStock reports whether at least one unit is available.
func (g *Game) InStock() bool {
	return g.Stock > 0
}

// CartCandidate converts the game into a cart candidate.
func (g *Game) CartCandidate() CartCandidate {
	return CartCandidate{
		ID:       g.ID,
		Name:     g.Name,
		Price:    g.Price,
		Type:     ItemTypeGame,
		ImageURL: g.ImageURL,
		Brand:    g.Publisher,
	}
}

// GamePatch is a partial game update; nil fields are left unchanged.
type GamePatch struct {
	Name        *string  `json:"name,omitempty"`
	Console     *string  `json:"consola,omitempty"`
	Genre       *string  `json:"genero,omitempty"`
	Description *string  `json:"descripcion,omitempty"`
	Price       *float64 `json:"precio,omitempty"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	IsActive    *bool    `json:"isActive,omitempty"`
	Developer   *string  `json:"developer,omitempty"`
	Publisher   *string  `json:"publisher,omitempty"`
	ReleaseYear *int     `json:"releaseYear,omitempty"`
	Rating      *string  `json:"rating,omitempty"`
	Multiplayer *bool    `json:"multiplayer,omitempty"`
}

// Validate checks the fields present in the patch.
func (p *GamePatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return ErrEmptyName
	}

	if p.Price != nil && *p.Price < 0 {
		return ErrNegativePrice
	}

	if p.Stock != nil && *p.Stock < 0 {
		return ErrNegativeStock
	}

	if p.Description != nil && len(*p.Description) > MaxDescriptionLength {
		return ErrDescriptionLimit
	}

	return nil
}

// Product is a generic catalog product: a console or an accessory.
type Product struct {
	ID          string  `json:"_id,omitempty"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand,omitempty"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

// Validate checks if the Product has valid field values.
func (p *Product) Validate() error {
	if p.Name == "" {
		return ErrEmptyName
	}

	if len(p.Name) > MaxNameLength {
		return ErrNameTooLong
	}

	if p.Price < 0 {
		return ErrNegativePrice
	}

	if p.Stock < 0 {
		return ErrNegativeStock
	}

	if len(p.Description) > MaxDescriptionLength {
		return ErrDescriptionLimit
	}

	return nil
}

// ProductPatch is a partial product update; nil fields are left unchanged.
type ProductPatch struct {
	Name        *string  `json:"name,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Description *string  `json:"description,omitempty"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Brand       *string  `json:"brand,omitempty"`
}

// Validate checks the fields present in the patch.
func (p *ProductPatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return ErrEmptyName
	}

	if p.Price != nil && *p.Price < 0 {
		return ErrNegativePrice
	}

	if p.Stock != nil && *p.Stock < 0 {
		return ErrNegativeStock
	}

	return nil
}

// Category is a landing-page category tile.
type Category struct {
	ID          string `json:"_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Route       string `json:"route"`
	ImageURL    string `json:"imageUrl,omitempty"`
	IsActive    bool   `json:"isActive"`
	Order       int    `json:"order"`
}

// Validate checks the category before creation.
func (c *Category) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}

	if len(c.Name) > MaxNameLength {
		return ErrNameTooLong
	}

	return nil
}

// Feature is a landing-page feature highlight.
type Feature struct {
	ID          string `json:"_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IsActive    bool   `json:"isActive"`
	Order       int    `json:"order"`
}

// Validate checks the feature before creation.
func (f *Feature) Validate() error {
	if f.Title == "" {
		return ErrEmptyTitle
	}

	return nil
}

// HeroConfig is the landing-page hero banner.
type HeroConfig struct {
	Title           string `json:"heroTitle"`
	Subtitle        string `json:"heroSubtitle"`
	ButtonText      string `json:"heroButtonText"`
	ButtonRoute     string `json:"heroButtonRoute"`
	BackgroundImage string `json:"heroBackgroundImage,omitempty"`
}

// HeroPatch is a partial hero update.
type HeroPatch struct {
	Title           *string `json:"heroTitle,omitempty"`
	Subtitle        *string `json:"heroSubtitle,omitempty"`
	ButtonText      *string `json:"heroButtonText,omitempty"`
	ButtonRoute     *string `json:"heroButtonRoute,omitempty"`
	BackgroundImage *string `json:"heroBackgroundImage,omitempty"`
}

// HomeStats are the aggregate counters shown on the landing page.
type HomeStats struct {
	TotalGames int `json:"totalGames"`
}

// HomeData is the aggregate landing-page content.
type HomeData struct {
	Hero          HeroConfig `json:"hero"`
	Categories    []Category `json:"categories"`
	Features      []Feature  `json:"features"`
	FeaturedGames []Game     `json:"featuredGames"`
	Stats         HomeStats  `json:"stats"`
}

// UploadResult is the stored image returned by the upload endpoints.
type UploadResult struct {
	ImageURL string `json:"imageUrl"`
	Filename string `json:"filename"`
}
