package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

const homePath = "/home"

// DefaultFeaturedLimit is the number of featured games requested when the
// caller gives no positive limit.
const DefaultFeaturedLimit = 6

// Home is the landing-page content service.
type Home struct {
	client *apiclient.Client
}

// NewHome creates the home service.
func NewHome(client *apiclient.Client) *Home {
	return &Home{client: client}
}

// Get returns the aggregate landing-page content.
func (h *Home) Get(ctx context.Context) (*model.HomeData, error) {
	var data model.HomeData
	if err := h.client.Get(ctx, homePath, nil, &data); err != nil {
		return nil, fmt.Errorf("loading home: %w", err)
	}

	data.Categories = nonNil(data.Categories)
	data.Features = nonNil(data.Features)
	data.FeaturedGames = nonNil(data.FeaturedGames)

	return &data, nil
}

// Categories lists the category tiles.
func (h *Home) Categories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := h.client.Get(ctx, homePath+"/categories", nil, &categories); err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return nonNil(categories), nil
}

// Features lists the feature highlights.
func (h *Home) Features(ctx context.Context) ([]model.Feature, error) {
	var features []model.Feature
	if err := h.client.Get(ctx, homePath+"/features", nil, &features); err != nil {
		return nil, fmt.Errorf("listing features: %w", err)
	}
	return nonNil(features), nil
}

// FeaturedGames lists up to limit featured games.
func (h *Home) FeaturedGames(ctx context.Context, limit int) ([]model.Game, error) {
	if limit < 1 {
		limit = DefaultFeaturedLimit
	}

	var games []model.Game
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := h.client.Get(ctx, homePath+"/featured-games", query, &games); err != nil {
		return nil, fmt.Errorf("listing featured games: %w", err)
	}
	return nonNil(games), nil
}

// CreateCategory creates a category tile.
func (h *Home) CreateCategory(ctx context.Context, category *model.Category) (*model.Category, error) {
	if err := category.Validate(); err != nil {
		return nil, apiclient.ValidationError(err)
	}

	var created model.Category
	if err := h.client.Post(ctx, homePath+"/categories", category, &created); err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	return &created, nil
}

// CreateFeature creates a feature highlight.
func (h *Home) CreateFeature(ctx context.Context, feature *model.Feature) (*model.Feature, error) {
	if err := feature.Validate(); err != nil {
		return nil, apiclient.ValidationError(err)
	}

	var created model.Feature
	if err := h.client.Post(ctx, homePath+"/features", feature, &created); err != nil {
		return nil, fmt.Errorf("creating feature: %w", err)
	}
	return &created, nil
}

// UpdateHero replaces the fields present in patch. The backend's payload
// shape varies, so the returned config is nil when it is not a hero object.
func (h *Home) UpdateHero(ctx context.Context, patch *model.HeroPatch) (*model.HeroConfig, error) {
	var raw json.RawMessage
	if err := h.client.Put(ctx, homePath+"/hero", patch, &raw); err != nil {
		return nil, fmt.Errorf("updating hero: %w", err)
	}

	var hero model.HeroConfig
	if err := json.Unmarshal(raw, &hero); err != nil || hero.Title == "" {
		return nil, nil
	}
	return &hero, nil
}
